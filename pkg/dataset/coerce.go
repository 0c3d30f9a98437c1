package dataset

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// NewValue converts a raw Go value into a Value of the declared column type.
// nil becomes NULL. The declared type decides the member; the raw value is
// coerced into it or an ErrTypeMismatch is returned.
func NewValue(t ColumnType, raw any) (Value, error) {
	if raw == nil {
		return Null(), nil
	}

	if v, ok := raw.(Value); ok {
		if !v.Conforms(t) {
			return Null(), fmt.Errorf("%w: %s value for %s column", ErrTypeMismatch, v.typeName(), t)
		}
		return v, nil
	}

	var (
		v   Value
		err error
	)

	switch t {
	case TypeInt32:
		var i int64
		if i, err = toInt64(raw); err == nil {
			if i < math.MinInt32 || i > math.MaxInt32 {
				err = fmt.Errorf("%d is out of range for int32", i)
			} else {
				v = Int32(int32(i))
			}
		}
	case TypeInt64:
		var i int64
		if i, err = toInt64(raw); err == nil {
			v = Int64(i)
		}
	case TypeBool:
		var b bool
		if b, err = cast.ToBoolE(raw); err == nil {
			v = Bool(b)
		}
	case TypeDecimal:
		var d decimal.Decimal
		if d, err = toDecimal(raw); err == nil {
			v = Decimal(d)
		}
	case TypeBytes:
		switch b := raw.(type) {
		case []byte:
			v = Bytes(b)
		case string:
			v = Bytes([]byte(b))
		default:
			err = fmt.Errorf("unable to cast %#v of type %T to []byte", raw, raw)
		}
	case TypeString:
		var s string
		if s, err = cast.ToStringE(raw); err == nil {
			v = String(s)
		}
	case TypeGUID:
		var id uuid.UUID
		if id, err = toGUID(raw); err == nil {
			v = GUID(id)
		}
	case TypeDateTime, TypeDateTimeOffset:
		var tm time.Time
		if tm, err = cast.ToTimeE(raw); err == nil {
			if t == TypeDateTime {
				v = DateTime(tm)
			} else {
				v = DateTimeOffset(tm)
			}
		}
	default:
		return Null(), fmt.Errorf("%w: %q", ErrUnknownColumnType, string(t))
	}

	if err != nil {
		return Null(), fmt.Errorf("%w: %s", ErrTypeMismatch, err)
	}

	return v, nil
}

// MustValue is NewValue for literals known to convert, such as in tests and fixtures.
func MustValue(t ColumnType, raw any) Value {
	v, err := NewValue(t, raw)
	if err != nil {
		panic(err)
	}
	return v
}

// toInt64 is cast.ToInt64E without the silent wrap of unsigned values above
// math.MaxInt64.
func toInt64(raw any) (int64, error) {
	switch u := raw.(type) {
	case uint64:
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d is out of range for int64", u)
		}
	case uint:
		if uint64(u) > math.MaxInt64 {
			return 0, fmt.Errorf("%d is out of range for int64", u)
		}
	case []byte:
		return cast.ToInt64E(string(u))
	}

	return cast.ToInt64E(raw)
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch d := raw.(type) {
	case decimal.Decimal:
		return d, nil
	case *decimal.Decimal:
		return *d, nil
	case float32:
		return decimal.NewFromFloat32(d), nil
	case float64:
		return decimal.NewFromFloat(d), nil
	case string:
		return decimal.NewFromString(d)
	case []byte:
		return decimal.NewFromString(string(d))
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(d), 0), nil
	default:
		i, err := toInt64(raw)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(i), nil
	}
}

func toGUID(raw any) (uuid.UUID, error) {
	switch id := raw.(type) {
	case uuid.UUID:
		return id, nil
	case [16]byte:
		return uuid.UUID(id), nil
	case []byte:
		if len(id) == 16 {
			return uuid.FromBytes(id)
		}
		return uuid.ParseBytes(id)
	case string:
		return uuid.Parse(id)
	default:
		return uuid.Nil, fmt.Errorf("unable to cast %#v of type %T to guid", raw, raw)
	}
}

func (v Value) typeName() string {
	if t, ok := v.Type(); ok {
		return string(t)
	}
	return "null"
}

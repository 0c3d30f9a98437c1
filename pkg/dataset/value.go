package dataset

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Value is a single nullable cell. At most one member is set; a Value with no
// member set represents SQL NULL. The member names double as the JSON property
// names of a record.
type Value struct {
	IntValue            *int32
	LongValue           *int64
	BoolValue           *bool
	DecimalValue        *decimal.Decimal
	ByteValue           []byte
	StringValue         *string
	GuidValue           *uuid.UUID
	DateTimeValue       *time.Time
	DateTimeOffsetValue *time.Time
}

func Null() Value { return Value{} }

func Int32(v int32) Value { return Value{IntValue: &v} }

func Int64(v int64) Value { return Value{LongValue: &v} }

func Bool(v bool) Value { return Value{BoolValue: &v} }

func Decimal(v decimal.Decimal) Value { return Value{DecimalValue: &v} }

func String(v string) Value { return Value{StringValue: &v} }

func GUID(v uuid.UUID) Value { return Value{GuidValue: &v} }

func DateTime(v time.Time) Value { return Value{DateTimeValue: &v} }

func DateTimeOffset(v time.Time) Value { return Value{DateTimeOffsetValue: &v} }

// Bytes returns a bytes Value. A nil slice is stored as an empty, non-null value.
func Bytes(v []byte) Value {
	if v == nil {
		v = []byte{}
	}
	return Value{ByteValue: v}
}

// members returns the types of all set members, in declaration order.
func (v Value) members() []ColumnType {
	var set []ColumnType
	if v.IntValue != nil {
		set = append(set, TypeInt32)
	}
	if v.LongValue != nil {
		set = append(set, TypeInt64)
	}
	if v.BoolValue != nil {
		set = append(set, TypeBool)
	}
	if v.DecimalValue != nil {
		set = append(set, TypeDecimal)
	}
	if v.ByteValue != nil {
		set = append(set, TypeBytes)
	}
	if v.StringValue != nil {
		set = append(set, TypeString)
	}
	if v.GuidValue != nil {
		set = append(set, TypeGUID)
	}
	if v.DateTimeValue != nil {
		set = append(set, TypeDateTime)
	}
	if v.DateTimeOffsetValue != nil {
		set = append(set, TypeDateTimeOffset)
	}
	return set
}

func (v Value) IsNull() bool {
	return len(v.members()) == 0
}

// Type returns the type of the set member. ok is false for a null value.
func (v Value) Type() (t ColumnType, ok bool) {
	set := v.members()
	if len(set) == 0 {
		return "", false
	}
	return set[0], true
}

// Validate checks that at most one member is set.
func (v Value) Validate() error {
	if len(v.members()) > 1 {
		return ErrAmbiguousValue
	}
	return nil
}

// Conforms reports whether v is null or holds the member for t.
func (v Value) Conforms(t ColumnType) bool {
	set := v.members()
	switch len(set) {
	case 0:
		return true
	case 1:
		return set[0] == t
	default:
		return false
	}
}

// Interface returns the held value as a plain Go value, or nil for null.
func (v Value) Interface() any {
	t, ok := v.Type()
	if !ok {
		return nil
	}

	switch t {
	case TypeInt32:
		return *v.IntValue
	case TypeInt64:
		return *v.LongValue
	case TypeBool:
		return *v.BoolValue
	case TypeDecimal:
		return *v.DecimalValue
	case TypeBytes:
		return v.ByteValue
	case TypeString:
		return *v.StringValue
	case TypeGUID:
		return *v.GuidValue
	case TypeDateTime:
		return *v.DateTimeValue
	default:
		return *v.DateTimeOffsetValue
	}
}

func (v Value) Equal(o Value) bool {
	t1, ok1 := v.Type()
	t2, ok2 := o.Type()
	if ok1 != ok2 || t1 != t2 {
		return false
	}

	if !ok1 {
		return true
	}

	switch t1 {
	case TypeInt32:
		return *v.IntValue == *o.IntValue
	case TypeInt64:
		return *v.LongValue == *o.LongValue
	case TypeBool:
		return *v.BoolValue == *o.BoolValue
	case TypeDecimal:
		return v.DecimalValue.Equal(*o.DecimalValue)
	case TypeBytes:
		return bytes.Equal(v.ByteValue, o.ByteValue)
	case TypeString:
		return *v.StringValue == *o.StringValue
	case TypeGUID:
		return *v.GuidValue == *o.GuidValue
	case TypeDateTime:
		return v.DateTimeValue.Equal(*o.DateTimeValue)
	default:
		return v.DateTimeOffsetValue.Equal(*o.DateTimeOffsetValue)
	}
}

// String renders the value for display. Null renders as NULL.
func (v Value) String() string {
	t, ok := v.Type()
	if !ok {
		return "NULL"
	}

	switch t {
	case TypeInt32:
		return strconv.FormatInt(int64(*v.IntValue), 10)
	case TypeInt64:
		return strconv.FormatInt(*v.LongValue, 10)
	case TypeBool:
		return strconv.FormatBool(*v.BoolValue)
	case TypeDecimal:
		return v.DecimalValue.String()
	case TypeBytes:
		return fmt.Sprintf("0x%X", v.ByteValue)
	case TypeString:
		return *v.StringValue
	case TypeGUID:
		return v.GuidValue.String()
	case TypeDateTime:
		return v.DateTimeValue.Format(time.RFC3339Nano)
	default:
		return v.DateTimeOffsetValue.Format(time.RFC3339Nano)
	}
}

var memberNames = map[ColumnType]string{
	TypeInt32:          "IntValue",
	TypeInt64:          "LongValue",
	TypeBool:           "BoolValue",
	TypeDecimal:        "DecimalValue",
	TypeBytes:          "ByteValue",
	TypeString:         "StringValue",
	TypeGUID:           "GuidValue",
	TypeDateTime:       "DateTimeValue",
	TypeDateTimeOffset: "DateTimeOffsetValue",
}

// MarshalJSON writes the record form of the value: an object with only the set
// member present, or {} for null.
func (v Value) MarshalJSON() ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	t, ok := v.Type()
	if !ok {
		return []byte("{}"), nil
	}

	var member any
	switch t {
	case TypeDateTime:
		member = v.DateTimeValue.Format(time.RFC3339Nano)
	case TypeDateTimeOffset:
		member = v.DateTimeOffsetValue.Format(time.RFC3339Nano)
	default:
		member = v.Interface()
	}

	return json.Marshal(map[string]any{memberNames[t]: member})
}

type wireValue struct {
	IntValue            *int32           `json:"IntValue"`
	LongValue           *int64           `json:"LongValue"`
	BoolValue           *bool            `json:"BoolValue"`
	DecimalValue        *decimal.Decimal `json:"DecimalValue"`
	ByteValue           []byte           `json:"ByteValue"`
	StringValue         *string          `json:"StringValue"`
	GuidValue           *uuid.UUID       `json:"GuidValue"`
	DateTimeValue       *string          `json:"DateTimeValue"`
	DateTimeOffsetValue *string          `json:"DateTimeOffsetValue"`
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	decoded := Value{
		IntValue:     w.IntValue,
		LongValue:    w.LongValue,
		BoolValue:    w.BoolValue,
		DecimalValue: w.DecimalValue,
		ByteValue:    w.ByteValue,
		StringValue:  w.StringValue,
		GuidValue:    w.GuidValue,
	}

	if w.DateTimeValue != nil {
		t, err := parseTime(*w.DateTimeValue)
		if err != nil {
			return err
		}
		decoded.DateTimeValue = &t
	}

	if w.DateTimeOffsetValue != nil {
		t, err := parseTime(*w.DateTimeOffsetValue)
		if err != nil {
			return err
		}
		decoded.DateTimeOffsetValue = &t
	}

	if err := decoded.Validate(); err != nil {
		return err
	}

	*v = decoded
	return nil
}

// Layouts accepted for date members. Zone-less forms come from producers that
// write local DateTime values without an offset.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time %q", s)
}

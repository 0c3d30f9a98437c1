package dataset

import (
	"fmt"
	"strings"
)

// ColumnType is the logical type declared for a column. Every Value in a column
// must either be null or hold the member that corresponds to its ColumnType.
type ColumnType string

const (
	TypeInt32          ColumnType = "int32"
	TypeInt64          ColumnType = "int64"
	TypeBool           ColumnType = "bool"
	TypeDecimal        ColumnType = "decimal"
	TypeBytes          ColumnType = "bytes"
	TypeString         ColumnType = "string"
	TypeGUID           ColumnType = "guid"
	TypeDateTime       ColumnType = "datetime"
	TypeDateTimeOffset ColumnType = "datetimeoffset"
)

var columnTypeNames = map[string]ColumnType{
	"int32":          TypeInt32,
	"int64":          TypeInt64,
	"bool":           TypeBool,
	"decimal":        TypeDecimal,
	"bytes":          TypeBytes,
	"string":         TypeString,
	"guid":           TypeGUID,
	"datetime":       TypeDateTime,
	"datetimeoffset": TypeDateTimeOffset,

	// Type names written by .NET producers of the same chunk format. Single and
	// Double have no member of their own and travel as decimals.
	"system.int32":          TypeInt32,
	"system.int64":          TypeInt64,
	"system.boolean":        TypeBool,
	"system.decimal":        TypeDecimal,
	"system.single":         TypeDecimal,
	"system.double":         TypeDecimal,
	"system.byte[]":         TypeBytes,
	"system.string":         TypeString,
	"system.guid":           TypeGUID,
	"system.datetime":       TypeDateTime,
	"system.datetimeoffset": TypeDateTimeOffset,
}

// ParseColumnType maps a declared type name to a ColumnType. Names are matched
// case-insensitively. An unrecognized name returns ErrUnknownColumnType.
func ParseColumnType(name string) (ColumnType, error) {
	t, ok := columnTypeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownColumnType, name)
	}

	return t, nil
}

// Valid reports whether t is one of the logical type names (not an alias).
func (t ColumnType) Valid() bool {
	mapped, ok := columnTypeNames[string(t)]
	return ok && mapped == t
}

func (t ColumnType) String() string {
	return string(t)
}

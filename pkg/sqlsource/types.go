package sqlsource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/materials-commons/tablexfer/pkg/dataset"
)

var ErrUnmappedType = errors.New("unmapped database type")

var dbTypes = map[string]dataset.ColumnType{
	"INT":       dataset.TypeInt32,
	"INT2":      dataset.TypeInt32,
	"INT4":      dataset.TypeInt32,
	"SMALLINT":  dataset.TypeInt32,
	"TINYINT":   dataset.TypeInt32,
	"MEDIUMINT": dataset.TypeInt32,
	"INTEGER":   dataset.TypeInt64,
	"INT8":      dataset.TypeInt64,
	"BIGINT":    dataset.TypeInt64,

	"BOOL":    dataset.TypeBool,
	"BOOLEAN": dataset.TypeBool,
	"BIT":     dataset.TypeBool,

	"DECIMAL": dataset.TypeDecimal,
	"NUMERIC": dataset.TypeDecimal,
	"MONEY":   dataset.TypeDecimal,
	"REAL":    dataset.TypeDecimal,
	"FLOAT":   dataset.TypeDecimal,
	"FLOAT4":  dataset.TypeDecimal,
	"FLOAT8":  dataset.TypeDecimal,
	"DOUBLE":  dataset.TypeDecimal,

	"BLOB":       dataset.TypeBytes,
	"TINYBLOB":   dataset.TypeBytes,
	"MEDIUMBLOB": dataset.TypeBytes,
	"LONGBLOB":   dataset.TypeBytes,
	"BYTEA":      dataset.TypeBytes,
	"BINARY":     dataset.TypeBytes,
	"VARBINARY":  dataset.TypeBytes,

	"TEXT":              dataset.TypeString,
	"TINYTEXT":          dataset.TypeString,
	"MEDIUMTEXT":        dataset.TypeString,
	"LONGTEXT":          dataset.TypeString,
	"CLOB":              dataset.TypeString,
	"CHAR":              dataset.TypeString,
	"NCHAR":             dataset.TypeString,
	"CHARACTER":         dataset.TypeString,
	"VARCHAR":           dataset.TypeString,
	"NVARCHAR":          dataset.TypeString,
	"CHARACTER VARYING": dataset.TypeString,
	"JSON":              dataset.TypeString,

	"UUID":             dataset.TypeGUID,
	"UNIQUEIDENTIFIER": dataset.TypeGUID,

	"DATE":      dataset.TypeDateTime,
	"DATETIME":  dataset.TypeDateTime,
	"TIMESTAMP": dataset.TypeDateTime,

	"TIMESTAMPTZ":              dataset.TypeDateTimeOffset,
	"TIMESTAMP WITH TIME ZONE": dataset.TypeDateTimeOffset,
	"DATETIMEOFFSET":           dataset.TypeDateTimeOffset,
}

// unsignedTypes widens integer types whose unsigned range does not fit the
// signed column type they would otherwise map to.
var unsignedTypes = map[string]dataset.ColumnType{
	"INT":       dataset.TypeInt64,
	"INTEGER":   dataset.TypeInt64,
	"MEDIUMINT": dataset.TypeInt64,
	"INT4":      dataset.TypeInt64,
	"BIGINT":    dataset.TypeDecimal,
	"INT8":      dataset.TypeDecimal,
}

// ColumnTypeFor maps a driver's DatabaseTypeName to a column type. Size and
// precision suffixes such as VARCHAR(20) are ignored. An UNSIGNED qualifier,
// either "INT UNSIGNED" or the mysql driver's "UNSIGNED INT", selects a type
// wide enough for the unsigned range.
func ColumnTypeFor(dbType string) (dataset.ColumnType, error) {
	name := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(name, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(name[i:], ')'); j >= 0 {
			rest = name[i+j+1:]
		}
		name = strings.TrimSpace(strings.TrimSpace(name[:i]) + " " + strings.TrimSpace(rest))
	}

	unsigned := false
	if trimmed, ok := strings.CutSuffix(name, " UNSIGNED"); ok {
		name, unsigned = strings.TrimSpace(trimmed), true
	}
	if trimmed, ok := strings.CutPrefix(name, "UNSIGNED "); ok {
		name, unsigned = strings.TrimSpace(trimmed), true
	}

	if unsigned {
		if t, ok := unsignedTypes[name]; ok {
			return t, nil
		}
	}

	if t, ok := dbTypes[name]; ok {
		return t, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnmappedType, dbType)
}

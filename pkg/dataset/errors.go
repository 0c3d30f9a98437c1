package dataset

import "errors"

var (
	ErrUnknownColumnType = errors.New("unknown column type")
	ErrAmbiguousValue    = errors.New("field value has more than one member set")
	ErrTypeMismatch      = errors.New("value does not match column type")
	ErrNoCurrentRecord   = errors.New("no current record")
	ErrColumnNotFound    = errors.New("column not found")
	ErrRowWidth          = errors.New("row width does not match column count")
)

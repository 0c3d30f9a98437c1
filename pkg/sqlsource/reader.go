// Package sqlsource reads database query results as dataset result sets.
package sqlsource

import (
	"database/sql"
	"fmt"

	"github.com/materials-commons/tablexfer/pkg/dataset"
)

// Reader is a dataset.Reader over the result sets of a *sql.Rows. Result set
// n is named names[n]; unnamed result sets get the chunk writer's default name.
type Reader struct {
	rows  *sql.Rows
	names []string
	keys  map[string]bool

	started bool
	index   int
	columns []dataset.Column
	row     dataset.Row
	err     error
}

func New(rows *sql.Rows, names ...string) *Reader {
	return &Reader{rows: rows, names: names, index: -1}
}

// WithKeys marks the named columns as keys in every result set.
func (r *Reader) WithKeys(columns ...string) *Reader {
	if r.keys == nil {
		r.keys = make(map[string]bool, len(columns))
	}

	for _, c := range columns {
		r.keys[c] = true
	}

	return r
}

func (r *Reader) NextResultSet() bool {
	if r.err != nil {
		return false
	}

	if r.started && !r.rows.NextResultSet() {
		r.err = r.rows.Err()
		r.columns = nil
		return false
	}

	r.started = true
	r.index++
	r.row = nil

	columns, err := r.describe()
	if err != nil {
		r.err = err
		r.columns = nil
		return false
	}

	r.columns = columns
	return true
}

func (r *Reader) describe() ([]dataset.Column, error) {
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	columns := make([]dataset.Column, 0, len(types))
	for _, ct := range types {
		t, err := ColumnTypeFor(ct.DatabaseTypeName())
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", ct.Name(), err)
		}

		columns = append(columns, dataset.Column{Name: ct.Name(), Type: t, IsKey: r.keys[ct.Name()]})
	}

	return columns, nil
}

func (r *Reader) Next() bool {
	r.row = nil
	if r.err != nil || r.columns == nil {
		return false
	}

	if !r.rows.Next() {
		r.err = r.rows.Err()
		return false
	}

	raw := make([]any, len(r.columns))
	dest := make([]any, len(r.columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	if err := r.rows.Scan(dest...); err != nil {
		r.err = err
		return false
	}

	row := make(dataset.Row, len(r.columns))
	for i, col := range r.columns {
		v, err := dataset.NewValue(col.Type, raw[i])
		if err != nil {
			r.err = fmt.Errorf("column %s: %w", col.Name, err)
			return false
		}
		row[i] = v
	}

	r.row = row
	return true
}

func (r *Reader) Table() string {
	if r.index >= 0 && r.index < len(r.names) {
		return r.names[r.index]
	}

	return ""
}

func (r *Reader) Columns() []dataset.Column {
	return r.columns
}

func (r *Reader) Row() (dataset.Row, error) {
	if r.row == nil {
		return nil, dataset.ErrNoCurrentRecord
	}

	return r.row, nil
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Close() error {
	return r.rows.Close()
}

package dataset

import (
	"fmt"
)

type Column struct {
	Name  string     `json:"name"`
	Type  ColumnType `json:"type"`
	IsKey bool       `json:"is_key"`
}

// Row holds one value per column, in column order.
type Row []Value

// Filter is an opaque key/value pair passed from the initiating side to the
// producer or consumer on the other side.
type Filter struct {
	Key   string `json:"Key"`
	Value any    `json:"Value"`
}

type Table struct {
	Name    string
	Columns []Column
	Rows    []Row
}

func NewTable(name string, columns ...Column) *Table {
	return &Table{Name: name, Columns: columns}
}

// AddRow appends a row after checking its width and that every value conforms
// to its column type.
func (t *Table) AddRow(values ...Value) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("%w: table %s has %d columns, row has %d", ErrRowWidth, t.Name, len(t.Columns), len(values))
	}

	for i, v := range values {
		if !v.Conforms(t.Columns[i].Type) {
			return fmt.Errorf("%w: column %s.%s is %s", ErrTypeMismatch, t.Name, t.Columns[i].Name, t.Columns[i].Type)
		}
	}

	t.Rows = append(t.Rows, Row(values))
	return nil
}

func (t *Table) Ordinal(column string) (int, error) {
	return Ordinal(t.Columns, column)
}

// Get returns the value of column in row i.
func (t *Table) Get(i int, column string) (Value, error) {
	if i < 0 || i >= len(t.Rows) {
		return Null(), fmt.Errorf("%w: row %d", ErrNoCurrentRecord, i)
	}

	idx, err := t.Ordinal(column)
	if err != nil {
		return Null(), err
	}

	return t.Rows[i][idx], nil
}

// RowMap returns row i keyed by column name.
func (t *Table) RowMap(i int) map[string]Value {
	m := make(map[string]Value, len(t.Columns))
	for idx, col := range t.Columns {
		m[col.Name] = t.Rows[i][idx]
	}
	return m
}

func (t *Table) HasIdentity() bool {
	return HasIdentity(t.Columns)
}

// Ordinal finds the position of the named column.
func Ordinal(columns []Column, name string) (int, error) {
	for i, col := range columns {
		if col.Name == name {
			return i, nil
		}
	}

	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// HasIdentity reports whether any column is marked as a key.
func HasIdentity(columns []Column) bool {
	for _, col := range columns {
		if col.IsKey {
			return true
		}
	}
	return false
}

// DataSet is an ordered collection of tables. Table order is significant and
// is preserved across a transfer.
type DataSet struct {
	Tables []*Table
}

func NewDataSet(tables ...*Table) *DataSet {
	return &DataSet{Tables: tables}
}

func (ds *DataSet) AddTable(t *Table) {
	ds.Tables = append(ds.Tables, t)
}

// Table returns the first table with the given name, or nil.
func (ds *DataSet) Table(name string) *Table {
	for _, t := range ds.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Reader returns a Reader that walks the data set's tables as result sets.
func (ds *DataSet) Reader() Reader {
	return &tableReader{tables: ds.Tables, table: -1, row: -1}
}

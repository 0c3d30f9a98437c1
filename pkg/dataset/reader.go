package dataset

// Reader is a forward-only reader over one or more result sets. A Reader
// starts before its first result set: NextResultSet must be called to position
// on each result set, then Next to position on each row within it.
type Reader interface {
	// NextResultSet advances to the next result set and reports whether there is one.
	NextResultSet() bool

	// Next advances to the next row of the current result set.
	Next() bool

	// Table is the name of the current result set.
	Table() string

	// Columns describes the current result set.
	Columns() []Column

	// Row returns the current row, or ErrNoCurrentRecord.
	Row() (Row, error)

	// Err returns the error, if any, that stopped iteration.
	Err() error

	Close() error
}

// ReadAll drains r into a DataSet.
func ReadAll(r Reader) (*DataSet, error) {
	ds := NewDataSet()
	for r.NextResultSet() {
		t := NewTable(r.Table(), r.Columns()...)
		for r.Next() {
			row, err := r.Row()
			if err != nil {
				return nil, err
			}
			t.Rows = append(t.Rows, row)
		}

		if err := r.Err(); err != nil {
			return nil, err
		}

		ds.AddTable(t)
	}

	if err := r.Err(); err != nil {
		return nil, err
	}

	return ds, nil
}

type tableReader struct {
	tables []*Table
	table  int
	row    int
}

func (r *tableReader) NextResultSet() bool {
	if r.table >= len(r.tables) {
		return false
	}

	r.table++
	r.row = -1
	return r.table < len(r.tables)
}

func (r *tableReader) Next() bool {
	if r.table < 0 {
		if !r.NextResultSet() {
			return false
		}
	}

	if r.table >= len(r.tables) {
		return false
	}

	if r.row+1 >= len(r.tables[r.table].Rows) {
		r.row = len(r.tables[r.table].Rows)
		return false
	}

	r.row++
	return true
}

func (r *tableReader) current() *Table {
	if r.table < 0 || r.table >= len(r.tables) {
		return nil
	}
	return r.tables[r.table]
}

func (r *tableReader) Table() string {
	if t := r.current(); t != nil {
		return t.Name
	}
	return ""
}

func (r *tableReader) Columns() []Column {
	if t := r.current(); t != nil {
		return t.Columns
	}
	return nil
}

func (r *tableReader) Row() (Row, error) {
	t := r.current()
	if t == nil || r.row < 0 || r.row >= len(t.Rows) {
		return nil, ErrNoCurrentRecord
	}
	return t.Rows[r.row], nil
}

func (r *tableReader) Err() error { return nil }

func (r *tableReader) Close() error { return nil }

// Package cursor reads a directory of chunk files back as a forward-only,
// multi-result-set reader without loading more than one chunk at a time.
package cursor

import (
	"fmt"
	"os"

	"github.com/materials-commons/tablexfer/pkg/chunk"
	"github.com/materials-commons/tablexfer/pkg/dataset"
)

// EmptyTableName is the name given to a table order that has no chunk files.
func EmptyTableName(order int) string {
	return fmt.Sprintf("Empty-Table-%d", order)
}

// Cursor walks chunk files in (order, seq) order. It starts before the first
// result set. Each result set corresponds to one table order from 1 up to the
// highest order present; an order with no files is an empty result set.
//
// A Cursor owns a working directory which is removed on Close.
type Cursor struct {
	entries  []chunk.Entry
	next     int
	maxOrder int

	order   int
	table   string
	columns []dataset.Column
	rows    []dataset.Row
	row     int

	ownedDir string
	closed   bool
	err      error
}

// Open creates a Cursor over the chunk files in stagingDir. ownedDir, which
// may be stagingDir or one of its parents, is removed when the Cursor is
// closed. An empty ownedDir leaves everything in place.
func Open(stagingDir, ownedDir string) (*Cursor, error) {
	entries, err := chunk.List(stagingDir)
	if err != nil {
		return nil, err
	}

	c := &Cursor{entries: entries, row: -1, ownedDir: ownedDir}
	if len(entries) > 0 {
		c.maxOrder = entries[len(entries)-1].Name.Order
	}

	return c, nil
}

// NextResultSet advances to the next table order. Unread rows of the current
// result set are skipped.
func (c *Cursor) NextResultSet() bool {
	if c.closed || c.err != nil || c.order > c.maxOrder {
		return false
	}

	c.order++
	c.table = ""
	c.columns = nil
	c.rows = nil
	c.row = -1

	if c.order > c.maxOrder {
		return false
	}

	for c.next < len(c.entries) && c.entries[c.next].Name.Order < c.order {
		c.next++
	}

	if !c.hasChunkForCurrentOrder() {
		c.table = EmptyTableName(c.order)
		return true
	}

	return c.load()
}

// Next advances to the next row of the current result set. Called before any
// NextResultSet it positions on the first result set.
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}

	if c.order == 0 && !c.NextResultSet() {
		return false
	}

	if c.order > c.maxOrder {
		return false
	}

	c.row++
	for c.row >= len(c.rows) {
		if !c.hasChunkForCurrentOrder() || !c.load() {
			c.row = len(c.rows)
			return false
		}
		c.row = 0
	}

	return true
}

func (c *Cursor) hasChunkForCurrentOrder() bool {
	return c.next < len(c.entries) && c.entries[c.next].Name.Order == c.order
}

// load reads the next entry, which must belong to the current order.
func (c *Cursor) load() bool {
	entry := c.entries[c.next]
	c.next++

	ch, err := chunk.ReadFile(entry.Path, c.columns)
	if err != nil {
		c.err = err
		c.rows = nil
		return false
	}

	c.columns = ch.Columns
	c.table = ch.Name.Table
	c.rows = ch.Rows
	c.row = -1

	return true
}

func (c *Cursor) Table() string {
	return c.table
}

func (c *Cursor) Columns() []dataset.Column {
	return c.columns
}

func (c *Cursor) FieldCount() int {
	return len(c.columns)
}

func (c *Cursor) Ordinal(name string) (int, error) {
	return dataset.Ordinal(c.columns, name)
}

func (c *Cursor) Row() (dataset.Row, error) {
	if c.row < 0 || c.row >= len(c.rows) {
		return nil, dataset.ErrNoCurrentRecord
	}

	return c.rows[c.row], nil
}

// Value returns the named column of the current row.
func (c *Cursor) Value(name string) (dataset.Value, error) {
	row, err := c.Row()
	if err != nil {
		return dataset.Null(), err
	}

	idx, err := c.Ordinal(name)
	if err != nil {
		return dataset.Null(), err
	}

	return row[idx], nil
}

// ValueAt returns the i'th column of the current row.
func (c *Cursor) ValueAt(i int) (dataset.Value, error) {
	row, err := c.Row()
	if err != nil {
		return dataset.Null(), err
	}

	if i < 0 || i >= len(row) {
		return dataset.Null(), fmt.Errorf("%w: ordinal %d", dataset.ErrColumnNotFound, i)
	}

	return row[i], nil
}

func (c *Cursor) Err() error {
	return c.err
}

// Close releases the cursor and removes its owned directory. Calling Close
// more than once is safe.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	c.rows = nil
	c.row = -1

	if c.ownedDir == "" {
		return nil
	}

	return os.RemoveAll(c.ownedDir)
}

// Materialize reads every chunk file in stagingDir into a DataSet, inserting
// an empty placeholder table for each order with no files, and then removes
// ownedDir.
func Materialize(stagingDir, ownedDir string) (*dataset.DataSet, error) {
	c, err := Open(stagingDir, ownedDir)
	if err != nil {
		return nil, err
	}

	ds, err := dataset.ReadAll(c)
	if closeErr := c.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return nil, err
	}

	return ds, nil
}

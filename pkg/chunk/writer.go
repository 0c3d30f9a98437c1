package chunk

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/materials-commons/tablexfer/pkg/dataset"
)

const DefaultMaxRowsPerChunk = 10000

// Writer turns the result sets of a dataset.Reader into chunk files in Dir.
// Each result set becomes one table order, starting at 1. Rows are flushed to a
// new chunk every MaxRowsPerChunk rows and at the end of the result set. A
// result set with no rows still produces one chunk holding only its schema.
type Writer struct {
	Dir             string
	MaxRowsPerChunk int
}

func NewWriter(dir string, maxRowsPerChunk int) *Writer {
	if maxRowsPerChunk < 1 {
		maxRowsPerChunk = DefaultMaxRowsPerChunk
	}

	return &Writer{Dir: dir, MaxRowsPerChunk: maxRowsPerChunk}
}

// WriteAll consumes r and returns the names of the chunk files written, in the
// order they were written. ctx is checked before each result set and before
// each chunk is flushed.
func (w *Writer) WriteAll(ctx context.Context, r dataset.Reader) ([]string, error) {
	var files []string

	for order := 1; ; order++ {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		if !r.NextResultSet() {
			break
		}

		written, err := w.writeTable(ctx, order, r)
		files = append(files, written...)
		if err != nil {
			return files, err
		}
	}

	if err := r.Err(); err != nil {
		return files, err
	}

	return files, nil
}

func (w *Writer) writeTable(ctx context.Context, order int, r dataset.Reader) ([]string, error) {
	tableName := r.Table()
	if tableName == "" {
		tableName = fmt.Sprintf("Table%d", order)
	}

	if strings.ContainsAny(tableName, `/\`) || tableName == "." || tableName == ".." {
		return nil, fmt.Errorf("table name %q cannot be used in a chunk file name", tableName)
	}

	columns := r.Columns()
	if err := validateColumns(tableName, columns); err != nil {
		return nil, err
	}

	var (
		files []string
		rows  []dataset.Row
		seq   = 1
	)

	flush := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := FileName{Order: order, Table: tableName, Seq: seq, HasIdentity: dataset.HasIdentity(columns)}
		if err := WriteFile(filepath.Join(w.Dir, name.String()), name, columns, rows); err != nil {
			return fmt.Errorf("writing chunk %s: %w", name, err)
		}

		files = append(files, name.String())
		rows = nil
		seq++
		return nil
	}

	for r.Next() {
		row, err := r.Row()
		if err != nil {
			return files, err
		}

		rows = append(rows, row)
		if len(rows) == w.MaxRowsPerChunk {
			if err := flush(); err != nil {
				return files, err
			}
		}
	}

	if err := r.Err(); err != nil {
		return files, err
	}

	if len(rows) > 0 || seq == 1 {
		if err := flush(); err != nil {
			return files, err
		}
	}

	log.Debugf("Wrote table %d (%s) as %d chunk(s)", order, tableName, len(files))

	return files, nil
}

func validateColumns(tableName string, columns []dataset.Column) error {
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		switch {
		case col.Name == "":
			return fmt.Errorf("table %s has a column with no name", tableName)
		case seen[col.Name]:
			return fmt.Errorf("table %s has duplicate column %q", tableName, col.Name)
		case !col.Type.Valid():
			return fmt.Errorf("table %s column %s: %w: %q", tableName, col.Name, dataset.ErrUnknownColumnType, string(col.Type))
		}
		seen[col.Name] = true
	}

	return nil
}

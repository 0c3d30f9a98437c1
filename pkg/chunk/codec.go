package chunk

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/materials-commons/tablexfer/pkg/dataset"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrMissingSchema = errors.New("chunk has no schema row")

// Chunk is the decoded content of a single chunk file.
type Chunk struct {
	Name    FileName
	Columns []dataset.Column
	Rows    []dataset.Row
}

// Encode writes records as a JSON array. When withSchema is set the first
// record is the schema row (column name -> {"StringValue": type}). Records are
// written with keys in column order, which is what carries the column order
// to the reading side.
func Encode(w io.Writer, columns []dataset.Column, withSchema bool, rows []dataset.Row) error {
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%w: row %d has %d values, %d columns", dataset.ErrRowWidth, i, len(row), len(columns))
		}

		for j, v := range row {
			if !v.Conforms(columns[j].Type) {
				return fmt.Errorf("%w: row %d column %s declared %s", dataset.ErrTypeMismatch, i, columns[j].Name, columns[j].Type)
			}
		}
	}

	stream := jsoniter.NewStream(json, w, 32*1024)
	stream.WriteArrayStart()

	first := true
	writeRecord := func(value func(int) dataset.Value) {
		if !first {
			stream.WriteMore()
		}
		first = false

		stream.WriteObjectStart()
		for j, col := range columns {
			if j > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(col.Name)
			stream.WriteVal(value(j))
		}
		stream.WriteObjectEnd()
	}

	if withSchema {
		writeRecord(func(j int) dataset.Value { return dataset.String(string(columns[j].Type)) })
	}

	for _, row := range rows {
		row := row
		writeRecord(func(j int) dataset.Value { return row[j] })
	}

	stream.WriteArrayEnd()
	if stream.Error != nil {
		return stream.Error
	}

	return stream.Flush()
}

// Decode reads the records of a chunk. If columns is nil the first record must
// be the schema row and the decoded columns are returned; otherwise every
// record is a data row of the given columns.
func Decode(r io.Reader, columns []dataset.Column) ([]dataset.Column, []dataset.Row, error) {
	iter := jsoniter.Parse(json, r, 32*1024)

	var (
		rows      []dataset.Row
		decodeErr error
		ordinals  map[string]int
	)

	needSchema := columns == nil
	setColumns := func(cols []dataset.Column) {
		columns = cols
		ordinals = make(map[string]int, len(cols))
		for i, col := range cols {
			ordinals[col.Name] = i
		}
	}

	if !needSchema {
		setColumns(columns)
	}

	ok := iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
		if needSchema {
			cols, err := readSchemaRow(iter)
			if err != nil {
				decodeErr = err
				return false
			}
			setColumns(cols)
			needSchema = false
			return true
		}

		row := make(dataset.Row, len(columns))
		iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
			idx, found := ordinals[field]
			if !found {
				decodeErr = fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, field)
				return false
			}

			var v dataset.Value
			iter.ReadVal(&v)
			if iter.Error != nil {
				return false
			}

			if !v.Conforms(columns[idx].Type) {
				decodeErr = fmt.Errorf("%w: column %s declared %s", dataset.ErrTypeMismatch, field, columns[idx].Type)
				return false
			}

			row[idx] = v
			return true
		})

		if decodeErr != nil || iter.Error != nil {
			return false
		}

		rows = append(rows, row)
		return true
	})

	switch {
	case decodeErr != nil:
		return nil, nil, decodeErr
	case iter.Error != nil && !errors.Is(iter.Error, io.EOF):
		return nil, nil, iter.Error
	case !ok:
		return nil, nil, fmt.Errorf("malformed chunk")
	case needSchema:
		return nil, nil, ErrMissingSchema
	}

	return columns, rows, nil
}

func readSchemaRow(iter *jsoniter.Iterator) ([]dataset.Column, error) {
	var (
		columns []dataset.Column
		err     error
	)

	iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
		var v dataset.Value
		iter.ReadVal(&v)
		if iter.Error != nil {
			return false
		}

		if v.StringValue == nil {
			err = fmt.Errorf("schema entry for column %q is not a type name", field)
			return false
		}

		var ct dataset.ColumnType
		if ct, err = dataset.ParseColumnType(*v.StringValue); err != nil {
			err = fmt.Errorf("column %q: %w", field, err)
			return false
		}

		columns = append(columns, dataset.Column{Name: field, Type: ct})
		return true
	})

	if err != nil {
		return nil, err
	}

	return columns, iter.Error
}

// WriteFile encodes a chunk to path. The schema row is written for the first
// chunk of a table only.
func WriteFile(path string, name FileName, columns []dataset.Column, rows []dataset.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := Encode(w, columns, name.Seq == 1, rows); err != nil {
		_ = f.Close()
		return err
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// ReadFile decodes the chunk at path. columns is the schema established by the
// table's first chunk and is ignored when the file is itself a first chunk.
func ReadFile(path string, columns []dataset.Column) (*Chunk, error) {
	name, err := ParseFileName(path)
	if err != nil {
		return nil, err
	}

	if name.Seq == 1 {
		columns = nil
	} else if columns == nil {
		return nil, fmt.Errorf("%w: %s is not the first chunk of table %s", ErrMissingSchema, path, name.Table)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cols, rows, err := Decode(bufio.NewReader(f), columns)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if name.HasIdentity && name.Seq == 1 {
		// The file name only records that the table has a key column, not
		// which one; the first column carries the flag.
		if len(cols) > 0 {
			cols[0].IsKey = true
		}
	}

	return &Chunk{Name: name, Columns: cols, Rows: rows}, nil
}

package worker

import (
	"context"
	"errors"

	"github.com/materials-commons/tablexfer/pkg/cursor"
	"github.com/materials-commons/tablexfer/pkg/dataset"
)

var (
	ErrNoProducer = errors.New("no producer configured for downloads")
	ErrNoConsumer = errors.New("no consumer configured for uploads")
)

// Producer supplies the data for a download. A materialized data set is
// returned through DataSet.Reader; a streaming source returns its own Reader.
// The returned Reader is closed once its data has been chunked.
type Producer interface {
	Produce(ctx context.Context, transferID string, filters []dataset.Filter) (dataset.Reader, error)
}

type ProducerFunc func(ctx context.Context, transferID string, filters []dataset.Filter) (dataset.Reader, error)

func (f ProducerFunc) Produce(ctx context.Context, transferID string, filters []dataset.Filter) (dataset.Reader, error) {
	return f(ctx, transferID, filters)
}

// DataSetProducer adapts a function returning a whole DataSet.
func DataSetProducer(fn func(ctx context.Context, transferID string, filters []dataset.Filter) (*dataset.DataSet, error)) Producer {
	return ProducerFunc(func(ctx context.Context, transferID string, filters []dataset.Filter) (dataset.Reader, error) {
		ds, err := fn(ctx, transferID, filters)
		if err != nil {
			return nil, err
		}
		return ds.Reader(), nil
	})
}

type TablesFunc func(ctx context.Context, ds *dataset.DataSet, filters []dataset.Filter) error

// CursorFunc receives an open cursor. The cursor is closed after the function
// returns.
type CursorFunc func(ctx context.Context, c *cursor.Cursor, filters []dataset.Filter) error

// Consumer receives uploaded data either as a materialized data set or as a
// streaming cursor. Build one with ConsumeTables or ConsumeCursor.
type Consumer struct {
	tables TablesFunc
	cursor CursorFunc
}

func ConsumeTables(fn TablesFunc) Consumer {
	return Consumer{tables: fn}
}

func ConsumeCursor(fn CursorFunc) Consumer {
	return Consumer{cursor: fn}
}

// Consume hands the chunk files in stagingDir to the consumer. stagingDir is
// removed afterwards in both modes.
func (c Consumer) Consume(ctx context.Context, stagingDir string, filters []dataset.Filter) error {
	switch {
	case c.tables != nil:
		ds, err := cursor.Materialize(stagingDir, stagingDir)
		if err != nil {
			return err
		}
		return c.tables(ctx, ds, filters)

	case c.cursor != nil:
		cur, err := cursor.Open(stagingDir, stagingDir)
		if err != nil {
			return err
		}

		err = c.cursor(ctx, cur, filters)
		if closeErr := cur.Close(); err == nil {
			err = closeErr
		}
		return err

	default:
		return ErrNoConsumer
	}
}

package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/materials-commons/tablexfer/pkg/clog"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/worker"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// NamedQuery is one result set of a download. Params names, in placeholder
// order, the filter keys bound to the query's positional parameters; a key
// missing from the transfer's filters binds NULL.
type NamedQuery struct {
	Table  string   `yaml:"table"`
	SQL    string   `yaml:"sql"`
	Params []string `yaml:"params"`
	Keys   []string `yaml:"keys"`
}

type queryFile struct {
	Queries []NamedQuery `yaml:"queries"`
}

// LoadQueries reads a YAML file with a top level "queries" list.
func LoadQueries(path string) ([]NamedQuery, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to read queries file %s", path)
	}

	var qf queryFile
	if err := yaml.Unmarshal(b, &qf); err != nil {
		return nil, errors.Wrapf(err, "Invalid queries file %s", path)
	}

	for i, q := range qf.Queries {
		if q.SQL == "" {
			return nil, fmt.Errorf("query %d (%s) in %s has no sql", i+1, q.Table, path)
		}
	}

	return qf.Queries, nil
}

// Args returns the query's positional arguments taken from filters.
func (q NamedQuery) Args(filters []dataset.Filter) []any {
	args := make([]any, 0, len(q.Params))
	for _, p := range q.Params {
		var value any
		for _, f := range filters {
			if f.Key == p {
				value = f.Value
				break
			}
		}
		args = append(args, value)
	}

	return args
}

// QueryProducer serves downloads by running the queries in order against db,
// one result set per query.
func QueryProducer(db *sql.DB, queries []NamedQuery) worker.Producer {
	return worker.ProducerFunc(func(ctx context.Context, transferID string, filters []dataset.Filter) (dataset.Reader, error) {
		clog.ForTransfer(transferID).Debugf("Running %d queries", len(queries))
		return &queryReader{ctx: ctx, db: db, queries: queries, filters: filters, next: 0}, nil
	})
}

// queryReader runs each query when its result set is reached.
type queryReader struct {
	ctx     context.Context
	db      *sql.DB
	queries []NamedQuery
	filters []dataset.Filter
	next    int
	current *Reader
	err     error
}

func (r *queryReader) NextResultSet() bool {
	if r.err != nil {
		return false
	}

	if r.current != nil {
		if err := r.current.Close(); err != nil {
			r.err = err
			return false
		}
		r.current = nil
	}

	if r.next >= len(r.queries) {
		return false
	}

	q := r.queries[r.next]
	r.next++

	rows, err := r.db.QueryContext(r.ctx, q.SQL, q.Args(r.filters)...)
	if err != nil {
		r.err = fmt.Errorf("query for %s: %w", q.Table, err)
		return false
	}

	r.current = New(rows, q.Table).WithKeys(q.Keys...)
	if !r.current.NextResultSet() {
		r.err = r.current.Err()
		if r.err == nil {
			r.err = fmt.Errorf("query for %s returned no result set", q.Table)
		}
		return false
	}

	return true
}

func (r *queryReader) Next() bool {
	if r.current == nil {
		return false
	}

	return r.current.Next()
}

func (r *queryReader) Table() string {
	if r.current == nil {
		return ""
	}

	return r.current.Table()
}

func (r *queryReader) Columns() []dataset.Column {
	if r.current == nil {
		return nil
	}

	return r.current.Columns()
}

func (r *queryReader) Row() (dataset.Row, error) {
	if r.current == nil {
		return nil, dataset.ErrNoCurrentRecord
	}

	return r.current.Row()
}

func (r *queryReader) Err() error {
	if r.err != nil {
		return r.err
	}

	if r.current != nil {
		return r.current.Err()
	}

	return nil
}

func (r *queryReader) Close() error {
	if r.current == nil {
		return nil
	}

	err := r.current.Close()
	r.current = nil
	return err
}

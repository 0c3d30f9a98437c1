// Package sqlsink loads uploaded result sets into a database.
package sqlsink

import (
	"context"
	"fmt"
	"strings"

	"github.com/materials-commons/tablexfer/pkg/cursor"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/worker"
	"gorm.io/gorm"
)

const DefaultBatchSize = 500

// Loader writes each uploaded result set into the table of the same name,
// creating it when it does not exist. Result sets without columns, such as the
// placeholders for missing table orders, are skipped.
//
// A created table only gets a primary key when one was registered for it with
// WithPrimaryKey. The identity flag carried in chunk names says that a table
// has a key, not which columns form it, so key markers on uploaded columns are
// not used for the table definition.
type Loader struct {
	db          *gorm.DB
	batchSize   int
	primaryKeys map[string][]string
}

func NewLoader(db *gorm.DB, batchSize int) *Loader {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	return &Loader{db: db, batchSize: batchSize, primaryKeys: make(map[string][]string)}
}

// WithPrimaryKey sets the key columns used when table is created.
func (l *Loader) WithPrimaryKey(table string, columns ...string) *Loader {
	l.primaryKeys[table] = columns
	return l
}

// Consumer returns the loader as a streaming upload consumer.
func (l *Loader) Consumer() worker.Consumer {
	return worker.ConsumeCursor(l.Load)
}

func (l *Loader) Load(ctx context.Context, c *cursor.Cursor, _ []dataset.Filter) error {
	for c.NextResultSet() {
		columns := c.Columns()
		if len(columns) == 0 {
			continue
		}

		if err := l.createTable(ctx, c.Table(), columns); err != nil {
			return err
		}

		if err := l.loadRows(ctx, c, columns); err != nil {
			return err
		}
	}

	return c.Err()
}

func (l *Loader) loadRows(ctx context.Context, c *cursor.Cursor, columns []dataset.Column) error {
	table := c.Table()
	batch := make([]map[string]interface{}, 0, l.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		if err := l.db.WithContext(ctx).Table(table).Create(batch).Error; err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}

		batch = make([]map[string]interface{}, 0, l.batchSize)
		return nil
	}

	for c.Next() {
		row, err := c.Row()
		if err != nil {
			return err
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			record[col.Name] = row[i].Interface()
		}

		batch = append(batch, record)
		if len(batch) == l.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := c.Err(); err != nil {
		return err
	}

	return flush()
}

func (l *Loader) createTable(ctx context.Context, table string, columns []dataset.Column) error {
	quote := l.db.Statement.Quote
	mysql := l.db.Dialector.Name() == "mysql"

	var defs []string
	for _, col := range columns {
		defs = append(defs, quote(col.Name)+" "+sqlType(col.Type, mysql))
	}

	var keys []string
	for _, name := range l.primaryKeys[table] {
		keys = append(keys, quote(name))
	}

	if len(keys) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(defs, ", "))
	if err := l.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	return nil
}

func sqlType(t dataset.ColumnType, mysql bool) string {
	switch t {
	case dataset.TypeInt32:
		return "INT"
	case dataset.TypeInt64:
		return "BIGINT"
	case dataset.TypeBool:
		return "BOOLEAN"
	case dataset.TypeDecimal:
		return "DECIMAL(38,10)"
	case dataset.TypeBytes:
		if mysql {
			return "LONGBLOB"
		}
		return "BLOB"
	case dataset.TypeGUID:
		return "CHAR(36)"
	case dataset.TypeDateTime, dataset.TypeDateTimeOffset:
		if mysql {
			return "DATETIME(6)"
		}
		return "DATETIME"
	default:
		if mysql {
			return "LONGTEXT"
		}
		return "TEXT"
	}
}

package jobstate

import (
	"fmt"
	"time"

	"github.com/apex/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxDBRetries = 5

var dbRetryWait = 3 * time.Second

// OpenDB connects to the database, trying up to maxDBRetries times and
// sleeping between attempts. driver is "mysql" or "sqlite".
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var (
		err error
		db  *gorm.DB
	)

	for retryCount := 1; ; retryCount++ {
		db, err = gorm.Open(dialector, gormConfig)
		switch {
		case err == nil:
			return db, nil
		case retryCount >= maxDBRetries:
			return nil, fmt.Errorf("failed to open %s db after %d attempts: %w", driver, retryCount, err)
		default:
			log.Warnf("Unable to connect to %s db (attempt %d): %s", driver, retryCount, err)
			time.Sleep(dbRetryWait)
		}
	}
}

// MustOpenDB is OpenDB that exits the process when no connection can be made.
func MustOpenDB(driver, dsn string) *gorm.DB {
	db, err := OpenDB(driver, dsn)
	if err != nil {
		log.Fatalf("%s", err)
	}

	return db
}

// WithTxRetry runs fn in a transaction, retrying failed transactions up to
// three times.
func WithTxRetry(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error

	for i := 0; i < 3; i++ {
		err = db.Transaction(fn)
		if err == nil {
			break
		}
	}

	return err
}

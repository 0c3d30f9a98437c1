package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/materials-commons/tablexfer/pkg/config"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
	"github.com/materials-commons/tablexfer/pkg/sqlsink"
	"github.com/materials-commons/tablexfer/pkg/sqlsource"
	"github.com/materials-commons/tablexfer/pkg/worker"
	"github.com/spf13/cobra"
)

const (
	keyPort          = "XFER_PORT"
	keyJobStore      = "XFER_JOB_STORE"
	keyDBDriver      = "XFER_DB_DRIVER"
	keyDBDSN         = "XFER_DB_DSN"
	keyRedisAddr     = "XFER_REDIS_ADDR"
	keyRedisPassword = "XFER_REDIS_PASSWORD"
	keyQueriesFile   = "XFER_QUERIES_FILE"
	keyQueueSize     = "XFER_QUEUE_SIZE"
	keyIdleMinutes   = "XFER_JOB_IDLE_MINUTES"
	keyLoadBatchSize = "XFER_LOAD_BATCH_SIZE"
)

var dotenvPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xferd",
	Short: "Table transfer server",
	Long: `Table transfer server. Serves the large data download and upload protocol,
producing downloads from the configured queries and loading uploads into the
configured database.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := config.MustLoadDotenv(dotenvPath)
		if err := Run(ctx, args, c); err != nil {
			log.Fatalf("xferd: %s", err)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&dotenvPath, "config", "c", os.Getenv("XFER_DOTENV_PATH"), "dotenv file to load settings from")
}

func Run(ctx context.Context, args []string, c config.Configer) error {
	settings, err := config.LoadTransferSettings(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(settings.TempDir, 0755); err != nil {
		return err
	}

	log.Infof("Transfer dir: %s", settings.TempDir)

	store, err := createJobStore(c)
	if err != nil {
		return err
	}

	producer, consumer, err := createDataEndpoints(c)
	if err != nil {
		return err
	}

	executor := worker.NewExecutor(settings.Parallelism, c.GetIntKeyWithDefault(keyQueueSize, 64))
	executor.Start(ctx)
	defer executor.Shutdown()

	w := worker.New(store, settings, executor, producer, consumer)

	janitor := worker.NewJanitor(
		worker.WithJobStore(store),
		worker.WithTempDir(settings.TempDir),
		worker.WithAllowedIdleTime(time.Duration(c.GetIntKeyWithDefault(keyIdleMinutes, 60))*time.Minute),
		worker.WithRemoveJobHandler(w.Cancel),
	)
	go janitor.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupRoutes(RouteDependencies{
		e:      e,
		config: c,
		worker: w,
	})

	addr := fmt.Sprintf(":%s", c.GetKeyWithDefault(keyPort, "1360"))
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Unable to start web server: %s", err)
		}
	}()

	log.Infof("Listening on %s", addr)

	<-ctx.Done()
	log.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return e.Shutdown(shutdownCtx)
}

func createJobStore(c config.Configer) (jobstate.Store, error) {
	switch kind := c.GetKeyWithDefault(keyJobStore, "memory"); kind {
	case "memory":
		return jobstate.NewMemoryStore(jobstate.DefaultJobTTL), nil

	case "db":
		db, err := jobstate.OpenDB(c.GetKeyWithDefault(keyDBDriver, "sqlite"), c.MustGetKey(keyDBDSN))
		if err != nil {
			return nil, err
		}

		store := jobstate.NewGormStore(db)
		if err := store.Migrate(); err != nil {
			return nil, err
		}
		return store, nil

	case "redis":
		client := jobstate.NewRedisClient(c.MustGetKey(keyRedisAddr), c.GetKey(keyRedisPassword), 0)
		return jobstate.NewRedisStore(client, jobstate.DefaultJobTTL), nil

	default:
		return nil, fmt.Errorf("unknown %s %q", keyJobStore, kind)
	}
}

// createDataEndpoints builds the download producer and upload consumer from
// the configured database. Without a database both directions fail their
// jobs.
func createDataEndpoints(c config.Configer) (worker.Producer, worker.Consumer, error) {
	dsn := c.GetKey(keyDBDSN)
	if dsn == "" {
		log.Warnf("%s not set, transfers will fail", keyDBDSN)
		return nil, worker.Consumer{}, nil
	}

	db, err := jobstate.OpenDB(c.GetKeyWithDefault(keyDBDriver, "sqlite"), dsn)
	if err != nil {
		return nil, worker.Consumer{}, err
	}

	loader := sqlsink.NewLoader(db, c.GetIntKeyWithDefault(keyLoadBatchSize, sqlsink.DefaultBatchSize))
	consumer := loader.Consumer()

	queriesFile := c.GetKey(keyQueriesFile)
	if queriesFile == "" {
		log.Warnf("%s not set, downloads will fail", keyQueriesFile)
		return nil, consumer, nil
	}

	queries, err := sqlsource.LoadQueries(queriesFile)
	if err != nil {
		return nil, consumer, err
	}

	// Uploaded tables named like a query get that query's key columns.
	for _, q := range queries {
		if len(q.Keys) > 0 {
			loader.WithPrimaryKey(q.Table, q.Keys...)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, consumer, err
	}

	return sqlsource.QueryProducer(sqlDB, queries), consumer, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

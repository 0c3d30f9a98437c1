package cmd

import (
	"context"

	"github.com/apex/log"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
	"github.com/materials-commons/tablexfer/pkg/sqlsource"
	"github.com/spf13/cobra"
)

var (
	uploadDBDriver string
	uploadDSN      string
	uploadQueries  string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload query results from a local database to the server",
	Long: `Upload runs each query in the queries file against a local database and
sends the results to the server, one table per query. Filters are passed both
to the local queries and to the server.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		filters := mustParseFilters()
		ctx := context.Background()

		queries, err := sqlsource.LoadQueries(uploadQueries)
		if err != nil {
			log.Fatalf("%s", err)
		}

		db, err := jobstate.OpenDB(uploadDBDriver, uploadDSN)
		if err != nil {
			log.Fatalf("%s", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("%s", err)
		}
		defer sqlDB.Close()

		r, err := sqlsource.QueryProducer(sqlDB, queries).Produce(ctx, "", filters)
		if err != nil {
			log.Fatalf("%s", err)
		}
		defer r.Close()

		if err := client.SendData(ctx, r, filters); err != nil {
			log.Fatalf("Upload failed: %s", err)
		}

		log.Infof("Uploaded %d table(s)", len(queries))
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadDBDriver, "db-driver", "sqlite", "local database driver, sqlite or mysql")
	uploadCmd.Flags().StringVar(&uploadDSN, "dsn", "", "local database dsn")
	uploadCmd.Flags().StringVarP(&uploadQueries, "queries", "q", "", "yaml file of queries to upload")
	_ = uploadCmd.MarkFlagRequired("dsn")
	_ = uploadCmd.MarkFlagRequired("queries")
}

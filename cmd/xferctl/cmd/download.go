package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	streamDownload bool
	maxRowsShown   int
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download result sets from the server and print them",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		filters := mustParseFilters()
		ctx := context.Background()

		if streamDownload {
			cur, err := client.GetDataReader(ctx, filters)
			if err != nil {
				log.Fatalf("Download failed: %s", err)
			}
			defer cur.Close()

			if err := printReader(os.Stdout, cur, maxRowsShown); err != nil {
				log.Fatalf("Unable to read download: %s", err)
			}
			return
		}

		ds, err := client.GetData(ctx, filters)
		if err != nil {
			log.Fatalf("Download failed: %s", err)
		}

		if err := printReader(os.Stdout, ds.Reader(), maxRowsShown); err != nil {
			log.Fatalf("Unable to print download: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().BoolVarP(&streamDownload, "stream", "s", false, "read the download through a cursor instead of loading it")
	downloadCmd.Flags().IntVarP(&maxRowsShown, "rows", "n", 20, "rows to print per table, 0 for all")
}

// printReader renders each result set of r as a table, showing at most
// maxRows rows of each.
func printReader(w io.Writer, r dataset.Reader, maxRows int) error {
	for r.NextResultSet() {
		columns := r.Columns()
		header := make([]string, 0, len(columns))
		for _, col := range columns {
			header = append(header, fmt.Sprintf("%s (%s)", col.Name, col.Type))
		}

		table := tablewriter.NewWriter(w)
		table.SetHeader(header)
		table.SetAutoFormatHeaders(false)

		total := 0
		for r.Next() {
			total++
			if maxRows > 0 && total > maxRows {
				continue
			}

			row, err := r.Row()
			if err != nil {
				return err
			}

			cells := make([]string, 0, len(row))
			for _, v := range row {
				cells = append(cells, v.String())
			}
			table.Append(cells)
		}

		if err := r.Err(); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(w, "%s: %d row(s)\n", r.Table(), total)
		if len(columns) > 0 {
			table.Render()
		}
	}

	return r.Err()
}

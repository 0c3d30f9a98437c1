package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/materials-commons/tablexfer/pkg/config"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/xferclient"
	"github.com/spf13/cobra"
)

var (
	dotenvPath string
	baseURL    string
	filterArgs []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xferctl",
	Short: "Client for the table transfer server",
	Long: `Client for the table transfer server. Downloads result sets from a server
and uploads tables from a local database to it.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dotenvPath, "config", "c", os.Getenv("XFER_DOTENV_PATH"), "dotenv file to load settings from")
	rootCmd.PersistentFlags().StringVarP(&baseURL, "url", "u", "", "server base url, overrides XFER_BASE_URL")
	rootCmd.PersistentFlags().StringArrayVarP(&filterArgs, "filter", "f", nil, "filter as key=value, may be repeated")
}

// newClient builds a client from the dotenv settings and command line flags.
func newClient() *xferclient.Client {
	c := config.MustLoadDotenv(dotenvPath)

	settings, err := config.LoadTransferSettings(c)
	if err != nil {
		log.Fatalf("Invalid settings: %s", err)
	}

	if baseURL != "" {
		settings.BaseURL = baseURL
	}

	if settings.BaseURL == "" {
		log.Fatalf("No server url, set %s or pass --url", config.KeyBaseURL)
	}

	if err := os.MkdirAll(settings.TempDir, 0755); err != nil {
		log.Fatalf("Unable to create %s: %s", settings.TempDir, err)
	}

	return xferclient.New(settings)
}

func parseFilters(args []string) ([]dataset.Filter, error) {
	filters := make([]dataset.Filter, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", arg)
		}
		filters = append(filters, dataset.Filter{Key: key, Value: value})
	}

	return filters, nil
}

func mustParseFilters() []dataset.Filter {
	filters, err := parseFilters(filterArgs)
	if err != nil {
		log.Fatalf("%s", err)
	}

	return filters
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

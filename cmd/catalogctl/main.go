// Command catalogctl inspects catalogue filter paths and seeds or warms a
// catalogue database.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	envFile  string
	tenantID string
	verbose  bool

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Catalogue filter path and data tool",
	Long: `catalogctl works with catalogue filter paths and the catalogue database.

Available subcommands:
  decode - Parse a filter path into a selection
  encode - Build a canonical filter path from flags
  seed   - Create rubrics, attributes and brands from a YAML file
  warm   - Pre-compute the first catalogue page of rubrics`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				logger.WithError(err).Warn("Failed to load env file")
			}
		}
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment from file")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "", "tenant ID for database commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(decodeCmd, encodeCmd, seedCmd, warmCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

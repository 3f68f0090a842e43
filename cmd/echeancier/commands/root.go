package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mverdier/echeancier/internal/config"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "echeancier",
	Short: "Echeancier - Deadline tracking for accounting workloads",
	Long: `Echeancier tracks fiscal deadlines (échéances) for an accounting firm:
VAT returns, income and corporate tax filings, annual accounts and closings.

It keeps a locally cached view of the deadline collection, synchronized with
the backend over a realtime push channel, and surfaces approaching and
overdue deadlines before they bite.`,
	Version: version,
	// Prevent silent success when flags are passed without a subcommand
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the echeancier.yml configuration file")
}

package cmd

import (
	"fmt"
	"os"

	"bank-reconciliation-engine/internal/store"
	"bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	dbPath  string
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Bank statement auto-reconciliation engine",
	Long: `Reconciler matches incoming bank statement lines against open
ledger entries (invoices, batch payments, sale orders), ranks the
candidates and optionally auto-reconciles them within configurable
tolerance.

Examples:
  reconciler run --db ledger.db --batch-size 100
  reconciler match --db ledger.db --line 42
  reconciler import statements.csv --db ledger.db --company 1`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "reconciler.db", "path to the SQLite database")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
	}

	viper.SetEnvPrefix("RECONCILER")
	viper.AutomaticEnv()

	level := logger.InfoLevel
	if viper.GetBool("verbose") {
		level = logger.DebugLevel
	}
	log, err := logger.NewLogger(&logger.Config{Level: level, Format: logger.TextFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %s\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogger(log)
}

// openStore opens the configured SQLite store
func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(viper.GetString("db"))
}

// ExitCode maps an error to a process exit code
func ExitCode(err error) int {
	if engineErr, ok := errors.AsEngineError(err); ok {
		return engineErr.GetExitCode()
	}
	return 1
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

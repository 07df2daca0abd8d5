package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"ride-reconciliation-service/cmd/reconciler/config"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Ride booking reconciliation tool",
	Long: `Reconciler compares the company ride-booking ledger with supplier
invoices and splits ride costs across employee departments.

Examples:
  reconciler reconcile --company-file rides.xlsx --supplier1-file bon_tour.xlsx
  reconciler reconcile --company-file rides.csv --supplier2-file gett.xlsx --output-format json
  reconciler allocate --company-file rides.xlsx --employee-file employees.xlsx --output-format csv
  reconciler match-gett --company-file rides.xlsx --gett-file gett.xlsx
  reconciler --version`,
	Version:       getVersionString(),
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command; an interrupt cancels the running command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(errors.ConfigurationError(errors.CodeMissingConfig, "config", cfgFile, err).GetExitCode())
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Read environment variables that match, e.g. RECONCILER_OUTPUT_FORMAT
	viper.SetEnvPrefix("RECONCILER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// bindFlags binds the flags of the running command. Commands share flag
// names, so binding happens when a command runs rather than at init.
func bindFlags(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	return bindErr
}

// loadAppConfig resolves the configuration and installs the global logger
func loadAppConfig() (*config.AppConfig, logger.Logger, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
			WithSuggestion("Check the configuration file and command-line flags")
	}

	log, err := logger.NewLogger(appConfig.Log)
	if err != nil {
		return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", appConfig.Log.Level, err)
	}
	logger.SetGlobalLogger(log)
	return appConfig, log.WithComponent("cli"), nil
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

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/logrusorgru/aurora/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aqasim81/schemaledger/internal/config"
)

const version = "0.2.0"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// AppLogger is the structured logger handed to the executor.
var AppLogger = zap.NewNop() //nolint:gochecknoglobals // set once in PersistentPreRunE

// useColor controls aurora output; --no-color and NO_COLOR turn it off.
var useColor = true //nolint:gochecknoglobals // set once in PersistentPreRunE

// rootCmd is the base command for the migrate CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "migrate",
	Version: version,
	Short:   "Versioned, checksum-verified schema migrations",
	Long: `migrate applies ordered V<version>__<name>.sql migrations exactly once,
records each one in a history table in the same transaction, and refuses to
run when an applied migration has been edited since. Works with PostgreSQL,
MySQL and SQLite.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addRootFlags(rootCmd)
}

func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "migrate.yml", "path to configuration file")
	cmd.PersistentFlags().String("database-url", "", "database URL (postgres://, mysql://, sqlite:)")
	cmd.PersistentFlags().String("driver", "", "backend driver; derived from the URL scheme when empty")
	cmd.PersistentFlags().String("migrations-dir", "", "path to migration files")
	cmd.PersistentFlags().String("history-table", "", "name of the history table")
	cmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	cmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
}

// Execute runs the root command. Called from main. SIGINT and SIGTERM cancel
// the run between migrations; a migration already in flight still commits or
// rolls back as a whole.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	_ = AppLogger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, aurora.NewAurora(useColor).Red("migrate:"), err)
		stop()
		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	config.MergeEnv(cfg)
	mergeFlags(cmd, cfg)

	noColor, _ := cmd.Flags().GetBool("no-color")
	useColor = !noColor && os.Getenv("NO_COLOR") == ""

	verbose, _ := cmd.Flags().GetBool("verbose")

	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	AppConfig = cfg
	AppLogger = logger

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("database-url") {
		cfg.DatabaseURL, _ = cmd.Flags().GetString("database-url")
	}

	if cmd.Flags().Changed("driver") {
		cfg.Driver, _ = cmd.Flags().GetString("driver")
	}

	if cmd.Flags().Changed("migrations-dir") {
		cfg.MigrationsDir, _ = cmd.Flags().GetString("migrations-dir")
	}

	if cmd.Flags().Changed("history-table") {
		cfg.HistoryTable, _ = cmd.Flags().GetString("history-table")
	}
}

// newLogger writes warnings and errors to stderr; --verbose adds the
// per-migration info and debug entries.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return zc.Build()
}

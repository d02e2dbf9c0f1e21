package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schemaledger/internal/config"
	"github.com/aqasim81/schemaledger/internal/executor"
)

var verifyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "verify",
	Short: "Check history against the migrations directory",
	Long: `Run the validation apply performs before touching the schema: every
applied migration must still be present with its original checksum. Exits
non-zero on the first (lowest-version) problem. Never applies a migration,
but creates the history table if it does not exist yet.`,
	RunE: runVerify,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := newPrinter(cmd.OutOrStdout())

	if cfg.DatabaseURL == "" {
		return config.ErrMissingDatabaseURL
	}

	catalog, err := loadCatalog(cfg.MigrationsDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	conn, err := connect(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer conn.Close()

	exec, err := executor.New(conn.drv,
		executor.WithLogger(AppLogger),
		executor.WithTableName(cfg.HistoryTable),
	)
	if err != nil {
		return err
	}

	if err := exec.Verify(ctx, catalog); err != nil {
		out.failure("Verification failed.")
		return err
	}

	out.success("History matches %d migration file(s).", catalog.Len())

	return nil
}

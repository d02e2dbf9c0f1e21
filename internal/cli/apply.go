package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schemaledger/internal/config"
	"github.com/aqasim81/schemaledger/internal/executor"
	"github.com/aqasim81/schemaledger/internal/metrics"
)

var applyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "apply",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations in ascending version order. Each migration runs
in its own transaction together with its history record. The run stops at the
first failure; migrations applied before it stay applied.`,
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addApplyFlags(applyCmd)
	rootCmd.AddCommand(applyCmd)
}

func addApplyFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	cmd.Flags().Bool("fake", false, "record pending migrations as applied without running them")
	cmd.Flags().Uint64("target", 0, "apply only up to and including this version")
	cmd.Flags().Bool("async", false, "run database work on a dedicated worker")
	cmd.Flags().Bool("no-lock", false, "do not take the backend's run lock")
	cmd.Flags().String("metrics-textfile", "", "write Prometheus metrics to this file after the run")
	cmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	cmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := newPrinter(cmd.OutOrStdout())

	mergeApplyFlags(cmd, cfg)

	if cfg.DatabaseURL == "" {
		return config.ErrMissingDatabaseURL
	}

	catalog, err := loadCatalog(cfg.MigrationsDir)
	if err != nil {
		return err
	}

	if catalog.Len() == 0 {
		out.printf("No migration files found.\n")
		return nil
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

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	fake, _ := cmd.Flags().GetBool("fake")
	textfile, _ := cmd.Flags().GetString("metrics-textfile")

	recorder := metrics.New()

	opts := []executor.Option{
		executor.WithLogger(AppLogger),
		executor.WithLocker(conn.locker),
		executor.WithTableName(cfg.HistoryTable),
		executor.WithDryRun(dryRun),
		executor.WithFake(fake),
		executor.WithProgressCallback(func(event executor.ProgressEvent) {
			recorder.Observe(event)
			printProgress(out, event)
		}),
	}

	if cmd.Flags().Changed("target") {
		target, _ := cmd.Flags().GetUint64("target")
		opts = append(opts, executor.WithTarget(target))
	}

	exec, err := executor.New(conn.drv, opts...)
	if err != nil {
		return err
	}

	if dryRun {
		out.printf("\n--- DRY RUN (no changes will be made) ---\n")
	}

	report, applyErr := exec.Apply(ctx, catalog)

	if textfile != "" {
		if err := recorder.WriteTextfile(textfile); err != nil && applyErr == nil {
			applyErr = err
		}
	}

	if applyErr != nil {
		if len(report.Applied) > 0 {
			out.warning("\n%d migration(s) applied before the failure.", len(report.Applied))
		}

		return applyErr
	}

	switch {
	case report.DryRun:
		out.printf("\nDry run complete: %d migration(s) would be applied.\n", len(report.Pending))
	case len(report.Applied) == 0:
		out.success("Schema is up to date.")
	default:
		out.success("\nApply complete: %d applied.", len(report.Applied))
	}

	return nil
}

// mergeApplyFlags overrides config with apply's explicitly-set flags.
func mergeApplyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("lock-timeout") {
		cfg.LockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	if cmd.Flags().Changed("statement-timeout") {
		cfg.StatementTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	if cmd.Flags().Changed("async") {
		cfg.Async, _ = cmd.Flags().GetBool("async")
	}

	if noLock, _ := cmd.Flags().GetBool("no-lock"); noLock {
		cfg.UseLock = false
	}
}

func printProgress(out *printer, event executor.ProgressEvent) {
	m := event.Migration

	switch event.Status {
	case executor.StatusStarting:
		out.printf("  Applying %s ... ", m.Identity())
	case executor.StatusCompleted:
		out.success("done (%s)", event.Duration.Truncate(time.Millisecond))
	case executor.StatusSkipped:
		out.printf("  Would apply %s\n", m.Identity())
	case executor.StatusFailed:
		out.failure("FAILED")
		out.printf("    Error: %v\n", event.Error)
	}
}

func formatVersion(v uint64) string {
	return fmt.Sprintf("V%d", v)
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schemaledger/internal/config"
	"github.com/aqasim81/schemaledger/internal/executor"
	"github.com/aqasim81/schemaledger/internal/migration"
)

// Per-migration states shown by status.
const (
	stateApplied  = "applied"
	statePending  = "pending"
	stateMissing  = "missing"
	stateDrifted  = "drifted"
	stateOrphaned = "orphaned"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Compare the migrations directory with the history table and show each
version as applied, pending, missing, drifted (content changed since it was
applied) or orphaned (recorded but no longer in the directory). The history
table is created if it does not exist yet.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addStatusFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func addStatusFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", config.DefaultFormat, "output format (text, json)")
}

type statusEntry struct {
	Version   uint64 `json:"version"`
	Name      string `json:"name"`
	State     string `json:"state"`
	AppliedOn string `json:"applied_on,omitempty"`
	Checksum  string `json:"checksum"`
}

type statusReport struct {
	HistoryTable  string        `json:"history_table"`
	LatestApplied *uint64       `json:"latest_applied,omitempty"`
	Migrations    []statusEntry `json:"migrations"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cmd.Flags().Changed("format") {
		cfg.Format, _ = cmd.Flags().GetString("format")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

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

	// JSON output stays machine-readable: connection chatter is dropped.
	var chatter io.Writer = cmd.OutOrStdout()
	if cfg.Format == "json" {
		chatter = io.Discard
	}

	conn, err := connect(ctx, cfg, chatter)
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

	state, err := exec.Status(ctx, catalog)
	if err != nil {
		return err
	}

	report := buildStatusReport(cfg.HistoryTable, catalog, state)

	if cfg.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	return printStatus(newPrinter(cmd.OutOrStdout()), report)
}

// buildStatusReport merges catalog and history into one list ordered by version.
func buildStatusReport(table string, catalog *migration.Catalog, state *executor.State) statusReport {
	report := statusReport{HistoryTable: table, Migrations: []statusEntry{}}

	if latest, ok := state.MaxApplied(); ok {
		report.LatestApplied = &latest
	}

	applied := make(map[uint64]migration.Applied, len(state.Applied))
	for _, rec := range state.Applied {
		applied[rec.Version] = rec
	}

	states := make(map[uint64]string)
	for _, m := range state.Pending {
		states[m.Version] = statePending
	}

	for _, m := range state.Missing {
		states[m.Version] = stateMissing
	}

	for _, d := range state.Drifted {
		states[d.Migration.Version] = stateDrifted
	}

	for _, m := range catalog.Migrations() {
		entry := statusEntry{
			Version:  m.Version,
			Name:     m.Name,
			State:    stateApplied,
			Checksum: migration.FormatChecksum(m.Checksum),
		}

		if s, ok := states[m.Version]; ok {
			entry.State = s
		}

		if rec, ok := applied[m.Version]; ok {
			entry.AppliedOn = migration.FormatAppliedOn(rec.AppliedOn)
		}

		report.Migrations = append(report.Migrations, entry)
	}

	for _, rec := range state.Orphaned {
		report.Migrations = append(report.Migrations, statusEntry{
			Version:   rec.Version,
			Name:      rec.Name,
			State:     stateOrphaned,
			AppliedOn: migration.FormatAppliedOn(rec.AppliedOn),
			Checksum:  migration.FormatChecksum(rec.Checksum),
		})
	}

	sort.SliceStable(report.Migrations, func(i, j int) bool {
		return report.Migrations[i].Version < report.Migrations[j].Version
	})

	return report
}

func printStatus(out *printer, report statusReport) error {
	if len(report.Migrations) == 0 {
		out.printf("No migrations found.\n")
		return nil
	}

	// STATE is the trailing cell so its color escapes stay out of the
	// widths tabwriter computes.
	w := tabwriter.NewWriter(out.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED ON\tSTATE")

	counts := make(map[string]int)

	for _, e := range report.Migrations {
		counts[e.State]++

		appliedOn := e.AppliedOn
		if appliedOn == "" {
			appliedOn = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatVersion(e.Version), e.Name, appliedOn, out.stateColor(e.State))
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}

	out.printf("\n%d applied, %d pending", counts[stateApplied]+counts[stateDrifted], counts[statePending])

	if n := counts[stateMissing] + counts[stateDrifted]; n > 0 {
		out.printf(", %d problem(s)", n)
	}

	if n := counts[stateOrphaned]; n > 0 {
		out.printf(", %d orphaned", n)
	}

	out.printf(".\n")

	return nil
}

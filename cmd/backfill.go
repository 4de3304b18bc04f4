package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nolasoft/hoftrack/internal/backfill"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Retrofit pattern extraction onto existing rows",
	Long:  "Runs one backfill pass over the stored table. preview reports what migrate would change, migrate rewrites rows and snapshots the raw name into original_name, verify recomputes extraction from the snapshots and reports drift, rollback restores the raw names.",
}

func runBackfill(mode backfill.Mode) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("backfill"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		run, err := backfill.NewRunner(st, cfg.Backfill.SampleLimit).Execute(ctx, mode)
		if err != nil {
			return err
		}
		if err := writeReport(os.Stdout, run); err != nil {
			return err
		}
		if run.Failed > 0 {
			return eris.Errorf("backfill %s: %d of %d rows failed", mode, run.Failed, run.Scanned)
		}
		return nil
	}
}

func init() {
	for _, mode := range []struct {
		mode  backfill.Mode
		short string
	}{
		{backfill.ModePreview, "Report what migrate would change, without writing"},
		{backfill.ModeMigrate, "Extract structured fields from raw names, backing up originals"},
		{backfill.ModeVerify, "Recompute extraction from backups and report drift"},
		{backfill.ModeRollback, "Restore raw names from backups"},
	} {
		backfillCmd.AddCommand(&cobra.Command{
			Use:   string(mode.mode),
			Short: mode.short,
			RunE:  runBackfill(mode.mode),
		})
	}

	backfillCmd.PersistentFlags().StringVar(&outputFormat, "output", "json", "report format: json or yaml")
	rootCmd.AddCommand(backfillCmd)
}

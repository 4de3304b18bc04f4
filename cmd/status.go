package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nolasoft/hoftrack/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show extraction coverage for the stored table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("backfill"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		maxNum, err := st.MaxParticipantNumber(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		formatStats(os.Stdout, stats, maxNum)
		return nil
	},
}

// formatStats writes a tabular coverage summary to w.
func formatStats(out io.Writer, stats *store.Stats, maxNum int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "METRIC\tCOUNT")
	_, _ = fmt.Fprintln(w, "------\t-----")
	_, _ = fmt.Fprintf(w, "total entries\t%d\n", stats.Total)
	_, _ = fmt.Fprintf(w, "highest participant\t%d\n", maxNum)
	_, _ = fmt.Fprintf(w, "migrated\t%d\n", stats.Migrated)
	_, _ = fmt.Fprintf(w, "with notes\t%d\n", stats.WithNotes)
	_, _ = fmt.Fprintf(w, "with age\t%d\n", stats.WithAge)
	_, _ = fmt.Fprintf(w, "with elapsed time\t%d\n", stats.WithElapsedTime)
	_, _ = fmt.Fprintf(w, "with completion count\t%d\n", stats.WithCompletionCount)
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

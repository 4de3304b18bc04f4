package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("backfill"); err != nil {
			return err
		}
		if !clearYes {
			return eris.New("clear: refusing to delete all entries without --yes")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		n, err := st.ClearEntries(ctx)
		if err != nil {
			return eris.Wrap(err, "clear")
		}
		zap.L().Info("entries cleared", zap.Int64("deleted", n))
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deletion")
	rootCmd.AddCommand(clearCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nolasoft/hoftrack/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hoftrack",
	Short: "Creole Creamery hall of fame tracker",
	Long:  "Scrapes the hall of fame leaderboard, extracts structured fields from entry names via LLM with pattern fallback, and maintains the results in Postgres or SQLite.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

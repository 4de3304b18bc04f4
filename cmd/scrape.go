package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nolasoft/hoftrack/internal/extract"
	"github.com/nolasoft/hoftrack/internal/reconcile"
	"github.com/nolasoft/hoftrack/internal/scrape"
	"github.com/nolasoft/hoftrack/pkg/anthropic"
)

var scrapeNoLLM bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the leaderboard and reconcile it into the store",
	Long:  "Fetches the hall of fame page, parses the table, extracts structured fields from each name (LLM first, pattern fallback), and inserts or updates rows keyed by participant number.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		fetcher := scrape.NewFetcher(cfg.Scrape.URL, time.Duration(cfg.Scrape.TimeoutSecs)*time.Second)
		html, err := fetcher.Fetch(ctx)
		if err != nil {
			return err
		}

		raws, err := scrape.ParseTable(html)
		if err != nil {
			return err
		}

		parser := buildParser()
		parsed := parser.Parse(ctx, raws)

		sum := reconcile.New(st).Run(ctx, parsed)
		if err := writeReport(os.Stdout, sum); err != nil {
			return err
		}
		if sum.Failed > 0 {
			return eris.Errorf("scrape: %d of %d rows failed to persist", sum.Failed, sum.Scanned)
		}
		return nil
	},
}

// buildParser assembles the extraction chain. LLM extraction is skipped when
// --no-llm is set or no API key is configured; the pattern strategy alone
// still yields a complete parse.
func buildParser() *extract.Parser {
	timeout := time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second

	if scrapeNoLLM || cfg.Anthropic.Key == "" {
		if !scrapeNoLLM {
			zap.L().Info("scrape: no anthropic key configured, using pattern extraction only")
		}
		return extract.NewDefaultParser(nil, timeout)
	}

	llm := extract.NewLLMExtractor(anthropic.NewClient(cfg.Anthropic.Key), extract.LLMConfig{
		Model:             cfg.Anthropic.Model,
		MaxTokens:         int64(cfg.Anthropic.MaxTokens),
		BatchSize:         cfg.Anthropic.BatchSize,
		MaxConcurrent:     cfg.Anthropic.MaxConcurrent,
		RequestsPerSecond: float64(cfg.Anthropic.RequestsPerSecond),
	})
	return extract.NewDefaultParser(llm, timeout)
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeNoLLM, "no-llm", false, "skip LLM extraction, use pattern matching only")
	scrapeCmd.Flags().StringVar(&outputFormat, "output", "json", "report format: json or yaml")
	rootCmd.AddCommand(scrapeCmd)
}

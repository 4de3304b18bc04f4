package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nolasoft/hoftrack/internal/reconcile"
	"github.com/nolasoft/hoftrack/internal/scrape"
	"github.com/nolasoft/hoftrack/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve entries and accept scrape triggers over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: serveMux(ctx, st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func serveMux(ctx context.Context, st store.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /entries", func(w http.ResponseWriter, r *http.Request) {
		entries, err := st.ListEntries(r.Context())
		if err != nil {
			zap.L().Error("list entries failed", zap.Error(err))
			http.Error(w, `{"error":"list entries failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.Stats(r.Context())
		if err != nil {
			zap.L().Error("stats failed", zap.Error(err))
			http.Error(w, `{"error":"stats failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	mux.HandleFunc("POST /scrape", func(w http.ResponseWriter, r *http.Request) {
		// Runs under the server's lifecycle context so a client disconnect
		// does not abandon a half-applied pass.
		fetcher := scrape.NewFetcher(cfg.Scrape.URL, time.Duration(cfg.Scrape.TimeoutSecs)*time.Second)
		html, err := fetcher.Fetch(ctx)
		if err != nil {
			zap.L().Error("triggered scrape failed", zap.Error(err))
			http.Error(w, `{"error":"fetch failed"}`, http.StatusBadGateway)
			return
		}
		raws, err := scrape.ParseTable(html)
		if err != nil {
			zap.L().Error("triggered scrape failed", zap.Error(err))
			http.Error(w, `{"error":"parse failed"}`, http.StatusBadGateway)
			return
		}
		parsed := buildParser().Parse(ctx, raws)
		sum := reconcile.New(st).Run(ctx, parsed)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sum)
	})

	return mux
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

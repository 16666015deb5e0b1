package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"memory-pairs-server/api"
	"memory-pairs-server/auth"
	"memory-pairs-server/config"
	"memory-pairs-server/events"
	"memory-pairs-server/loghandler"
	"memory-pairs-server/metrics"
	"memory-pairs-server/sessions"
	"memory-pairs-server/storage"
	"memory-pairs-server/ws"
)

const shutdownTimeout = 10 * time.Second

// newMux registers every HTTP route of the server.
func newMux(hub *ws.Hub, h *api.Handler, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/api/stats", h.PlayerStats)
	mux.HandleFunc("/api/history", h.History)
	mux.HandleFunc("/api/leaderboard", h.Leaderboard)
	mux.HandleFunc("/healthz", api.Healthz)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	return mux
}

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stderr, cfg.SlogLevel())))
	if envErr != nil {
		slog.Info("no .env file found; using environment variables", "tag", "main")
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "tag", "main", "err", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "tag", "main",
		"board", fmt.Sprintf("%dx%d", cfg.BoardRows, cfg.BoardCols),
		"revealMs", cfg.RevealDurationMS, "historyLimit", cfg.HistoryLimit, "port", cfg.WSPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("storage unavailable", "tag", "main", "err", err)
		os.Exit(1)
	}
	defer store.Close()
	if store == nil {
		slog.Info("DATABASE_URL is not set; statistics are kept in memory only", "tag", "main")
	}

	publisher, err := events.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		slog.Warn("round events disabled", "tag", "main", "err", err)
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	verifier, err := auth.NewNeonVerifier(ctx, cfg.NeonAuthBaseURL)
	if err != nil {
		slog.Error("invalid auth configuration", "tag", "main", "err", err)
		os.Exit(1)
	}
	var v auth.Verifier
	if verifier != nil {
		v = verifier
		slog.Info("auth configured", "tag", "main", "baseURL", cfg.NeonAuthBaseURL)
	} else {
		slog.Info("NEON_AUTH_BASE_URL is not set; only guest play is available", "tag", "main")
	}

	m := metrics.New()
	manager := sessions.NewManager(ctx, cfg, store, publisher, m)

	hub := ws.NewHub(cfg, manager, v, m)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           newMux(hub, api.NewHandler(cfg, store, manager, v), m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("memory pairs server listening", "tag", "main", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "tag", "main", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down", "tag", "main")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "tag", "main", "err", err)
	}
	manager.Shutdown(shutdownCtx)
}

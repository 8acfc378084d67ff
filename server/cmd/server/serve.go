package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/canvashub/canvashub/pkg/canvas"
	"github.com/canvashub/canvashub/server/internal/api"
	"github.com/canvashub/canvashub/server/internal/config"
	"github.com/canvashub/canvashub/server/internal/metrics"
	"github.com/canvashub/canvashub/server/internal/ws"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the synchronization server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "",
		"path to config.yaml; omit to run with defaults")
	return cmd
}

func runServe(configPath string) error {
	// A local .env may carry overrides like CANVASHUB_ADDR.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Defaults()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	addr := cfg.Server.Addr()
	if env := os.Getenv("CANVASHUB_ADDR"); env != "" {
		addr = env
	}

	slog.Info("canvashub-server starting",
		"version", version,
		"addr", addr,
		"messages_per_second", cfg.Server.Limits.MessagesPerSecond,
		"burst", cfg.Server.Limits.Burst,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := canvas.NewStore()
	m := metrics.New(prometheus.DefaultRegisterer)

	hub := ws.New(store, m, ws.Limits{
		MessagesPerSecond: cfg.Server.Limits.MessagesPerSecond,
		Burst:             cfg.Server.Limits.Burst,
		MaxMessageBytes:   cfg.Server.Limits.MaxMessageBytes,
	})
	go hub.Run(ctx)

	// Hot-reload traffic limits on config edits; new sessions pick them up.
	if configPath != "" {
		go func() {
			if err := config.Watch(ctx, configPath, func(next *config.Config) {
				hub.SetLimits(ws.Limits{
					MessagesPerSecond: next.Server.Limits.MessagesPerSecond,
					Burst:             next.Server.Limits.Burst,
					MaxMessageBytes:   next.Server.Limits.MaxMessageBytes,
				})
			}); err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	router := chi.NewRouter()
	router.Get("/ws", hub.ServeHTTP)
	router.Mount("/api", api.New(store, hub))
	router.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	go func() {
		slog.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("canvashub-server shutting down")
	return httpSrv.Shutdown(context.Background())
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/auth"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/config"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/events"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/review"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/server"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review API server",
	Long: `Starts the HTTP API, the websocket relay, and the periodic
auto-confirm sweep. Reads also sweep lazily, so the background loop is
an optimization, not a correctness requirement.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var sink *events.RedisSink
	if cfg.Redis.Host != "" {
		sink, err = events.NewRedisSink(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, events disabled")
			sink = nil
		} else {
			defer sink.Close()
		}
	}

	var eventSink review.Sink = review.NopSink{}
	if sink != nil {
		eventSink = sink
	}
	svc := review.NewService(store, eventSink, cfg.Review, slog.Default())

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	srv := server.New(cfg, store, svc, tokens, sink)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return runSweepLoop(ctx, store, svc) })

	logger.WithField("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).Info("serving")
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.Storage.PostgresDSN)
	case "sqlite":
		return storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyandrews/tag1bot/internal/adapter/httpserver"
	"github.com/jeremyandrews/tag1bot/internal/adapter/memory"
	"github.com/jeremyandrews/tag1bot/internal/adapter/metrics"
	"github.com/jeremyandrews/tag1bot/internal/adapter/postgres"
	"github.com/jeremyandrews/tag1bot/internal/adapter/redis"
	"github.com/jeremyandrews/tag1bot/internal/adapter/slack"
	"github.com/jeremyandrews/tag1bot/internal/adapter/sqlite"
	"github.com/jeremyandrews/tag1bot/internal/adapter/telegram"
	"github.com/jeremyandrews/tag1bot/internal/app"
	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/jeremyandrews/tag1bot/internal/platform/config"
	"github.com/jeremyandrews/tag1bot/internal/platform/logging"
	"github.com/jeremyandrews/tag1bot/internal/platform/version"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// stores bundles the selected backend with its health checks and cleanup.
type stores struct {
	score   domain.ScoreStore
	seen    domain.SeenStore
	checks  []httpserver.HealthCheck
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStores(ctx context.Context, cfg *config.Config, m *metrics.StoreMetrics) (*stores, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.StoreBackend {
	case config.BackendMemory:
		slog.Warn("Using in-memory store, karma is lost on restart")
		return &stores{score: memory.NewScoreStore(), seen: memory.NewSeenStore()}, nil
	case config.BackendRedis:
		return setupRedis(ctx, cfg, m)
	case config.BackendPostgres:
		return setupPostgres(ctx, cfg, m)
	case config.BackendSQLite:
		return setupSQLite(ctx, cfg, m)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.StoreMetrics) (*stores, error) {
	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewMetricsHook(m), redis.NewCircuitBreakerHook(m))
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	slog.Info("Connected to Redis")

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }

	return &stores{
		score:   redis.NewScoreStore(client),
		seen:    redis.NewSeenStore(client),
		checks:  []httpserver.HealthCheck{{Name: "redis", Check: ping}},
		closers: []func(){func() { closeRedis(client) }},
	}, nil
}

func closeRedis(client *goredis.Client) {
	if err := client.Close(); err != nil {
		slog.Error("Failed to close Redis client", "error", err)
	}
}

func setupPostgres(ctx context.Context, cfg *config.Config, m *metrics.StoreMetrics) (*stores, error) {
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, m)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &stores{
		score:   postgres.NewScoreStore(pool, m),
		seen:    postgres.NewSeenStore(pool),
		checks:  []httpserver.HealthCheck{{Name: "postgres", Check: pool.Ping}},
		closers: []func(){pool.Close},
	}, nil
}

func setupSQLite(ctx context.Context, cfg *config.Config, m *metrics.StoreMetrics) (*stores, error) {
	db, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	slog.Info("Opened SQLite database", "path", cfg.SQLitePath)

	return &stores{
		score:   sqlite.NewScoreStore(db, m),
		seen:    sqlite.NewSeenStore(db),
		checks:  []httpserver.HealthCheck{{Name: "sqlite", Check: db.PingContext}},
		closers: []func(){func() { closeDB(db) }},
	}, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	clock := clockwork.NewRealClock()
	reg := metrics.NewRegistry()

	st, err := setupStores(ctx, cfg, metrics.NewStoreMetrics(reg))
	if err != nil {
		return err
	}
	defer st.close()

	chooser := app.NewRandomChooser(uint64(clock.Now().UnixNano()))
	karma := app.NewKarmaService(st.score, app.NewComposer(chooser), app.KarmaOptions{
		MergeDuplicates: cfg.KarmaMergeDuplicates,
	}, metrics.NewKarmaMetrics(reg))
	seen := app.NewSeenService(st.seen, clock)
	dispatcher := app.NewDispatcher([]domain.Processor{karma, seen}, app.NewGreeter(chooser), cfg.MaxInFlight, metrics.NewDispatchMetrics(reg))

	srv := httpserver.NewServer(cfg.Port, metrics.Handler(reg),
		httpserver.WithHTTPMetrics(metrics.NewHTTPMetrics(reg)),
		httpserver.WithHealthChecks(st.checks...),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.SlackEnabled() {
		transport := slack.NewFromTokens(cfg.SlackAppToken, cfg.SlackBotToken, slack.Options{
			Channels:       cfg.SlackChannels(),
			ReconnectDelay: cfg.ReconnectDelay,
			MaxPending:     cfg.MaxInFlight,
			Clock:          clock,
		})
		g.Go(func() error { return transport.Run(gctx, dispatcher) })
	}
	if cfg.TelegramEnabled() {
		transport := telegram.NewFromToken(cfg.TelegramToken, telegram.Options{Clock: clock})
		g.Go(func() error { return transport.Run(gctx, dispatcher) })
	}

	err = g.Wait()

	slog.Info("Waiting for in-flight events")
	dispatcher.Wait()

	return err
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "store", cfg.StoreBackend, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Application stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
	slog.Info("Application stopped")
}

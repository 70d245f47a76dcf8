// Package postgres implements the score and seen stores on PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"
	"github.com/jeremyandrews/tag1bot/internal/adapter/metrics"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	versionTable = "public.schema_version"

	// advisory lock key shared by every instance that migrates this schema
	migrateLockKey     = int64(0x6b61726d61) // "karma"
	unlockTimeout      = 5 * time.Second
	idleConnLifetime   = 10 * time.Minute
	poolHealthInterval = 30 * time.Second
)

// Connect opens a pool whose queries are recorded in m. m may be nil.
func Connect(ctx context.Context, databaseURL string, m *metrics.StoreMetrics) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.Tracer = NewMetricsTracer(m)
	cfg.MaxConnIdleTime = idleConnLifetime
	cfg.HealthCheckPeriod = poolHealthInterval

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.ConnConfig.Host, err)
	}

	slog.Info("Postgres connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns)
	return pool, nil
}

// RunMigrationsWithLock brings the schema up to date. Instances starting at
// the same time take turns through a session advisory lock.
func RunMigrationsWithLock(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()

	return withAdvisoryLock(ctx, conn.Conn(), migrateLockKey, func() error {
		return migrateSchema(ctx, conn.Conn())
	})
}

func migrateSchema(ctx context.Context, conn *pgx.Conn) error {
	files, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}

	migrator, err := migrate.NewMigrator(ctx, conn, versionTable)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(files); err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	migrator.OnStart = func(seq int32, name, direction, _ string) {
		slog.Info("Applying migration", "sequence", seq, "name", name, "direction", direction)
	}

	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	version, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	slog.Info("Schema up to date", "version", version, "available", len(migrator.Migrations))
	return nil
}

// withAdvisoryLock runs fn while holding a session-level advisory lock on
// conn. The unlock uses its own deadline so a cancelled ctx still releases.
func withAdvisoryLock(ctx context.Context, conn *pgx.Conn, key int64, fn func() error) (err error) {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return fmt.Errorf("lock %d: %w", key, err)
	}

	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
		if _, unlockErr := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", key); unlockErr != nil {
			err = errors.Join(err, fmt.Errorf("unlock %d: %w", key, unlockErr))
		}
	}()

	return fn()
}

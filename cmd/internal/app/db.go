package app

import (
	"context"
	"fmt"
	"time"

	"securebank/cmd/internal/db"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbConnectTries bounds how long startup waits for Postgres (compose brings it up in parallel).
const dbConnectTries = 5

// NewDBPool migrates (when DB_MIGRATE_ON_START is set), builds the pool and waits until it answers.
// Without migrate-on-start, cmd/migrate owns the schema.
func NewDBPool(ctx context.Context, cfg Config, log Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: parse DATABASE_URL: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	pcfg.MinConns = cfg.DBMinConns
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pcfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := PingDB(ctx, pool, 3*time.Second)
		if err != nil {
			log.Warn("db.connect.retry", "attempt", attempt, "err", err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(dbConnectTries))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	if cfg.DBMigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL, db.Up); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db: migrate on start: %w", err)
		}
		log.Info("db.migrate.done", "direction", string(db.Up))
	}

	return pool, nil
}

// PingDB round-trips to the server within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return pool.Ping(ctx)
}

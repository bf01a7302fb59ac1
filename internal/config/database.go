package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
)

// Connection attempts made before giving up; the database often starts
// alongside the server in compose setups.
const (
	connectAttempts   = 5
	connectBaseDelay  = 500 * time.Millisecond
	connectTryTimeout = 10 * time.Second
)

// NewDatabasePool creates a PostgreSQL connection pool and waits until it answers a ping
func NewDatabasePool(ctx context.Context, config *Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return newDatabasePool(ctx, config, logger, time.Sleep)
}

func newDatabasePool(ctx context.Context, config *Config, logger *slog.Logger, sleep func(time.Duration)) (*pgxpool.Pool, error) {
	poolConfig, err := config.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfiguration, "failed to create connection pool")
	}

	delay := connectBaseDelay
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, connectTryTimeout)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return pool, nil
		}
		if attempt == connectAttempts || ctx.Err() != nil {
			break
		}
		logger.Warn("database not reachable, retrying",
			"attempt", attempt, "delay", delay.String(), "error", err)
		sleep(delay)
		delay *= 2
	}

	pool.Close()
	return nil, apperrors.Wrap(err, apperrors.CodeDependency, "failed to ping database")
}

// PoolConfig builds the pgxpool settings from DATABASE_URL and the pool limits
func (c *Config) PoolConfig() (*pgxpool.Config, error) {
	dbConfig, err := c.ParseDatabaseConfig()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfiguration, "failed to parse database config")
	}

	poolConfig, err := pgxpool.ParseConfig(dbConfig.ConnectionString())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfiguration, "failed to parse database config")
	}

	poolConfig.MaxConns = dbConfig.MaxConns
	poolConfig.MinConns = dbConfig.MinConns
	poolConfig.MaxConnLifetime = dbConfig.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dbConfig.MaxConnIdleTime
	return poolConfig, nil
}

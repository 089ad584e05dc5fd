package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/referralbot/core/logger"
)

const (
	driver         = "postgres"
	connectTimeout = 5 * time.Second
	readyTimeout   = 30 * time.Second
	readyPoll      = 2 * time.Second
)

func (c Config) logAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
	}
}

// Connect opens the pool and pings it once.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driver, cfg.DSN())
	attrs := append(cfg.logAttrs(), slog.Duration("duration", time.Since(start)))
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(time.Hour)

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		append(attrs, slog.String("status", "ok"), slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

// WaitReady pings dsn every few seconds until it answers or ctx ends.
func WaitReady(ctx context.Context, dsn string) error {
	t := time.NewTicker(readyPoll)
	defer t.Stop()
	for {
		err := ping(ctx, dsn)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready: %w (last error: %v)", ctx.Err(), err)
		case <-t.C:
		}
	}
}

func ping(ctx context.Context, dsn string) error {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}

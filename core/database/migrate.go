package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/referralbot/core/logger"
)

const previewFiles = 6

// migrateLog sends golang-migrate's own output to the migration logger.
type migrateLog struct{}

func (migrateLog) Printf(format string, v ...any) {
	logger.MIG.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("event", "migrate.log"))
}

func (migrateLog) Verbose() bool {
	return logger.MIG.Enabled(context.Background(), slog.LevelDebug)
}

// RunMigrations waits for the database, then applies every pending up
// migration from cfg.MigrationsDir.
func RunMigrations(cfg Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	if err := WaitReady(ctx, cfg.DSN()); err != nil {
		return migrateFailed(ctx, "wait", err)
	}

	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return migrateFailed(ctx, "resolve", err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.URL())
	if err != nil {
		return migrateFailed(ctx, "init", err)
	}
	defer m.Close()
	m.Log = migrateLog{}

	from := version(m)
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return migrateFailed(ctx, "apply", err)
	}
	to := version(m)

	applied := between(upFiles(dir), from, to)
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("files", len(applied)),
		slog.Duration("duration", time.Since(start)),
	}
	if preview, more := logger.SummarizeStrings(applied, previewFiles); preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview), slog.Bool("files_truncated", more))
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "db.migrate", attrs...)
	return nil
}

func migrateFailed(ctx context.Context, stage string, err error) error {
	logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
		slog.String("status", "fail"),
		slog.String("stage", stage),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("migrate %s: %w", stage, err)
}

// version is the applied schema version; zero before the first migration.
func version(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

// upFiles lists the *.up.sql files of dir in version order.
func upFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// between keeps the files whose version lies in (from, to].
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

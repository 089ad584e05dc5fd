// Package router turns the registry into telebot routes. Every routed update
// ends in exactly one handler.handled log line.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/referralbot/core/logger"
	tghelpers "github.com/m3rciful/referralbot/core/telegram/helpers"
	"github.com/m3rciful/referralbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// wrap applies the per-route middleware shared by all entry points.
func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

// handled runs fn under name and logs the outcome.
func handled(c tele.Context, name string, fn tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	err := fn(c)
	status := logger.Status(err)
	summarize(ctx, c, start, status, status, err, extras)
	return err
}

// skipped logs an update nobody handled.
func skipped(c tele.Context, name string, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	summarize(ctx, c, time.Now(), "skip", "ignored", nil, extras)
}

func summarize(ctx context.Context, c tele.Context, start time.Time, status, outcome string, err error, extras []slog.Attr) {
	msgs, kb := middleware.GetCounters(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}, extras...)
	lvl := slog.LevelInfo
	if err != nil {
		lvl = slog.LevelError
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, lvl, "handler.handled", attrs...)
}

// handlerName turns "/My Referrals" into "my_referrals".
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errCode is a short grouping key for failures: TG_<code> for Bot API
// errors, the Go type name otherwise.
func errCode(err error) string {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("TG_%d", apiErr.Code)
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if _, after, ok := strings.Cut(name, "."); ok {
		name = after
	}
	return strings.ToUpper(name)
}

package logger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

// meta is the per-update logging state carried in a context. It is stored
// by value, so every With* call yields an independent copy.
type meta struct {
	rid, trace, handler string
	updateID            int
	userID, chatID      int64
	log                 *slog.Logger
}

type metaKey struct{}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(metaKey{}).(meta)
	return m
}

func withMeta(ctx context.Context, set func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	set(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

// WithLogger makes l the logger LogEvent uses for ctx. Nil means L.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return withMeta(ctx, func(m *meta) { m.log = l })
}

// FromContext is the logger set by WithLogger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l := metaFrom(ctx).log; l != nil {
		return l
	}
	return L
}

func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

func WithTrace(ctx context.Context, traceID string) context.Context {
	return withMeta(ctx, func(m *meta) { m.trace = traceID })
}

// WithHandler names the handler serving the update. Empty keeps the current name.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return withMeta(ctx, func(*meta) {})
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

// WithUpdateMeta records the update, sender and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID, m.userID, m.chatID = updateID, userID, chatID
	})
}

func RIDFrom(ctx context.Context) string     { return metaFrom(ctx).rid }
func TraceIDFrom(ctx context.Context) string { return metaFrom(ctx).trace }
func HandlerFrom(ctx context.Context) string { return metaFrom(ctx).handler }
func UpdateIDFrom(ctx context.Context) int   { return metaFrom(ctx).updateID }
func UserIDFrom(ctx context.Context) int64   { return metaFrom(ctx).userID }
func ChatIDFrom(ctx context.Context) int64   { return metaFrom(ctx).chatID }

// BuildRID is the correlation id "update:chat:user".
func BuildRID(updateID int, chatID, userID int64) string {
	return strconv.Itoa(updateID) + ":" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// CompactRID rewrites each numeric part of a BuildRID id in base 36, joined
// by dots. Anything else comes back unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}

// Sanitize drops control and format runes other than tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r)) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit is Sanitize cut to at most limit runes.
func SanitizeLimit(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	return string(r[:min(len(r), limit)])
}

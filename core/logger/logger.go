// Package logger renders one structured line per event, JSON in production and
// key=value locally, with update correlation taken from the context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/m3rciful/referralbot/core/buildinfo"
	coreconfig "github.com/m3rciful/referralbot/core/config"
)

const (
	sinkBufferSize = 64 << 10

	defaultSampleNum = 1
	defaultSampleDen = 50
)

var (
	mu      sync.Mutex
	started bool
	stopped bool
	out     *sink
	files   []io.Closer

	level   slog.LevelVar
	sampler = newRatioSampler(defaultSampleNum, defaultSampleDen)
	trace   bool

	// L is the base logger. Before InitLogger it is slog.Default, so tests log without setup.
	L = slog.Default()

	DB    = L.With("component", "db")
	TG    = L.With("component", "tg")
	MIG   = L.With("component", "db.migrate")
	TWire = L.With("component", "tg.wire")
	HTTP  = L.With("component", "http")
)

// Service components for the Info/Warn/Error helpers.
const (
	CompUsers     = "service.users"
	CompReferrals = "service.referrals"
	CompForms     = "service.forms"
)

// options is the logging section of the config after defaults are applied.
type options struct {
	profile  string
	format   logFormat
	order    []string
	level    slog.Level
	num, den int
	color    bool
}

func resolve(cfg *coreconfig.Config) options {
	o := options{
		profile: "prod",
		format:  formatJSON,
		order:   defaultKeyOrder,
		level:   slog.LevelInfo,
		num:     defaultSampleNum,
		den:     defaultSampleDen,
	}
	if cfg == nil {
		return o
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		o.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		o.format = formatKV
	case "json":
	default:
		if o.profile == "dev" || o.profile == "debug" {
			o.format = formatKV
		}
	}
	if keys := splitKeys(lc.KeysOrder); len(keys) > 0 {
		o.order = keys
	}
	switch levelName(strings.TrimSpace(lc.Level)) {
	case "DEBUG":
		o.level = slog.LevelDebug
	case "WARN":
		o.level = slog.LevelWarn
	case "ERROR":
		o.level = slog.LevelError
	}
	if ratio := strings.TrimSpace(lc.DebugSample); ratio != "" {
		o.num, o.den = parseRatio(ratio)
	}
	// Colors only when every line goes to a terminal.
	o.color = o.format == formatKV && !color.NoColor && logFile(cfg) == ""
	return o
}

func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func logFile(cfg *coreconfig.Config) string {
	dir := strings.TrimSpace(cfg.Logging.Dir)
	name := strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || name == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

// InitLogger installs the structured logger as the slog default.
// Calls after the first are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return nil
	}

	o := resolve(cfg)
	outputs := []io.Writer{os.Stdout}
	if cfg != nil {
		if path := logFile(cfg); path != "" {
			f, err := openLogFile(path)
			if err != nil {
				return err
			}
			outputs = append(outputs, f)
			files = append(files, f)
		}
	}

	out = newSink(outputs, sinkBufferSize)
	level.Set(o.level)
	sampler.Set(o.num, o.den)
	trace = envFlag("TRACE") || envFlag("LOG_TRACE")

	L = slog.New(newStructuredHandler(handlerConfig{
		level:  &level,
		sink:   out,
		format: o.format,
		order:  o.order,
		color:  o.color,
	}))
	slog.SetDefault(L)
	DB = Component("db")
	TG = Component("tg")
	MIG = Component("db.migrate")
	TWire = Component("tg.wire")
	HTTP = Component("http")
	started = true

	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", o.profile),
	}
	if cfg != nil {
		attrs = append(attrs, slog.String("mode", cfg.Telegram.RunMode))
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return f, nil
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Shutdown flushes buffered lines and closes log files.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if stopped || !started {
		return nil
	}
	stopped = true

	var errs []error
	if out != nil {
		errs = append(errs, out.Close())
	}
	for _, c := range files {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Background is the context for log calls made outside any update.
func Background() context.Context {
	return context.Background()
}

// LogEvent logs attrs under event with logg, or the context logger when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, lvl, "", attrs...)
}

// Component returns L scoped to name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
// TRACE=1 lets every line through.
func ShouldSampleDebug() bool {
	return trace || sampler.Allow()
}

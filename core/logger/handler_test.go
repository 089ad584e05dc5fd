package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	coreconfig "github.com/m3rciful/referralbot/core/config"
)

// emit writes a single event through a fresh handler and returns the rendered line.
func emit(t *testing.T, format logFormat, ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	out := newSink([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		sink:   out,
		format: format,
	})
	log := slog.New(handler).With("component", component)
	LogEvent(ctx, log, level, event, attrs...)
	if err := out.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	line := emit(t, formatKV, ctx, "app", slog.LevelInfo, "test.event",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)
	tokens := strings.Split(line, " ")
	if len(tokens) < 6 {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123"}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithRID(Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	line := emit(t, formatJSON, ctx, "service.test", slog.LevelError, "service.failed",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("err_code", "TEST_FAIL"),
	)
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.test"`, `"event":"service.failed"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	rawRID := "123:456:789"
	line := emit(t, formatKV, WithRID(Background(), rawRID), "app", slog.LevelInfo, "rid.test",
		slog.String("status", "ok"),
	)
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	rawRID := "12:34:56"
	line := emit(t, formatJSON, WithRID(Background(), rawRID), "app", slog.LevelInfo, "rid.test",
		slog.String("status", "ok"),
	)
	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano to be present in JSON output, got %s", line)
	}
}

func TestStructuredHandlerContextFields(t *testing.T) {
	ctx := WithTrace(Background(), "trace-1")
	ctx = WithUpdateMeta(ctx, 5, 1001, 1001)
	ctx = WithHandler(ctx, "callback.add_data")

	line := emit(t, formatKV, ctx, "tg", slog.LevelInfo, "handler.handled",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.String("outcome", "bogus"),
		slog.String("empty", ""),
	)
	for _, want := range []string{"trace_id=trace-1", "user_id=1001", "chat_id=1001", "update_id=5", "handler=callback.add_data", "duration_ms=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	if strings.Contains(line, "outcome=") {
		t.Fatalf("unknown outcome should be dropped, got %s", line)
	}
	if strings.Contains(line, "empty=") {
		t.Fatalf("empty values should be pruned, got %s", line)
	}
}

func TestStructuredHandlerLevelFilter(t *testing.T) {
	line := emit(t, formatKV, Background(), "app", slog.LevelDebug, "debug.event")
	if line != "" {
		t.Fatalf("debug event should be filtered at info level, got %s", line)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\tc\u200bd", 10); got != "ab\tcd" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("абвгд", 3); got != "абв" {
		t.Fatalf("SanitizeLimit rune limit = %q", got)
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := []struct {
		in       string
		num, den int
	}{
		{"1/10", 1, 10},
		{"20", 1, 20},
		{"0", 0, 0},
		{"junk", 0, 0},
	}
	for _, tc := range cases {
		num, den := parseRatio(tc.in)
		if num != tc.num || den != tc.den {
			t.Fatalf("parseRatio(%q) = %d/%d, want %d/%d", tc.in, num, den, tc.num, tc.den)
		}
	}
}

func TestStructuredHandlerGroups(t *testing.T) {
	buf := &bytes.Buffer{}
	out := newSink([]io.Writer{buf}, 1024)
	log := slog.New(newStructuredHandler(handlerConfig{sink: out, format: formatKV})).
		WithGroup("db").With("host", "pg")
	log.Info("db.connect", slog.Group("pool", slog.Int("max", 4)))
	if err := out.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"db.host=pg", "db.pool.max=4", "event=db.connect"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
}

func TestSinkFansOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	out := newSink([]io.Writer{a, nil, b}, 1024)
	if err := out.Write([]byte("line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := out.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if a.String() != "line\n" || b.String() != "line\n" {
		t.Fatalf("outputs = %q, %q", a.String(), b.String())
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPaintLevel(t *testing.T) {
	prev := color.NoColor
	t.Cleanup(func() { color.NoColor = prev })

	color.NoColor = false
	if got := paintLevel("ERROR"); got == "ERROR" || !strings.Contains(got, "ERROR") {
		t.Fatalf("paintLevel(ERROR) = %q, want colored", got)
	}
	if got := paintLevel("TRACE"); got != "TRACE" {
		t.Fatalf("paintLevel(TRACE) = %q", got)
	}
	color.NoColor = true
	if got := paintLevel("WARN"); got != "WARN" {
		t.Fatalf("paintLevel with colors off = %q", got)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for range 9 {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed %d of 9, want 3", allowed)
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("zero ratio should allow everything")
	}
}

func TestResolveOptions(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Logging.Profile = "Dev"
	cfg.Logging.Level = "warning"
	cfg.Logging.KeysOrder = "event, level"
	cfg.Logging.DebugSample = "2/5"
	cfg.Logging.Dir = "logs"
	cfg.Logging.BotFile = "bot.log"

	o := resolve(cfg)
	if o.format != formatKV || o.level != slog.LevelWarn {
		t.Fatalf("format/level = %s/%v", o.format, o.level)
	}
	if len(o.order) != 2 || o.order[0] != "event" {
		t.Fatalf("order = %v", o.order)
	}
	if o.num != 2 || o.den != 5 {
		t.Fatalf("sample = %d/%d", o.num, o.den)
	}
	if o.color {
		t.Fatal("colors must stay off when a log file is configured")
	}
	if d := resolve(nil); d.format != formatJSON || d.level != slog.LevelInfo {
		t.Fatalf("nil config = %+v", d)
	}
}

func TestContextMetaIsCopied(t *testing.T) {
	base := WithUpdateMeta(WithRID(Background(), "1:2:3"), 1, 3, 2)
	child := WithHandler(base, "menu")
	if HandlerFrom(base) != "" || HandlerFrom(child) != "menu" {
		t.Fatalf("handler leaked: base=%q child=%q", HandlerFrom(base), HandlerFrom(child))
	}
	if RIDFrom(child) != "1:2:3" || ChatIDFrom(child) != 2 || UserIDFrom(child) != 3 {
		t.Fatal("child lost parent meta")
	}
	if HandlerFrom(WithHandler(child, "")) != "menu" {
		t.Fatal("empty handler should keep the current one")
	}
	if FromContext(Background()) != L {
		t.Fatal("bare context should use L")
	}
}

func TestCompactRID(t *testing.T) {
	if got := CompactRID(BuildRID(35, -36, 1)); got != "z.-10.1" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("CompactRID passthrough = %q", got)
	}
}

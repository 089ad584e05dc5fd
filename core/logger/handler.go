package logger

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

type lineSink interface {
	Write(p []byte) error
}

type handlerConfig struct {
	level  slog.Leveler
	sink   lineSink
	format logFormat
	order  []string
	color  bool
}

// structuredHandler flattens every record into one map and renders it with
// the configured keys first.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.order == nil {
		cfg.order = defaultKeyOrder
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.cfg.level.Level()
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(slices.Clip(h.attrs), h.scoped(attrs)...)
	return &c
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = join(h.prefix, name)
	return &c
}

func (h *structuredHandler) scoped(attrs []slog.Attr) []slog.Attr {
	if h.prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: join(h.prefix, a.Key), Value: a.Value}
	}
	return out
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.sink == nil {
		return fmt.Errorf("logger: no sink")
	}
	jsonOut := h.cfg.format == formatJSON

	e := entry{}
	ts := r.Time.UTC()
	e["ts"] = ts.Truncate(time.Millisecond).Format(tsLayout)
	e["level"] = levelName(r.Level.String())
	if jsonOut {
		e["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		e.add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.add(h.prefix, a)
		return true
	})
	e.fromContext(ctx)
	e.finish(r.Message, jsonOut)

	var line []byte
	if jsonOut {
		var err error
		if line, err = e.json(h.cfg.order); err != nil {
			return err
		}
	} else {
		line = e.kv(h.cfg.order, h.cfg.color)
	}
	return h.cfg.sink.Write(append(line, '\n'))
}

func join(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// entry is one log line before rendering.
type entry map[string]any

func (e entry) add(prefix string, a slog.Attr) {
	key := join(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			e.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	switch v.Kind() {
	case slog.KindString:
		e[key] = strings.TrimSpace(v.String())
	case slog.KindBool:
		e[key] = v.Bool()
	case slog.KindInt64:
		e[key] = v.Int64()
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			e[key] = int64(u)
		} else {
			e[key] = u
		}
	case slog.KindFloat64:
		e[key] = v.Float64()
	case slog.KindDuration:
		e[msKey(key)] = RoundMS(v.Duration()).Milliseconds()
	case slog.KindTime:
		e[key] = v.Time().UTC().Format(time.RFC3339Nano)
	default:
		switch x := v.Any().(type) {
		case nil:
		case error:
			e[key] = x.Error()
		case fmt.Stringer:
			e[key] = x.String()
		default:
			e[key] = fmt.Sprint(x)
		}
	}
}

// msKey makes the unit of a duration visible in its key.
func msKey(key string) string {
	if key == "duration" {
		return "duration_ms"
	}
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

// fromContext fills correlation keys the record did not set itself.
func (e entry) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	fill := func(key string, val any, ok bool) {
		if _, set := e[key]; ok && !set {
			e[key] = val
		}
	}
	rid := RIDFrom(ctx)
	fill("rid", rid, rid != "")
	tid := TraceIDFrom(ctx)
	fill("trace_id", tid, tid != "")
	uid := UserIDFrom(ctx)
	fill("user_id", uid, uid != 0)
	upd := UpdateIDFrom(ctx)
	fill("update_id", upd, upd != 0)
	cid := ChatIDFrom(ctx)
	fill("chat_id", cid, cid != 0)
	hid := HandlerFrom(ctx)
	fill("handler", hid, hid != "")
}

func (e entry) str(key string) string {
	switch v := e[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (e entry) finish(msg string, jsonOut bool) {
	if rid := e.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			e["rid"] = short
			if _, set := e["rid_full"]; jsonOut && !set {
				e["rid_full"] = rid
			}
		}
	}
	if e.str("event") == "" {
		e["event"] = cmp.Or(msg, "unknown")
	}
	if e.str("component") == "" {
		e["component"] = "app"
	}
	if s := e.str("status"); s != "" {
		e["status"] = strings.ToLower(s)
	}
	if o := e.str("outcome"); o != "" && !outcomes[strings.ToLower(o)] {
		delete(e, "outcome")
	}
	for k, v := range e {
		if v == nil || v == "" {
			delete(e, k)
		}
	}
}

// keys lists the keys named in order first, then the rest sorted.
func (e entry) keys(order []string) []string {
	out := make([]string, 0, len(e))
	for _, k := range order {
		if _, ok := e[k]; ok && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	n := len(out)
	for k := range e {
		if !slices.Contains(out[:n], k) {
			out = append(out, k)
		}
	}
	slices.Sort(out[n:])
	return out
}

func (e entry) json(order []string) ([]byte, error) {
	b := []byte{'{'}
	for i, k := range e.keys(order) {
		v, err := json.Marshal(e[k])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendQuote(b, k)
		b = append(b, ':')
		b = append(b, v...)
	}
	return append(b, '}'), nil
}

func (e entry) kv(order []string, colored bool) []byte {
	var b strings.Builder
	for i, k := range e.keys(order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		v := kvValue(e[k])
		if colored && k == "level" {
			v = paintLevel(v)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return []byte(b.String())
}

func kvValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func paintLevel(lvl string) string {
	switch lvl {
	case "DEBUG":
		return color.MagentaString(lvl)
	case "INFO":
		return color.BlueString(lvl)
	case "WARN":
		return color.YellowString(lvl)
	case "ERROR":
		return color.RedString(lvl)
	}
	return lvl
}

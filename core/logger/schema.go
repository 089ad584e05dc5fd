package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// outcomes is the closed vocabulary of the outcome key; other values are dropped.
var outcomes = map[string]bool{"ok": true, "fail": true, "ignored": true, "rate_limited": true}

func levelName(level string) string {
	if n, ok := levelNames[strings.ToLower(level)]; ok {
		return n
	}
	return strings.ToUpper(level)
}

// defaultKeyOrder puts correlation and outcome keys first; the rest follow sorted.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "trace_id", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "handler", "cb_key",
	"outcome", "result", "duration_ms", "messages", "kb",
	"form_mode", "step", "referral_outcome", "referrer_id", "created",
	"count", "depth", "mode", "listen", "public_url",
	"db", "host", "port", "err", "err_code", "attempts",
}

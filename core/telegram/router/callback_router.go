package router

import (
	"log/slog"

	tg "github.com/m3rciful/referralbot/core/telegram"
	"github.com/m3rciful/referralbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions.NotFound is used when the registry has no callback fallback.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every callback query by its unique. A query is
// answered exactly once: by the handler itself, for alerts, or with an empty
// answer afterwards.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	h := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		defer func() { _ = callbacks.Answer(c) }()

		key := callbacks.Key(c)
		name := "callback." + handlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		if fn, ok := reg.Callback(key); ok {
			return handled(c, name, fn, extras...)
		}
		extras = append(extras, slog.String("reason", "not_found"))
		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		if fallback == nil {
			skipped(c, name, extras...)
			return nil
		}
		return handled(c, name, fallback, extras...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(h)}
}

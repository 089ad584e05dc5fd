package middleware

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter"

	"github.com/m3rciful/referralbot/core/logger"
	"github.com/m3rciful/referralbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/referralbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const (
	receiptTTL      = 10 * time.Second
	receiptCapacity = 4096
)

// receipts remembers recently logged update ids so a route wrapped twice
// logs one receipt.
var receipts = func() otter.Cache[int, struct{}] {
	c, err := otter.MustBuilder[int, struct{}](receiptCapacity).WithTTL(receiptTTL).Build()
	if err != nil {
		panic(err)
	}
	return c
}()

// LoggerMiddleware binds the update's logging context (rid, trace id, ids)
// and writes a sampled update.received line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := tghelpers.ContextFrom(c); ok {
			return next(c)
		}
		updateID, chatID, userID := tghelpers.IDs(c)
		rid := logger.BuildRID(updateID, chatID, userID)
		c.Set("rid", rid)

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithTrace(ctx, uuid.NewString())
		ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.TG)
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && receipts.SetIfAbsent(updateID, struct{}{}) {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("update_kind", UpdateKind(upd)),
	}
	if ch := c.Chat(); ch != nil {
		attrs = append(attrs, slog.String("chat_type", string(ch.Type)))
	}
	if u := c.Sender(); u != nil && u.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
	}
	switch {
	case upd.Callback != nil:
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(callbacks.Key(c), 128)),
			slog.String("payload", logger.SanitizeLimit(callbacks.Payload(c), 256)),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	return attrs
}

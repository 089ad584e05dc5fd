// Package helpers carries the per-update logging context and sends replies
// through the shared dispatcher.
package helpers

import (
	"context"

	"github.com/m3rciful/referralbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxKey = "logger_ctx"

// StoreContext saves ctx on the update for later helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxKey, ctx)
	}
}

// ContextFrom returns the context saved by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxKey).(context.Context)
	return ctx, ok
}

// IDs returns the update, chat and sender ids of c. Missing parts are zero.
func IDs(c tele.Context) (updateID int, chatID, userID int64) {
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	return c.Update().ID, chatID, userID
}

// BuildContext returns the logging context of the update, creating and
// saving it on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	updateID, chatID, userID := IDs(c)
	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the update context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" {
		ctx = logger.WithHandler(ctx, handler)
		StoreContext(c, ctx)
	}
	return ctx
}

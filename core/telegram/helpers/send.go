package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/referralbot/core/logger"
	"github.com/m3rciful/referralbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes later sends through d. Nil sends inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// enqueue hands run to the dispatcher. A full or closed queue falls back to
// sending inline so the reply is not lost.
func enqueue(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendMarkup sends plain text with an optional inline keyboard.
func SendMarkup(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return enqueue(c, "send.text", "sendMessage", func() error {
		if markup == nil {
			return c.Send(text)
		}
		return c.Send(text, &tele.SendOptions{ReplyMarkup: markup})
	})
}

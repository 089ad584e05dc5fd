package middleware

import (
	"github.com/m3rciful/referralbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

const (
	keyMessages = "messages"
	keyKeyboard = "kb"
)

// countingContext counts what a handler sends so the handler summary can
// report it.
type countingContext struct{ tele.Context }

func (m countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	n, _ := m.Get(keyMessages).(int)
	m.Set(keyMessages, n+1)
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				m.Set(keyKeyboard, true)
			}
		case *tele.ReplyMarkup:
			if v != nil {
				m.Set(keyKeyboard, true)
			}
		}
	}
	return nil
}

func (m countingContext) Send(what any, opts ...any) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what any, opts ...any) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what any, opts ...any) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what any, opts ...any) error {
	return m.count(m.Context.EditOrSend(what, opts...), opts)
}

// Respond goes through callbacks.Answer so the router does not answer twice.
func (m countingContext) Respond(resp ...*tele.CallbackResponse) error {
	return callbacks.Answer(m.Context, resp...)
}

// MessageMetricsMiddleware resets the per-update send counters.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(keyMessages, 0)
		c.Set(keyKeyboard, false)
		return next(countingContext{Context: c})
	}
}

// GetCounters returns the number of messages sent and whether any had a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(keyMessages).(int)
	kb, _ := c.Get(keyKeyboard).(bool)
	return msgs, kb
}

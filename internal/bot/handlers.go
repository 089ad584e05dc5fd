package bot

import (
	"context"

	"github.com/m3rciful/referralbot/core/telegram/callbacks"
	"github.com/m3rciful/referralbot/core/telegram/helpers"
	"github.com/m3rciful/referralbot/core/telegram/keyboard"
	"github.com/m3rciful/referralbot/internal/users"

	tele "gopkg.in/telebot.v4"
)

const msgSlowDown = "Too many requests. Please slow down."

// Handlers adapts Flow to telebot.
type Handlers struct {
	flow *Flow
}

// NewHandlers wraps flow.
func NewHandlers(flow *Flow) *Handlers {
	return &Handlers{flow: flow}
}

func whoFrom(c tele.Context) Who {
	var w Who
	if s := c.Sender(); s != nil {
		w.TelegramID = s.ID
		w.Username = s.Username
		w.FirstName = s.FirstName
	}
	if ch := c.Chat(); ch != nil {
		w.ChatID = ch.ID
	} else {
		w.ChatID = w.TelegramID
	}
	return w
}

// send delivers a Response. The callback, if any, is answered here only
// when an alert is needed; the callback router answers the rest.
func send(c tele.Context, r Response) error {
	if r.Alert != "" {
		if err := callbacks.Alert(c, r.Alert); err != nil {
			return err
		}
	}
	for _, rep := range r.Replies {
		if err := helpers.SendMarkup(c, rep.Text, keyboard.Inline(rep.Buttons...)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) run(fn func(ctx context.Context, who Who) Response) tele.HandlerFunc {
	return func(c tele.Context) error {
		return send(c, fn(helpers.BuildContext(c), whoFrom(c)))
	}
}

// Start handles /start [ref_<code>].
func (h *Handlers) Start(c tele.Context) error {
	return send(c, h.flow.Start(helpers.BuildContext(c), whoFrom(c), c.Message().Payload))
}

// Menu handles /menu.
func (h *Handlers) Menu(c tele.Context) error {
	return send(c, h.flow.Menu())
}

// Referral handles a press on one entry of the referral list.
func (h *Handlers) Referral(c tele.Context) error {
	return send(c, h.flow.Referral(helpers.BuildContext(c), callbacks.Payload(c)))
}

func (h *Handlers) choice(field users.Field) tele.HandlerFunc {
	return func(c tele.Context) error {
		return send(c, h.flow.Choice(helpers.BuildContext(c), whoFrom(c), field, callbacks.Payload(c)))
	}
}

// InProgress reports whether the chat is filling in the form.
func (h *Handlers) InProgress(chatID int64) bool {
	return h.flow.InProgress(chatID)
}

// HandleText feeds a message into the chat's form session.
func (h *Handlers) HandleText(c tele.Context) error {
	return send(c, h.flow.Text(helpers.BuildContext(c), whoFrom(c), c.Text()))
}

// UnknownCommand answers unregistered slash commands.
func (h *Handlers) UnknownCommand(c tele.Context) error {
	return send(c, say(msgUnknownCmd))
}

// RateLimited tells a throttled user to slow down.
func (h *Handlers) RateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return callbacks.Alert(c, msgSlowDown)
	}
	return send(c, say(msgSlowDown))
}

// Package callbacks reads telebot callback data and answers callback queries
// exactly once per update.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const answeredKey = "cb_answered"

// Parse splits telebot's "\f<unique>|<payload>" encoding. Data without the
// leading "\f" is read the same way.
func Parse(data string) (unique, payload string) {
	unique, payload, _ = strings.Cut(strings.TrimPrefix(data, "\f"), "|")
	return strings.TrimSpace(unique), payload
}

// Key is the unique of the callback in c.
func Key(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	unique, _ := Parse(cb.Data)
	return unique
}

// Payload is the data after the unique of the callback in c.
func Payload(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Data
	}
	_, payload := Parse(cb.Data)
	return payload
}

// Answer answers the callback query unless that already happened.
func Answer(c tele.Context, resp ...*tele.CallbackResponse) error {
	if c.Callback() == nil || Answered(c) {
		return nil
	}
	c.Set(answeredKey, true)
	r := &tele.CallbackResponse{}
	if len(resp) > 0 && resp[0] != nil {
		r = resp[0]
	}
	return c.Bot().Respond(c.Callback(), r)
}

// Alert answers with a popup.
func Alert(c tele.Context, text string) error {
	return Answer(c, &tele.CallbackResponse{Text: text, ShowAlert: true})
}

func Answered(c tele.Context) bool {
	v, _ := c.Get(answeredKey).(bool)
	return v
}

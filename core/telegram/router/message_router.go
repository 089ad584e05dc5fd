package router

import (
	"strings"

	tg "github.com/m3rciful/referralbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// Sessions is a conversation owner: it reports whether a chat is mid
// conversation and consumes that chat's text.
type Sessions interface {
	InProgress(chatID int64) bool
	HandleText(c tele.Context) error
}

// TextRoutes routes plain text. Text starting with "/" is never conversation
// input: it goes to a registered command or to CommandNotFound. Other text
// outside a conversation is dropped without a reply.
func TextRoutes(sessions Sessions, reg *tg.Registry) []tg.Route {
	h := func(c tele.Context) error {
		text := strings.TrimSpace(c.Text())
		if strings.HasPrefix(text, "/") {
			return routeCommand(c, reg, text)
		}
		if sessions != nil && c.Chat() != nil && sessions.InProgress(c.Chat().ID) {
			return handled(c, "session", sessions.HandleText)
		}
		skipped(c, "unknown_text")
		return nil
	}
	return []tg.Route{{Endpoint: tele.OnText, Handler: wrap(h)}}
}

// routeCommand covers commands telebot did not match itself, such as
// "/start@bot" sent to another bot name or an unknown command.
func routeCommand(c tele.Context, reg *tg.Registry, text string) error {
	if reg != nil {
		if key, cmd, ok := reg.LookupCommand(text); ok {
			return handled(c, handlerName(key), cmd.Handler)
		}
		if nf := reg.CommandNotFound(); nf != nil {
			return handled(c, "unknown_command", nf)
		}
	}
	skipped(c, "unknown_command")
	return nil
}

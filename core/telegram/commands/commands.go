// Package commands describes slash commands for the registry.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command. Hidden commands are routed but left out of the
// Telegram command menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
}

// Name reduces text such as "/start@referral_bot ref_x" to "/start".
func Name(text string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return name
}

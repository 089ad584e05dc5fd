package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/m3rciful/referralbot/core/logger"
	"github.com/m3rciful/referralbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry maps commands and callback uniques to handlers, plus the handlers
// used when nothing matches. It is filled while wiring and only read once the
// bot runs, so it carries no lock.
type Registry struct {
	commands  map[string]commands.Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	commandNotFound  tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		commands:  map[string]commands.Command{},
		aliases:   map[string]string{},
		callbacks: map[string]tele.HandlerFunc{},
	}
}

// RegisterCommand adds cmd under name, which must start with "/".
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("command %q: name must start with /", name)
	case cmd.Handler == nil || cmd.Description == "":
		return fmt.Errorf("command %s: handler and description are required", name)
	}
	if _, dup := r.lookup(name); dup {
		return fmt.Errorf("command %s: already registered", name)
	}
	r.commands[name] = cmd
	for _, a := range cmd.Aliases {
		if a != "" {
			r.aliases[commands.Name(a)] = name
		}
	}
	return nil
}

func (r *Registry) lookup(name string) (string, bool) {
	if _, ok := r.commands[name]; ok {
		return name, true
	}
	key, ok := r.aliases[name]
	return key, ok
}

// LookupCommand resolves the command at the start of text, aliases included,
// and returns its canonical name.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	key, ok := r.lookup(commands.Name(text))
	if !ok {
		return "", commands.Command{}, false
	}
	return key, r.commands[key], true
}

// CommandNames returns every canonical command name, sorted.
func (r *Registry) CommandNames() []string {
	names := make([]string, 0, len(r.commands))
	for n := range r.commands {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Endpoints returns name and its aliases as telebot endpoints.
func (r *Registry) Endpoints(name string) []string {
	out := []string{name}
	for alias, key := range r.aliases {
		if key == name && alias != name {
			out = append(out, alias)
		}
	}
	slices.Sort(out[1:])
	return out
}

// MenuCommands lists the visible commands for the Telegram command menu.
func (r *Registry) MenuCommands() []tele.Command {
	var out []tele.Command
	for _, n := range r.CommandNames() {
		if c := r.commands[n]; !c.Hidden {
			out = append(out, tele.Command{Text: strings.TrimPrefix(n, "/"), Description: c.Description})
		}
	}
	return out
}

// RegisterCallback binds a callback unique to h.
func (r *Registry) RegisterCallback(unique string, h tele.HandlerFunc) error {
	if unique == "" || h == nil {
		return errors.New("callback: unique and handler are required")
	}
	if _, dup := r.callbacks[unique]; dup {
		return fmt.Errorf("callback %s: already registered", unique)
	}
	r.callbacks[unique] = h
	return nil
}

func (r *Registry) Callback(unique string) (tele.HandlerFunc, bool) {
	h, ok := r.callbacks[unique]
	return h, ok
}

func (r *Registry) CallbackCount() int { return len(r.callbacks) }

func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) { r.callbackNotFound = h }
func (r *Registry) CallbackNotFound() tele.HandlerFunc     { return r.callbackNotFound }

// SetCommandNotFound handles slash commands nobody registered.
func (r *Registry) SetCommandNotFound(h tele.HandlerFunc) { r.commandNotFound = h }
func (r *Registry) CommandNotFound() tele.HandlerFunc     { return r.commandNotFound }

// PublishCommands sets the bot's command menu. A failure is logged only.
func PublishCommands(bot *tele.Bot, reg *Registry) {
	list := reg.MenuCommands()
	err := bot.SetCommands(list)
	attrs := []slog.Attr{slog.String("status", logger.Status(err)), slog.Int("count", len(list))}
	lvl := slog.LevelInfo
	if err != nil {
		lvl = slog.LevelError
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.LogEvent(context.Background(), logger.TWire, lvl, "commands.publish", attrs...)
}

package router

import (
	"log/slog"

	"github.com/m3rciful/referralbot/core/logger"
	tg "github.com/m3rciful/referralbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes binds every registered command and its aliases.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	var routes []tg.Route
	for _, name := range reg.CommandNames() {
		_, cmd, _ := reg.LookupCommand(name)
		label := handlerName(name)
		h := wrap(func(c tele.Context) error {
			return handled(c, label, cmd.Handler)
		})
		for _, ep := range reg.Endpoints(name) {
			routes = append(routes, tg.Route{Endpoint: ep, Handler: h})
		}
	}
	logger.TWire.Info("routes bound",
		slog.String("event", "routes.commands"),
		slog.Int("commands", len(reg.CommandNames())),
		slog.Int("endpoints", len(routes)),
		slog.Int("callbacks", reg.CallbackCount()),
	)
	return routes
}

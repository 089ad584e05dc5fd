package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/referralbot/core/logger"
	tg "github.com/m3rciful/referralbot/core/telegram"
	"github.com/m3rciful/referralbot/core/telegram/router"
	"github.com/m3rciful/referralbot/core/telegram/sender"
	"github.com/m3rciful/referralbot/core/telegram/state"
	"github.com/m3rciful/referralbot/internal/config"
	"github.com/m3rciful/referralbot/internal/form"
	"github.com/m3rciful/referralbot/internal/referral"
	"github.com/m3rciful/referralbot/internal/users"
)

// App owns the bot's resources and builds its Telegram runtime options.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	sessions *state.Store[form.Session]
	handlers *Handlers
	registry *tg.Registry
}

// New assembles the application on top of an open database.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("bot: config and database are required")
	}
	sessions, err := state.NewStore[form.Session](state.Options{
		TTL:      cfg.Session.TTL,
		Capacity: cfg.Session.Capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	repo := users.NewRepository(db)
	refs := referral.NewService(repo, referral.Options{
		Mode:     referral.Mode(cfg.Referrals.Mode),
		MaxDepth: cfg.Referrals.MaxDepth,
	})
	machine := form.NewMachine(cfg.Form.JobTitles, cfg.Form.JobPositions)
	handlers := NewHandlers(NewFlow(refs, repo, sessions, machine, cfg.Bot.Username))

	reg := tg.NewRegistry()
	if err := handlers.Register(reg); err != nil {
		sessions.Close()
		return nil, err
	}
	return &App{cfg: cfg, db: db, sessions: sessions, handlers: handlers, registry: reg}, nil
}

// TelegramRunOptions wires middlewares and routes for the runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(a.registry)
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.handlers, a.registry)...)

	return tg.RunOptions{
		Config:            core,
		Registry:          a.registry,
		DispatcherOptions: sender.Options{MaxRetries: 2},
		Middlewares:       tg.DefaultMiddlewares(core, a.handlers.RateLimited),
		Routes:            routes,
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			logger.Info(ctx, logger.CompForms, "sessions.drop",
				slog.String("status", "ok"),
				slog.Int("open", a.sessions.Len()),
			)
			return nil
		},
	}, nil
}

// Close releases the session store and the database.
func (a *App) Close() error {
	a.sessions.Close()
	return a.db.Close()
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/referralbot/core/config"
	"github.com/m3rciful/referralbot/core/logger"
	tghelpers "github.com/m3rciful/referralbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/referralbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const shutdownTimeout = 10 * time.Second

// Middleware is a named global middleware, applied in slice order.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds Handler to an endpoint accepted by tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describe one bot run.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Middlewares       []Middleware
	Routes            []Route

	// OnStart runs before updates flow; an error aborts the run.
	OnStart func(ctx context.Context, rt Runtime) error
	// OnStop runs after the bot stopped and before the dispatcher drains.
	OnStop func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to see.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram runs the bot until ctx ends or the webhook listener fails.
func RunTelegram(ctx context.Context, opts RunOptions) (err error) {
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	bot, webhook, err := newBot(cfg)
	if err != nil {
		return err
	}
	if err := attach(ctx, bot, webhook, cfg); err != nil {
		return err
	}

	dispatcher := tgsender.NewDispatcher(opts.DispatcherOptions)
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	PublishCommands(bot, reg)

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}
	runErr := serve(ctx, bot, webhook)
	if opts.OnStop != nil {
		err = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	return errors.Join(runErr, err)
}

func newBot(cfg *coreconfig.Config) (*tele.Bot, *WebhookServer, error) {
	poller, webhook, err := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Token:  cfg.Telegram.Token,
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
			Secret: cfg.Webhook.Secret,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: %w", err)
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second),
		OnError: logBotError,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	return bot, webhook, nil
}

// logBotError receives handler errors telebot could not return anywhere.
func logBotError(err error, c tele.Context) {
	ctx := logger.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "tg.error",
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}

// attach points Telegram at this process: the webhook URL in webhook mode,
// no webhook at all for long polling.
func attach(ctx context.Context, bot *tele.Bot, webhook *WebhookServer, cfg *coreconfig.Config) error {
	if webhook != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", webhook.Addr()),
			slog.String("public_url", cfg.Webhook.URL+"/webhook/***"),
		)
		if err := webhook.Register(bot); err != nil {
			return fmt.Errorf("telegram: set webhook: %w", err)
		}
		return nil
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode", slog.String("mode", coreconfig.RunModeLongpoll))
	if err := bot.RemoveWebhook(false); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return nil
}

// serve runs the bot and, in webhook mode, its listener. It returns once
// both are down. Only a listener failure is an error; ctx ending is a
// normal stop.
func serve(ctx context.Context, bot *tele.Bot, webhook *WebhookServer) error {
	listenErr := make(chan error, 1)
	if webhook != nil {
		go func() { listenErr <- webhook.ListenAndServe() }()
	}
	stopped := make(chan struct{})
	go func() {
		bot.Start()
		close(stopped)
	}()

	var err error
	select {
	case <-ctx.Done():
	case <-stopped:
	case e := <-listenErr:
		if e != nil {
			err = fmt.Errorf("telegram: webhook server: %w", e)
		}
	}

	if webhook != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if e := webhook.Shutdown(shutCtx); e != nil {
			logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "webhook.shutdown",
				slog.String("status", "fail"),
				slog.String("err", e.Error()),
			)
		}
		cancel()
	}
	select {
	case <-stopped:
	default:
		bot.Stop()
		<-stopped
	}
	return err
}

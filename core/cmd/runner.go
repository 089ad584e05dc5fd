// Package cmd runs a bot process: load config, bootstrap the app, run the
// bot until SIGINT or SIGTERM, then release everything in reverse order.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/referralbot/core/config"
	"github.com/m3rciful/referralbot/core/logger"
	coretelegram "github.com/m3rciful/referralbot/core/telegram"
)

const defaultConfigEnv = "CONFIG_PATH"

// ConfigCarrier is a bot config embedding the core config.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is a wired bot. Close runs after the bot has stopped.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
	Close() error
}

// Options configure Run. C is the bot's own config type.
type Options[C ConfigCarrier] struct {
	// ConfigEnvVar names the variable holding the config path; CONFIG_PATH by default.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (C, error)
	Bootstrap  func(cfg C) (TelegramApp, error)

	// Test seams; nil uses logger.Shutdown and telegram.RunTelegram.
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o Options[C]) configPath() (string, error) {
	env := o.ConfigEnvVar
	if env == "" {
		env = defaultConfigEnv
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if o.DefaultConfigPath != "" {
		return o.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: no config path in $%s and no default", env)
}

// Run drives the whole process and returns the first fatal error.
func Run[C ConfigCarrier](opts Options[C]) (err error) {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	path, err := opts.configPath()
	if err != nil {
		return err
	}

	// The structured logger does not exist until Bootstrap.
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: config has no core section")
	}

	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		err = errors.Join(err, app.Close(), shutdownLogger())
	}()

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	runOpts = withLifecycleLogs(runOpts, time.Now())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

// withLifecycleLogs logs "ready" after the app's OnStart and "shutdown"
// before its OnStop.
func withLifecycleLogs(o coretelegram.RunOptions, started time.Time) coretelegram.RunOptions {
	onStart, onStop := o.OnStart, o.OnStop
	o.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.String("status", "ok"),
			slog.Duration("startup", time.Since(started)),
		)
		return nil
	}
	o.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown", slog.String("status", "ok"))
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
	return o
}

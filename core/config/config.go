// Package config holds the settings every bot process shares: Telegram
// transport, webhook listener, logging and rate limiting.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"

	defaultWebhookListen = "0.0.0.0"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback = "callback"
	UpdateMessage  = "message"
)

type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// Zero keeps the telebot default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig is used in webhook mode only. URL is the public base; the
// token-bearing path is appended at runtime.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"APP_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"PORT"`
	// Checked against the X-Telegram-Bot-Api-Secret-Token header when set.
	Secret string `yaml:"secret" envconfig:"WEBHOOK_SECRET"`
}

type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// dev and debug switch the default format to key=value.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig throttles each sender. Zero IntervalMS disables it.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// LoadInto decodes the YAML file at path into dst, then overlays the
// environment. A .env file in the working directory is read first if present.
func LoadInto(path string, dst any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	return nil
}

// Normalize fills defaults in place and reports every invalid field at once.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	var errs []error
	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	errs = append(errs, cfg.normalizeTransport()...)
	errs = append(errs, cfg.RateLimit.normalize()...)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (cfg *Config) normalizeTransport() []error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "":
		mode = RunModeWebhook
	case "polling":
		mode = RunModeLongpoll
	}

	var errs []error
	switch mode {
	case RunModeWebhook:
		wh := &cfg.Webhook
		wh.URL = strings.TrimRight(strings.TrimSpace(wh.URL), "/")
		if wh.URL == "" {
			errs = append(errs, errors.New("webhook.url is required in webhook mode"))
		}
		if wh.Port <= 0 {
			errs = append(errs, errors.New("webhook.port must be > 0 in webhook mode"))
		}
		if strings.TrimSpace(wh.Listen) == "" {
			wh.Listen = defaultWebhookListen
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			errs = append(errs, errors.New("telegram.longpoll_timeout_seconds must be >= 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("telegram.run_mode %q: want webhook or longpoll", cfg.Telegram.RunMode))
	}
	cfg.Telegram.RunMode = mode
	return errs
}

func (rl *RateLimitConfig) normalize() []error {
	var errs []error
	if rl.IntervalMS < 0 {
		errs = append(errs, errors.New("rate_limit.interval_ms must be >= 0"))
	}
	rl.Burst = max(rl.Burst, 1)

	kinds := []string{UpdateCallback, UpdateMessage}
	for i, v := range rl.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		if kind != "" && !slices.Contains(kinds, kind) {
			errs = append(errs, fmt.Errorf("rate_limit.exclude_updates %q: want callback or message", v))
		}
		rl.ExcludeUpdates[i] = kind
	}
	return errs
}

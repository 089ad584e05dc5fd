// Package config loads the referral bot configuration: the shared core
// settings plus database, referral, session and form options.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/referralbot/core/config"
	coredatabase "github.com/m3rciful/referralbot/core/database"
	"github.com/m3rciful/referralbot/core/telegram/state"
	"github.com/m3rciful/referralbot/internal/form"
	"github.com/m3rciful/referralbot/internal/referral"
)

const defaultMaxDepth = 3

// BotConfig identifies the bot itself.
type BotConfig struct {
	// Username is the bot handle used to build share links.
	Username string `yaml:"username" envconfig:"BOT_USERNAME"`
}

// ReferralsConfig selects how referral lists are built.
type ReferralsConfig struct {
	Mode     string `yaml:"mode" envconfig:"REFERRALS_MODE"`
	MaxDepth int    `yaml:"max_depth" envconfig:"REFERRALS_MAX_DEPTH"`
}

// SessionConfig bounds the in-memory form sessions.
type SessionConfig struct {
	TTL      time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	Capacity int           `yaml:"capacity" envconfig:"SESSION_CAPACITY"`
}

// FormConfig holds the button lists of the choice steps.
type FormConfig struct {
	JobTitles    []string `yaml:"job_titles"`
	JobPositions []string `yaml:"job_positions"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Bot       BotConfig           `yaml:"bot"`
	Referrals ReferralsConfig     `yaml:"referrals"`
	Session   SessionConfig       `yaml:"session"`
	Form      FormConfig          `yaml:"form"`
}

// CoreConfig exposes the embedded core settings to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	cfg.Bot.Username = strings.TrimPrefix(strings.TrimSpace(cfg.Bot.Username), "@")
	if cfg.Bot.Username == "" {
		return fmt.Errorf("bot.username is required")
	}

	mode := referral.Mode(strings.ToLower(strings.TrimSpace(cfg.Referrals.Mode)))
	switch mode {
	case "":
		mode = referral.ModeFlat
	case referral.ModeFlat, referral.ModeTree:
	default:
		return fmt.Errorf("invalid referrals.mode %q; allowed: flat, tree", cfg.Referrals.Mode)
	}
	cfg.Referrals.Mode = string(mode)
	if cfg.Referrals.MaxDepth == 0 {
		cfg.Referrals.MaxDepth = defaultMaxDepth
	}
	if cfg.Referrals.MaxDepth < 1 {
		return fmt.Errorf("referrals.max_depth must be >= 1")
	}

	if cfg.Session.TTL < 0 || cfg.Session.Capacity < 0 {
		return fmt.Errorf("session.ttl and session.capacity must be >= 0")
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = state.DefaultTTL
	}
	if cfg.Session.Capacity == 0 {
		cfg.Session.Capacity = state.DefaultCapacity
	}

	cfg.Form.JobTitles = compact(cfg.Form.JobTitles, form.DefaultJobTitles)
	cfg.Form.JobPositions = compact(cfg.Form.JobPositions, form.DefaultJobPositions)
	return nil
}

func compact(in, def []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}

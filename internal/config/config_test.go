package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
telegram:
  token: "123:abc"
  run_mode: longpoll
database:
  user: bot
  name: referrals
bot:
  username: "@refbot"
referrals:
  mode: Tree
form:
  job_titles: ["  ", "Master"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CoreConfig().Telegram.Token != "123:abc" || cfg.Telegram.RunMode != "longpoll" {
		t.Fatalf("core = %+v", cfg.Telegram)
	}
	if cfg.Bot.Username != "refbot" {
		t.Fatalf("username = %q", cfg.Bot.Username)
	}
	if cfg.Referrals.Mode != "tree" || cfg.Referrals.MaxDepth != 3 {
		t.Fatalf("referrals = %+v", cfg.Referrals)
	}
	if cfg.Session.TTL != 30*time.Minute || cfg.Session.Capacity != 10000 {
		t.Fatalf("session = %+v", cfg.Session)
	}
	if len(cfg.Form.JobTitles) != 1 || cfg.Form.JobTitles[0] != "Master" || len(cfg.Form.JobPositions) != 6 {
		t.Fatalf("form = %+v", cfg.Form)
	}
	if cfg.Database.Port != "5432" {
		t.Fatalf("db port = %q", cfg.Database.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOT_USERNAME", "envbot")
	t.Setenv("SESSION_TTL", "5m")
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.Username != "envbot" || cfg.Session.TTL != 5*time.Minute {
		t.Fatalf("env not applied: %+v %+v", cfg.Bot, cfg.Session)
	}
}

func TestNormalizeRejects(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.Telegram.Token = "t"
		c.Telegram.RunMode = "longpoll"
		c.Database.User = "u"
		c.Database.Name = "n"
		c.Bot.Username = "bot"
		return c
	}
	cases := map[string]func(*Config){
		"no token":     func(c *Config) { c.Telegram.Token = "" },
		"no username":  func(c *Config) { c.Bot.Username = " @ " },
		"bad mode":     func(c *Config) { c.Referrals.Mode = "graph" },
		"bad depth":    func(c *Config) { c.Referrals.MaxDepth = -1 },
		"no db user":   func(c *Config) { c.Database.User = "" },
		"webhook bare": func(c *Config) { c.Telegram.RunMode = "webhook" },
		"negative ttl": func(c *Config) { c.Session.TTL = -time.Second },
	}
	for name, mutate := range cases {
		c := base()
		mutate(c)
		if err := Normalize(c); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if err := Normalize(base()); err != nil {
		t.Fatalf("base config: %v", err)
	}
}

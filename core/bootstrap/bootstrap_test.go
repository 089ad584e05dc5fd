package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/referralbot/core/config"
	coredatabase "github.com/m3rciful/referralbot/core/database"
)

func TestRunOrder(t *testing.T) {
	var calls []string
	res, err := Run(Options{
		Config: &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error {
			calls = append(calls, "logger")
			return nil
		},
		Migrate: func(coredatabase.Config) error {
			calls = append(calls, "migrate")
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			calls = append(calls, "connect")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res == nil {
		t.Fatal("expected result")
	}
	want := []string{"logger", "migrate", "connect"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestRunStopsOnMigrationError(t *testing.T) {
	boom := errors.New("boom")
	connected := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Migrate:    func(coredatabase.Config) error { return boom },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped migration error, got %v", err)
	}
	if connected {
		t.Fatal("connect must not run after a failed migration")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

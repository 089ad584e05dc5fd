package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/referralbot/core/config"
	coretelegram "github.com/m3rciful/referralbot/core/telegram"
)

type testConfig struct{ core *coreconfig.Config }

func (c testConfig) CoreConfig() *coreconfig.Config { return c.core }

type testApp struct {
	closed   bool
	closeErr error
}

func (a *testApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *testApp) Close() error {
	a.closed = true
	return a.closeErr
}

func TestRunLifecycle(t *testing.T) {
	t.Setenv("TEST_BOT_CONFIG", "from-env.yaml")
	app := &testApp{}
	var gotPath string
	var loggerClosed, started, stopped bool

	err := Run(Options[testConfig]{
		ConfigEnvVar: "TEST_BOT_CONFIG",
		LoadConfig: func(path string) (testConfig, error) {
			gotPath = path
			return testConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(testConfig) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { loggerClosed = true; return nil },
		RunTelegram: func(ctx context.Context, o coretelegram.RunOptions) error {
			started = o.OnStart(ctx, coretelegram.Runtime{}) == nil
			stopped = o.OnStop(ctx, coretelegram.Runtime{}) == nil
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotPath != "from-env.yaml" {
		t.Fatalf("config path = %q", gotPath)
	}
	if !started || !stopped || !app.closed || !loggerClosed {
		t.Fatalf("started=%v stopped=%v closed=%v logger=%v", started, stopped, app.closed, loggerClosed)
	}
}

func TestRunJoinsCloseErrors(t *testing.T) {
	closeErr := errors.New("close failed")
	runErr := errors.New("run failed")
	err := Run(Options[testConfig]{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (testConfig, error) {
			return testConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(testConfig) (TelegramApp, error) { return &testApp{closeErr: closeErr}, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram:    func(context.Context, coretelegram.RunOptions) error { return runErr },
	})
	if !errors.Is(err, runErr) || !errors.Is(err, closeErr) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	t.Setenv(defaultConfigEnv, "")
	load := func(string) (testConfig, error) { return testConfig{}, nil }
	boot := func(testConfig) (TelegramApp, error) { return &testApp{}, nil }

	if err := Run(Options[testConfig]{Bootstrap: boot}); err == nil {
		t.Error("missing LoadConfig accepted")
	}
	if err := Run(Options[testConfig]{LoadConfig: load, Bootstrap: boot}); err == nil {
		t.Error("missing config path accepted")
	}
	if err := Run(Options[testConfig]{DefaultConfigPath: "x.yaml", LoadConfig: load, Bootstrap: boot}); err == nil {
		t.Error("config without core section accepted")
	}
}

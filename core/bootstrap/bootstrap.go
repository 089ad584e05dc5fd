// Package bootstrap brings up shared infrastructure in order: logger,
// schema migrations, database pool.
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/referralbot/core/config"
	coredatabase "github.com/m3rciful/referralbot/core/database"
	"github.com/m3rciful/referralbot/core/logger"
)

// Options for Run. Nil hooks use the core implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Migrate    func(coredatabase.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
}

type Result struct {
	DB *sqlx.DB
}

// Run stops at the first failing step; later steps do not run.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	if opts.LoggerInit == nil {
		opts.LoggerInit = logger.InitLogger
	}
	if opts.Migrate == nil {
		opts.Migrate = coredatabase.RunMigrations
	}
	if opts.Connect == nil {
		opts.Connect = coredatabase.Connect
	}

	res := &Result{}
	steps := []struct {
		name string
		run  func() error
	}{
		{"logger", func() error { return opts.LoggerInit(opts.Config) }},
		{"migrations", func() error { return opts.Migrate(opts.Database) }},
		{"database", func() (err error) {
			res.DB, err = opts.Connect(opts.Database)
			return err
		}},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return nil, fmt.Errorf("bootstrap: %s: %w", s.name, err)
		}
	}
	return res, nil
}

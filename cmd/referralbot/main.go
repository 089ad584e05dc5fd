// Command referralbot runs the Telegram referral and registration bot.
package main

import (
	"log"

	"github.com/m3rciful/referralbot/core/bootstrap"
	corecmd "github.com/m3rciful/referralbot/core/cmd"
	"github.com/m3rciful/referralbot/internal/bot"
	"github.com/m3rciful/referralbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options[*config.Config]{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        config.Load,
		Bootstrap: func(cfg *config.Config) (corecmd.TelegramApp, error) {
			res, err := bootstrap.Run(bootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
			})
			if err != nil {
				return nil, err
			}
			app, err := bot.New(cfg, res.DB)
			if err != nil {
				_ = res.DB.Close()
				return nil, err
			}
			return app, nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}

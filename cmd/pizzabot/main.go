package main

import (
	"context"
	"log"

	"github.com/intrening/pizzabot/core/bootstrap"
	corecmd "github.com/intrening/pizzabot/core/cmd"
	coreconfig "github.com/intrening/pizzabot/core/config"
	"github.com/intrening/pizzabot/internal/bot"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return nil, err
			}
			return bot.Config{Core: cfg}, nil
		},
		Bootstrap: func(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := carrier.CoreConfig()
			boot, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			app, err := bot.New(cfg, boot)
			if err != nil {
				_ = boot.Close()
				return nil, err
			}
			return app, nil
		},
	})
	if err != nil {
		log.Fatalf("pizzabot: %v", err)
	}
}

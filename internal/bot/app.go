// Package bot wires the conversation engine to the Telegram transport.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/intrening/pizzabot/core/bootstrap"
	"github.com/intrening/pizzabot/core/buildinfo"
	coreconfig "github.com/intrening/pizzabot/core/config"
	coretelegram "github.com/intrening/pizzabot/core/telegram"
	"github.com/intrening/pizzabot/core/telegram/commands"
	"github.com/intrening/pizzabot/core/telegram/format"
	tghelpers "github.com/intrening/pizzabot/core/telegram/helpers"
	"github.com/intrening/pizzabot/core/telegram/router"
	tgsender "github.com/intrening/pizzabot/core/telegram/sender"
	"github.com/intrening/pizzabot/internal/delivery"
	"github.com/intrening/pizzabot/internal/elasticpath"
	"github.com/intrening/pizzabot/internal/engine"
	"github.com/intrening/pizzabot/internal/followup"
	"github.com/intrening/pizzabot/internal/geocoder"

	tele "gopkg.in/telebot.v4"
)

const followUpText = "Enjoy your pizza! If your order has not arrived yet, reply here and we will sort it out."

// Config wraps the core configuration for the shared runner.
type Config struct {
	Core *coreconfig.Config
}

// CoreConfig exposes the embedded core configuration.
func (c Config) CoreConfig() *coreconfig.Config {
	return c.Core
}

// App owns the pizza ordering application: commerce client, geocoder,
// conversation engine and the follow-up scheduler.
type App struct {
	cfg  *coreconfig.Config
	boot *bootstrap.Result

	commerce  *elasticpath.Client
	engine    *engine.Engine
	scheduler followup.Scheduler

	holder     *botHolder
	registry   *coretelegram.Registry
	dispatcher atomic.Pointer[tgsender.Dispatcher]
	startedAt  time.Time
}

// New builds the application from configuration and bootstrapped
// infrastructure.
func New(cfg *coreconfig.Config, boot *bootstrap.Result) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	if boot == nil || boot.Store == nil {
		return nil, fmt.Errorf("bot: session store is required")
	}

	commerce := elasticpath.New(cfg.Commerce)

	geo, err := geocoder.New(cfg.Geocoder.APIKey)
	if err != nil {
		return nil, fmt.Errorf("bot: geocoder init failed: %w", err)
	}

	holder := &botHolder{}
	rend := newRenderer(holder)
	pay := newPayments(holder, cfg.Payment.ProviderToken, cfg.Payment.Currency)

	sched := followup.New(cfg.FollowUpDelay(), func(ctx context.Context, chatID int64) {
		_ = rend.SendText(ctx, chatID, format.Escape(followUpText), nil)
	})

	eng, err := engine.New(engine.Options{
		Store:    boot.Store,
		Commerce: commerce,
		Geocoder: geo,
		Renderer: rend,
		Payments: pay,
		FollowUp: sched,
		PageSize: cfg.Delivery.MenuPageSize,
		Fees: delivery.Fees{
			Light:    cfg.Delivery.LightFee,
			Standard: cfg.Delivery.StandardFee,
		},
		Currency: cfg.Payment.Currency,
	})
	if err != nil {
		sched.Stop()
		return nil, fmt.Errorf("bot: engine init failed: %w", err)
	}

	return &App{
		cfg:       cfg,
		boot:      boot,
		commerce:  commerce,
		engine:    eng,
		scheduler: sched,
		holder:    holder,
		startedAt: time.Now(),
	}, nil
}

// TelegramRunOptions assembles transport options for the shared runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.onStart,
		Description: "Show the pizza menu",
		Aliases:     []string{"menu"},
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.onStats,
		Description: "Show runtime statistics",
		AdminOnly:   true,
		Hidden:      true,
	})

	a.registry = reg

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.EventRoutes(router.EventRouteOptions{
		OnText:     a.onText,
		OnCallback: a.onCallback,
		OnLocation: a.onLocation,
		OnCheckout: a.onCheckout,
		OnPayment:  a.onPayment,
	})...)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart:     a.onBotStart,
		OnStop:      a.onStop,
	}, nil
}

// onBotStart binds the live bot instance and runs startup seeders once
// the transport is up. Distinct from onStart, the /start chat handler.
func (a *App) onBotStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.holder.bind(rt.Bot)
	a.dispatcher.Store(rt.Dispatcher)

	var seeders []bootstrap.Seeder
	if path := strings.TrimSpace(a.cfg.Commerce.SeedFile); path != "" {
		seeders = append(seeders, bootstrap.SeederFunc(func(ctx context.Context) error {
			return a.commerce.SeedPizzerias(ctx, path)
		}))
	}
	if err := bootstrap.RunSeeders(ctx, seeders...); err != nil {
		return fmt.Errorf("bot: pizzeria seed failed: %w", err)
	}
	return nil
}

func (a *App) onStop(ctx context.Context, rt coretelegram.Runtime) error {
	a.scheduler.Stop()
	return a.boot.Close()
}

func (a *App) onStats(c tele.Context) error {
	var sent, failed uint64
	if d := a.dispatcher.Load(); d != nil {
		sent = d.SentCount()
		failed = d.ErrorCount()
	}

	text := format.Bold("Runtime") + "\n" +
		"Version: " + format.Escape(buildinfo.Version) + "\n" +
		"Uptime: " + format.Duration(time.Since(a.startedAt)) + "\n" +
		"Store: " + format.Escape(a.cfg.Store.Backend) + "\n" +
		fmt.Sprintf("Sent: %d\nSend failures: %d", sent, failed)
	return tghelpers.SendHTML(c, text)
}

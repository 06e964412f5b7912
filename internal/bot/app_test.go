package bot

import (
	"context"
	"testing"

	"github.com/intrening/pizzabot/core/bootstrap"
	coreconfig "github.com/intrening/pizzabot/core/config"
	coretelegram "github.com/intrening/pizzabot/core/telegram"
	"github.com/intrening/pizzabot/internal/session"
)

func testConfig() *coreconfig.Config {
	return &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{Token: "123:token", AdminID: 7},
		Geocoder: coreconfig.GeocoderConfig{APIKey: "test-key"},
		Payment:  coreconfig.PaymentConfig{ProviderToken: "pay-token", Currency: "RUB"},
		Delivery: coreconfig.DeliveryConfig{MenuPageSize: 8, LightFee: 10000, StandardFee: 30000},
		FollowUp: coreconfig.FollowUpConfig{DelayMinutes: 60},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := New(testConfig(), &bootstrap.Result{Store: session.NewMemoryStore()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(app.scheduler.Stop)
	return app
}

// The chat-facing /start handler and the transport lifecycle hook are
// separate methods and both end up wired into the run options.
func TestRunOptionsWireCommandsAndLifecycle(t *testing.T) {
	app := newTestApp(t)

	opts, err := app.TelegramRunOptions()
	if err != nil {
		t.Fatal(err)
	}

	if opts.OnStart == nil || opts.OnStop == nil {
		t.Fatal("lifecycle hooks must be set")
	}
	if len(opts.Routes) == 0 {
		t.Fatal("no routes wired")
	}

	if _, cmd, ok := app.registry.LookupCommand("/start"); !ok || cmd.Handler == nil {
		t.Fatal("/start must be registered with a handler")
	}
	if _, _, ok := app.registry.LookupCommand("/menu"); !ok {
		t.Fatal("/menu alias must resolve")
	}
	if _, cmd, ok := app.registry.LookupCommand("/stats"); !ok || !cmd.AdminOnly {
		t.Fatal("/stats must be registered admin-only")
	}
}

func TestBotStartWithoutSeedFileSucceeds(t *testing.T) {
	app := newTestApp(t)
	if _, err := app.TelegramRunOptions(); err != nil {
		t.Fatal(err)
	}

	if err := app.onBotStart(context.Background(), coretelegram.Runtime{}); err != nil {
		t.Fatalf("bot start hook: %v", err)
	}
}

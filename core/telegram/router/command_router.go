package router

import (
	"log/slog"
	"time"

	"github.com/intrening/pizzabot/core/logger"
	tg "github.com/intrening/pizzabot/core/telegram"
	"github.com/intrening/pizzabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with per-handler
// summary logging and the admin gate where required.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name := normalizeHandlerName(cmd)
		h := withSummary(name, def.Handler)
		if def.AdminOnly {
			h = middleware.AdminOnly(adminOpts)(h)
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.Info(logger.Background(), "tg.wire", "wire.complete",
		slog.Int("commands", len(reg.Commands())),
	)

	return routes
}

func withSummary(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		return handleWithSummary(c, name, start, func() error { return h(c) })
	}
}

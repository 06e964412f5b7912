package router

import (
	tg "github.com/intrening/pizzabot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// EventRouteOptions declares handlers for non-command update kinds.
// Nil entries are skipped.
type EventRouteOptions struct {
	OnText     tele.HandlerFunc
	OnCallback tele.HandlerFunc
	OnLocation tele.HandlerFunc
	OnCheckout tele.HandlerFunc
	OnPayment  tele.HandlerFunc
}

// EventRoutes binds conversational update handlers to their telebot
// endpoints, each wrapped with summary logging.
func EventRoutes(opts EventRouteOptions) []tg.Route {
	bind := func(endpoint any, name string, h tele.HandlerFunc) *tg.Route {
		if h == nil {
			return nil
		}
		return &tg.Route{Endpoint: endpoint, Handler: withSummary(name, h)}
	}

	var routes []tg.Route
	for _, r := range []*tg.Route{
		bind(tele.OnText, "on_text", opts.OnText),
		bind(tele.OnCallback, "on_callback", opts.OnCallback),
		bind(tele.OnLocation, "on_location", opts.OnLocation),
		bind(tele.OnCheckout, "on_checkout", opts.OnCheckout),
		bind(tele.OnPayment, "on_payment", opts.OnPayment),
	} {
		if r != nil {
			routes = append(routes, *r)
		}
	}
	return routes
}

package bot

import (
	"strings"

	tghelpers "github.com/intrening/pizzabot/core/telegram/helpers"
	"github.com/intrening/pizzabot/core/telegram/middleware"
	"github.com/intrening/pizzabot/internal/engine"

	tele "gopkg.in/telebot.v4"
)

func senderName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func (a *App) handle(c tele.Context, ev engine.Event) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return a.engine.Handle(ctx, chat.ID, ev)
}

// onStart resets the conversation; the engine recognizes "/start"
// regardless of the persisted state.
func (a *App) onStart(c tele.Context) error {
	return a.handle(c, engine.TextMessage{
		Text:       "/start",
		SenderName: senderName(c.Sender()),
	})
}

func (a *App) onText(c tele.Context) error {
	text := c.Text()

	// Command aliases arrive as plain text because only canonical
	// command endpoints are registered with the bot.
	if strings.HasPrefix(text, "/") && a.registry != nil {
		name := strings.Fields(text)[0]
		if _, cmd, ok := a.registry.LookupCommand(name); ok && cmd.Handler != nil {
			return cmd.Handler(c)
		}
	}

	return a.handle(c, engine.TextMessage{
		Text:       text,
		SenderName: senderName(c.Sender()),
	})
}

func (a *App) onCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	msgID := 0
	if cb.Message != nil {
		msgID = cb.Message.ID
	}
	err := a.handle(c, engine.CallbackAction{
		Token:      middleware.CallbackToken(cb),
		CallbackID: cb.ID,
		MessageID:  msgID,
	})
	// Clear the spinner if the engine did not answer; a duplicate
	// answer is rejected by Telegram and safely ignored here.
	_ = c.Respond()
	return err
}

func (a *App) onLocation(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Location == nil {
		return nil
	}
	return a.handle(c, engine.LocationShare{
		Lat: float64(msg.Location.Lat),
		Lon: float64(msg.Location.Lng),
	})
}

func (a *App) onCheckout(c tele.Context) error {
	q := c.PreCheckoutQuery()
	if q == nil {
		return nil
	}
	return a.handle(c, engine.PreCheckoutQuery{
		QueryID: q.ID,
		Payload: q.Payload,
	})
}

func (a *App) onPayment(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Payment == nil {
		return nil
	}
	return a.handle(c, engine.SuccessfulPayment{
		Payload:     msg.Payment.Payload,
		TotalAmount: msg.Payment.Total,
		Currency:    msg.Payment.Currency,
	})
}

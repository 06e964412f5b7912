package bot

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	tghelpers "github.com/intrening/pizzabot/core/telegram/helpers"
	"github.com/intrening/pizzabot/core/telegram/keyboard"
	"github.com/intrening/pizzabot/internal/engine"

	tele "gopkg.in/telebot.v4"
)

// ErrNotStarted is returned when output is requested before the bot
// instance is bound by the run loop.
var ErrNotStarted = errors.New("bot: telegram instance not started")

// botHolder carries the tele.Bot pointer that only becomes available
// once the transport run loop has built the bot.
type botHolder struct {
	ptr atomic.Pointer[tele.Bot]
}

func (h *botHolder) bind(b *tele.Bot) {
	h.ptr.Store(b)
}

func (h *botHolder) get() (*tele.Bot, error) {
	b := h.ptr.Load()
	if b == nil {
		return nil, ErrNotStarted
	}
	return b, nil
}

// enqueue hands the call to the async dispatcher when one is wired,
// falling back to a direct call otherwise.
func enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	disp := tghelpers.Dispatcher()
	if disp == nil {
		return run()
	}
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		return run()
	}
	return nil
}

func markupFor(rows [][]engine.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]keyboard.DataBtn, len(rows))
	for i, row := range rows {
		r := make([]keyboard.DataBtn, len(row))
		for j, b := range row {
			r[j] = keyboard.DataBtn{Text: b.Text, Data: b.Data}
		}
		out[i] = r
	}
	return keyboard.DataRows(out...)
}

// renderer delivers engine output through the Telegram bot.
type renderer struct {
	h *botHolder
}

func newRenderer(h *botHolder) *renderer {
	return &renderer{h: h}
}

func (r *renderer) SendText(ctx context.Context, chatID int64, html string, kb [][]engine.Button) error {
	b, err := r.h.get()
	if err != nil {
		return err
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markupFor(kb)}
	return enqueue(ctx, "send.text", "sendMessage", func() error {
		_, err := b.Send(tele.ChatID(chatID), html, opts)
		return err
	})
}

func (r *renderer) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, kb [][]engine.Button) error {
	b, err := r.h.get()
	if err != nil {
		return err
	}
	photo := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markupFor(kb)}
	return enqueue(ctx, "send.photo", "sendPhoto", func() error {
		_, err := b.Send(tele.ChatID(chatID), photo, opts)
		return err
	})
}

func (r *renderer) SendLocation(ctx context.Context, chatID int64, lat, lon float64) error {
	b, err := r.h.get()
	if err != nil {
		return err
	}
	loc := &tele.Location{Lat: float32(lat), Lng: float32(lon)}
	return enqueue(ctx, "send.location", "sendLocation", func() error {
		_, err := b.Send(tele.ChatID(chatID), loc)
		return err
	})
}

func (r *renderer) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	b, err := r.h.get()
	if err != nil {
		return err
	}
	msg := tele.StoredMessage{ChatID: chatID, MessageID: strconv.Itoa(messageID)}
	return enqueue(ctx, "delete.message", "deleteMessage", func() error {
		return b.Delete(msg)
	})
}

// AnswerCallback responds synchronously: callback queries expire fast,
// so they never go through the queue.
func (r *renderer) AnswerCallback(ctx context.Context, callbackID, text string) error {
	b, err := r.h.get()
	if err != nil {
		return err
	}
	return b.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

// payments issues Telegram-native invoices.
type payments struct {
	h             *botHolder
	providerToken string
	currency      string
}

func newPayments(h *botHolder, providerToken, currency string) *payments {
	return &payments{h: h, providerToken: providerToken, currency: currency}
}

func (p *payments) SendInvoice(ctx context.Context, chatID int64, title, description, payload string, amount int) error {
	b, err := p.h.get()
	if err != nil {
		return err
	}
	inv := &tele.Invoice{
		Title:       title,
		Description: description,
		Payload:     payload,
		Currency:    p.currency,
		Token:       p.providerToken,
		Prices: []tele.Price{
			{Label: title, Amount: amount},
		},
	}
	return enqueue(ctx, "send.invoice", "sendInvoice", func() error {
		_, err := b.Send(tele.ChatID(chatID), inv)
		return err
	})
}

func (p *payments) AcceptPreCheckout(ctx context.Context, queryID string) error {
	b, err := p.h.get()
	if err != nil {
		return err
	}
	return b.Accept(&tele.PreCheckoutQuery{ID: queryID})
}

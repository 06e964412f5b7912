package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/intrening/pizzabot/core/logger"
	"github.com/intrening/pizzabot/internal/delivery"
	"github.com/intrening/pizzabot/internal/elasticpath"
	"github.com/intrening/pizzabot/internal/geocoder"
	"github.com/intrening/pizzabot/internal/session"
)

const (
	msgEmailPrompt   = "Please send your email address:"
	msgEmailInvalid  = "That does not look like an email address, please try again:"
	msgAddressPrompt = "Send your delivery address as text, or share your location:"
	msgAddressMiss   = "Could not find that address, please try again or share your location:"
)

func (e *Engine) handleStart(ctx context.Context, chatID int64) (session.State, error) {
	e.chatScratch(chatID).lastPage = 1
	if err := e.showMenu(ctx, chatID, 1); err != nil {
		return "", err
	}
	return session.StateMenu, nil
}

func (e *Engine) handleMenu(ctx context.Context, chatID int64, ev Event) (session.State, error) {
	cb, ok := ev.(CallbackAction)
	if !ok {
		return session.StateMenu, e.showMenu(ctx, chatID, e.chatScratch(chatID).lastPage)
	}

	switch {
	case cb.Token == "cart":
		if err := e.showCart(ctx, chatID); err != nil {
			return "", err
		}
		e.clearView(ctx, chatID, cb.MessageID)
		return session.StateCart, nil

	case strings.HasPrefix(cb.Token, "page "):
		page, err := strconv.Atoi(strings.TrimPrefix(cb.Token, "page "))
		if err != nil || page < 1 {
			page = 1
		}
		e.chatScratch(chatID).lastPage = page
		if err := e.showMenu(ctx, chatID, page); err != nil {
			return "", err
		}
		e.clearView(ctx, chatID, cb.MessageID)
		return session.StateMenu, nil

	default:
		if err := e.showProduct(ctx, chatID, cb.Token); err != nil {
			return "", err
		}
		e.chatScratch(chatID).lastProduct = cb.Token
		e.clearView(ctx, chatID, cb.MessageID)
		return session.StateProduct, nil
	}
}

func (e *Engine) handleProduct(ctx context.Context, chatID int64, ev Event) (session.State, error) {
	cb, ok := ev.(CallbackAction)
	if !ok {
		return session.StateProduct, e.reshowProduct(ctx, chatID)
	}

	if cb.Token == "menu" {
		if err := e.showMenu(ctx, chatID, 1); err != nil {
			return "", err
		}
		e.chatScratch(chatID).lastPage = 1
		e.clearView(ctx, chatID, cb.MessageID)
		return session.StateMenu, nil
	}

	if productID, qty, ok := parseAddToken(cb.Token); ok {
		if err := e.commerce.AddToCart(ctx, chatID, productID, qty); err != nil {
			return "", err
		}
		if err := e.render.AnswerCallback(ctx, cb.CallbackID, "Added to cart!"); err != nil {
			return "", err
		}
		return session.StateProduct, nil
	}

	return session.StateProduct, e.reshowProduct(ctx, chatID)
}

// clearView removes a superseded view message so stale keyboards do
// not pile up in the chat. Best effort.
func (e *Engine) clearView(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	_ = e.render.DeleteMessage(ctx, chatID, messageID)
}

// parseAddToken recognizes "<productID> <qty>" button payloads.
func parseAddToken(token string) (string, int, bool) {
	fields := strings.Fields(token)
	if len(fields) != 2 {
		return "", 0, false
	}
	qty, err := strconv.Atoi(fields[1])
	if err != nil || qty <= 0 {
		return "", 0, false
	}
	return fields[0], qty, true
}

func (e *Engine) handleCart(ctx context.Context, chatID int64, ev Event) (session.State, error) {
	cb, ok := ev.(CallbackAction)
	if !ok {
		return session.StateCart, e.showCart(ctx, chatID)
	}

	switch cb.Token {
	case "menu":
		if err := e.showMenu(ctx, chatID, 1); err != nil {
			return "", err
		}
		e.chatScratch(chatID).lastPage = 1
		e.clearView(ctx, chatID, cb.MessageID)
		return session.StateMenu, nil

	case "checkout":
		if err := e.render.SendText(ctx, chatID, msgEmailPrompt, nil); err != nil {
			return "", err
		}
		return session.StateAwaitEmail, nil

	default:
		// Any other token is a cart line id to remove.
		if err := e.commerce.RemoveFromCart(ctx, chatID, cb.Token); err != nil {
			return "", err
		}
		if err := e.showCart(ctx, chatID); err != nil {
			return "", err
		}
		e.clearView(ctx, chatID, cb.MessageID)
		return session.StateCart, nil
	}
}

func (e *Engine) handleAwaitEmail(ctx context.Context, chatID int64, ev Event) (session.State, error) {
	txt, ok := ev.(TextMessage)
	if !ok {
		return session.StateAwaitEmail, e.render.SendText(ctx, chatID, msgEmailPrompt, nil)
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(txt.Text))
	if err != nil {
		if err := e.render.SendText(ctx, chatID, msgEmailInvalid, nil); err != nil {
			return "", err
		}
		return session.StateAwaitEmail, nil
	}

	name := txt.SenderName
	if name == "" {
		name = fmt.Sprintf("customer-%d", chatID)
	}
	if _, err := e.commerce.CreateCustomer(ctx, name, addr.Address); err != nil {
		// A duplicate email means the customer is already registered.
		var apiErr *elasticpath.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
			return "", err
		}
	}

	if err := e.render.SendText(ctx, chatID, msgAddressPrompt, nil); err != nil {
		return "", err
	}
	return session.StateAwaitAddress, nil
}

func (e *Engine) handleAwaitAddress(ctx context.Context, chatID int64, ev Event) (session.State, error) {
	var point delivery.Point
	switch v := ev.(type) {
	case LocationShare:
		point = delivery.Point{Lat: v.Lat, Lon: v.Lon}
	case TextMessage:
		pt, err := e.geo.Resolve(ctx, v.Text)
		if errors.Is(err, geocoder.ErrNotFound) {
			if err := e.render.SendText(ctx, chatID, msgAddressMiss, nil); err != nil {
				return "", err
			}
			return session.StateAwaitAddress, nil
		}
		if err != nil {
			return "", err
		}
		point = pt
	default:
		return session.StateAwaitAddress, e.render.SendText(ctx, chatID, msgAddressPrompt, nil)
	}

	return e.acceptAddress(ctx, chatID, point)
}

func (e *Engine) acceptAddress(ctx context.Context, chatID int64, point delivery.Point) (session.State, error) {
	if _, err := e.commerce.SaveCustomerAddress(ctx, chatID, point.Lat, point.Lon); err != nil {
		return "", err
	}

	pizzerias, err := e.commerce.Pizzerias(ctx)
	if err != nil {
		return "", err
	}
	if len(pizzerias) == 0 {
		return "", errors.New("no pizzerias registered in the directory")
	}

	points := make([]delivery.Point, len(pizzerias))
	for i, p := range pizzerias {
		points[i] = delivery.Point{Lat: p.Lat, Lon: p.Lon}
	}
	idx, km := delivery.Nearest(point, points)
	tier := delivery.Classify(km)

	logger.Info(ctx, "engine", "address.classified",
		slog.Int64("chat_id", chatID),
		slog.String("pizzeria", pizzerias[idx].Alias),
		slog.Float64("distance_km", km),
		slog.String("tier", tier.String()))

	if tier == delivery.TierReject {
		msg := fmt.Sprintf(
			"The nearest pizzeria is %.1f km away, too far for delivery. Please try another address.", km)
		if err := e.render.SendText(ctx, chatID, msg, nil); err != nil {
			return "", err
		}
		return session.StateAwaitAddress, nil
	}

	e.chatScratch(chatID).pending = &pendingOrder{
		point:    point,
		pizzeria: pizzerias[idx],
		tier:     tier,
	}
	if err := e.render.SendText(ctx, chatID, e.tierMessage(pizzerias[idx], km, tier), deliveryChoiceKeyboard()); err != nil {
		return "", err
	}
	return session.StateAwaitDelivery, nil
}

func (e *Engine) handleAwaitDelivery(ctx context.Context, chatID int64, ev Event) (session.State, error) {
	cb, ok := ev.(CallbackAction)
	if !ok {
		return session.StateAwaitDelivery, e.render.SendText(ctx, chatID,
			"Pickup or delivery?", deliveryChoiceKeyboard())
	}

	scratch := e.chatScratch(chatID)
	pending := scratch.pending
	if pending == nil {
		// The pending assignment is process-local; after a restart the
		// address must be submitted again.
		if err := e.render.SendText(ctx, chatID, msgAddressPrompt, nil); err != nil {
			return "", err
		}
		return session.StateAwaitAddress, nil
	}

	switch cb.Token {
	case "pickup":
		msg := fmt.Sprintf("Pick up your order at: %s", esc(pending.pizzeria.Address))
		if err := e.render.SendText(ctx, chatID, msg, nil); err != nil {
			return "", err
		}
		if err := e.issueInvoice(ctx, chatID, 0); err != nil {
			return "", err
		}
		e.followUp.Schedule(chatID)
		scratch.pending = nil
		return session.StateStart, nil

	case "delivery":
		if err := e.notifyCourier(ctx, chatID, pending); err != nil {
			return "", err
		}
		if err := e.issueInvoice(ctx, chatID, e.fees.For(pending.tier)); err != nil {
			return "", err
		}
		e.followUp.Schedule(chatID)
		scratch.pending = nil
		return session.StateAwaitAddress, nil

	default:
		return session.StateAwaitDelivery, e.render.SendText(ctx, chatID,
			"Pickup or delivery?", deliveryChoiceKeyboard())
	}
}

func (e *Engine) notifyCourier(ctx context.Context, chatID int64, pending *pendingOrder) error {
	courier := pending.pizzeria.CourierChatID
	if courier == 0 {
		logger.Warn(ctx, "engine", "courier.missing",
			slog.String("pizzeria", pending.pizzeria.Alias))
		return nil
	}

	cart, err := e.commerce.CartContents(ctx, chatID)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("New delivery order:\n")
	for _, line := range cart.Lines {
		fmt.Fprintf(&b, "%s x%d\n", esc(line.Name), line.Quantity)
	}
	fmt.Fprintf(&b, "Total: %s", e.formatAmount(cart.TotalAmount))

	if err := e.render.SendText(ctx, courier, b.String(), nil); err != nil {
		return err
	}
	return e.render.SendLocation(ctx, courier, pending.point.Lat, pending.point.Lon)
}

func (e *Engine) issueInvoice(ctx context.Context, chatID int64, fee int) error {
	cart, err := e.commerce.CartContents(ctx, chatID)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, line := range cart.Lines {
		fmt.Fprintf(&b, "%s x%d; ", line.Name, line.Quantity)
	}
	if fee > 0 {
		fmt.Fprintf(&b, "delivery %s", e.formatAmount(fee))
	}

	payload := uuid.New().String()
	amount := cart.TotalAmount + fee
	if err := e.payments.SendInvoice(ctx, chatID, "Pizza order",
		strings.TrimSuffix(b.String(), "; "), payload, amount); err != nil {
		return err
	}
	logger.Info(ctx, "engine", "invoice.sent",
		slog.Int64("chat_id", chatID),
		slog.Int("amount", amount),
		slog.String("payload", payload))
	return nil
}

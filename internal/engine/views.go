package engine

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/intrening/pizzabot/internal/delivery"
	"github.com/intrening/pizzabot/internal/elasticpath"
)

func esc(s string) string {
	return html.EscapeString(s)
}

func (e *Engine) formatAmount(amount int) string {
	currency := e.currency
	if currency == "" {
		currency = "RUB"
	}
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, currency)
}

// showMenu renders one catalog page. Page p covers the half-open item
// range [(p-1)*size, min(p*size, total)); out-of-range pages render an
// empty list with whatever navigation is still valid.
func (e *Engine) showMenu(ctx context.Context, chatID int64, page int) error {
	products, err := e.commerce.FetchProducts(ctx)
	if err != nil {
		return err
	}
	if page < 1 {
		page = 1
	}

	total := len(products)
	lo := (page - 1) * e.pageSize
	hi := page * e.pageSize
	if hi > total {
		hi = total
	}

	var keyboard [][]Button
	if lo < total {
		for _, p := range products[lo:hi] {
			keyboard = append(keyboard, []Button{{Text: p.Name, Data: p.ID}})
		}
	}

	var nav []Button
	if page > 1 {
		nav = append(nav, Button{Text: "⬅️ Back", Data: fmt.Sprintf("page %d", page-1)})
	}
	if page*e.pageSize < total {
		nav = append(nav, Button{Text: "Next ➡️", Data: fmt.Sprintf("page %d", page+1)})
	}
	if len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}
	keyboard = append(keyboard, []Button{{Text: "🛒 Cart", Data: "cart"}})

	return e.render.SendText(ctx, chatID, "<b>Menu</b>, pick a pizza:", keyboard)
}

func (e *Engine) showProduct(ctx context.Context, chatID int64, productID string) error {
	product, err := e.commerce.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	caption := fmt.Sprintf("%s\n\n%s\n\nPrice: %s",
		esc(product.Name), esc(product.Description), e.formatAmount(product.Amount))

	keyboard := [][]Button{
		{
			{Text: "+1", Data: fmt.Sprintf("%s 1", product.ID)},
			{Text: "+5", Data: fmt.Sprintf("%s 5", product.ID)},
			{Text: "+10", Data: fmt.Sprintf("%s 10", product.ID)},
		},
		{{Text: "⬅️ Menu", Data: "menu"}},
	}

	if product.ImageFileID != "" {
		url, err := e.commerce.ImageURL(ctx, product.ImageFileID)
		if err != nil {
			return err
		}
		return e.render.SendPhoto(ctx, chatID, url, caption, keyboard)
	}
	return e.render.SendText(ctx, chatID, caption, keyboard)
}

// reshowProduct re-renders the last viewed product, falling back to
// the menu when none is tracked.
func (e *Engine) reshowProduct(ctx context.Context, chatID int64) error {
	if id := e.chatScratch(chatID).lastProduct; id != "" {
		return e.showProduct(ctx, chatID, id)
	}
	return e.showMenu(ctx, chatID, 1)
}

func (e *Engine) showCart(ctx context.Context, chatID int64) error {
	cart, err := e.commerce.CartContents(ctx, chatID)
	if err != nil {
		return err
	}

	if len(cart.Lines) == 0 {
		keyboard := [][]Button{{{Text: "⬅️ Menu", Data: "menu"}}}
		return e.render.SendText(ctx, chatID, "Your cart is empty.", keyboard)
	}

	var b strings.Builder
	var keyboard [][]Button
	for _, line := range cart.Lines {
		fmt.Fprintf(&b, "<b>%s</b>\n%s\n%s each\nIn cart: %d for %s\n\n",
			esc(line.Name), esc(line.Description),
			e.formatAmount(line.UnitAmount), line.Quantity,
			e.formatAmount(line.ValueAmount))
		keyboard = append(keyboard, []Button{{
			Text: fmt.Sprintf("Remove %s", line.Name),
			Data: line.ID,
		}})
	}
	total := cart.TotalFormatted
	if total == "" {
		total = e.formatAmount(cart.TotalAmount)
	}
	fmt.Fprintf(&b, "<b>Total:</b> %s", esc(total))

	keyboard = append(keyboard,
		[]Button{{Text: "💳 Checkout", Data: "checkout"}},
		[]Button{{Text: "⬅️ Menu", Data: "menu"}},
	)
	return e.render.SendText(ctx, chatID, b.String(), keyboard)
}

func (e *Engine) tierMessage(p elasticpath.Pizzeria, km float64, tier delivery.Tier) string {
	switch tier {
	case delivery.TierFreePickup:
		return fmt.Sprintf(
			"You are only %.0f m from %q (%s). You can pick the order up for free, or we deliver it for free. Which works for you?",
			km*1000, esc(p.Alias), esc(p.Address))
	case delivery.TierLightDelivery:
		return fmt.Sprintf(
			"The nearest pizzeria %q is %.1f km away. Delivery costs %s, or pick it up yourself.",
			esc(p.Alias), km, e.formatAmount(e.fees.Light))
	default:
		return fmt.Sprintf(
			"The nearest pizzeria %q is %.1f km away. Delivery costs %s, or pick it up yourself.",
			esc(p.Alias), km, e.formatAmount(e.fees.Standard))
	}
}

func deliveryChoiceKeyboard() [][]Button {
	return [][]Button{
		{{Text: "🚚 Delivery", Data: "delivery"}},
		{{Text: "🏃 Pickup", Data: "pickup"}},
	}
}

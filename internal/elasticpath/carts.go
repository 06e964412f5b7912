package elasticpath

import (
	"context"
	"fmt"
	"net/http"
)

// CartLine is one cart position. Amounts are minor currency units;
// UnitAmount is the per-item price and ValueAmount the line total.
type CartLine struct {
	// ID identifies the cart line itself, used for removal.
	ID          string
	ProductID   string
	Name        string
	Description string
	Quantity    int
	UnitAmount  int
	ValueAmount int
}

// Cart is a snapshot of a chat's cart with the backend-computed total.
type Cart struct {
	Lines       []CartLine
	TotalAmount int
	// TotalFormatted is the backend's display string for the total.
	TotalFormatted string
}

// Carts are keyed by chat so each conversation owns exactly one cart.
func cartRef(chatID int64) string {
	return fmt.Sprintf(":%d", chatID)
}

// AddToCart puts quantity units of a product into the chat's cart.
func (c *Client) AddToCart(ctx context.Context, chatID int64, productID string, quantity int) error {
	payload := map[string]any{
		"data": map[string]any{
			"id":       productID,
			"type":     "cart_item",
			"quantity": quantity,
		},
	}
	path := fmt.Sprintf("/v2/carts/%s/items", cartRef(chatID))
	return c.doJSON(ctx, http.MethodPost, path, payload, nil)
}

// RemoveFromCart deletes one cart line by its line id.
func (c *Client) RemoveFromCart(ctx context.Context, chatID int64, lineID string) error {
	path := fmt.Sprintf("/v2/carts/%s/items/%s", cartRef(chatID), lineID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

type cartItemData struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Meta        struct {
		DisplayPrice struct {
			WithTax struct {
				Unit struct {
					Amount int `json:"amount"`
				} `json:"unit"`
				Value struct {
					Amount int `json:"amount"`
				} `json:"value"`
			} `json:"with_tax"`
		} `json:"display_price"`
	} `json:"meta"`
}

func (d cartItemData) toLine() CartLine {
	line := CartLine{
		ID:          d.ID,
		ProductID:   d.ProductID,
		Name:        d.Name,
		Description: d.Description,
		Quantity:    d.Quantity,
		UnitAmount:  d.Meta.DisplayPrice.WithTax.Unit.Amount,
		ValueAmount: d.Meta.DisplayPrice.WithTax.Value.Amount,
	}
	// Some API versions omit quantity on cart items; derive it from the
	// line total and the unit price.
	if line.Quantity == 0 && line.UnitAmount > 0 {
		line.Quantity = line.ValueAmount / line.UnitAmount
	}
	return line
}

// CartContents fetches the chat's cart lines and total in two calls.
func (c *Client) CartContents(ctx context.Context, chatID int64) (Cart, error) {
	var itemsResp struct {
		Data []cartItemData `json:"data"`
	}
	itemsPath := fmt.Sprintf("/v2/carts/%s/items", cartRef(chatID))
	if err := c.doJSON(ctx, http.MethodGet, itemsPath, nil, &itemsResp); err != nil {
		return Cart{}, err
	}

	var cartResp struct {
		Data struct {
			Meta struct {
				DisplayPrice struct {
					WithTax struct {
						Amount    int    `json:"amount"`
						Formatted string `json:"formatted"`
					} `json:"with_tax"`
				} `json:"display_price"`
			} `json:"meta"`
		} `json:"data"`
	}
	cartPath := fmt.Sprintf("/v2/carts/%s", cartRef(chatID))
	if err := c.doJSON(ctx, http.MethodGet, cartPath, nil, &cartResp); err != nil {
		return Cart{}, err
	}

	cart := Cart{
		Lines:          make([]CartLine, 0, len(itemsResp.Data)),
		TotalAmount:    cartResp.Data.Meta.DisplayPrice.WithTax.Amount,
		TotalFormatted: cartResp.Data.Meta.DisplayPrice.WithTax.Formatted,
	}
	for _, d := range itemsResp.Data {
		cart.Lines = append(cart.Lines, d.toLine())
	}
	return cart, nil
}

// ClearCart removes every line from the chat's cart.
func (c *Client) ClearCart(ctx context.Context, chatID int64) error {
	cart, err := c.CartContents(ctx, chatID)
	if err != nil {
		return err
	}
	for _, line := range cart.Lines {
		if err := c.RemoveFromCart(ctx, chatID, line.ID); err != nil {
			return err
		}
	}
	return nil
}

package elasticpath

import (
	"context"
	"fmt"
	"net/http"
)

// Flow slugs for the custom data models kept in the commerce backend.
const (
	flowPizzeria        = "pizzeria"
	flowCustomerAddress = "customer_address"
)

// Pizzeria is one outlet from the pizzeria flow.
type Pizzeria struct {
	ID      string
	Address string
	Alias   string
	Lat     float64
	Lon     float64
	// CourierChatID is the Telegram chat that receives delivery orders
	// for this outlet.
	CourierChatID int64
}

type pizzeriaEntry struct {
	ID            string  `json:"id"`
	Address       string  `json:"Address"`
	Alias         string  `json:"Alias"`
	Latitude      float64 `json:"Latitude"`
	Longitude     float64 `json:"Longitude"`
	CourierChatID int64   `json:"Courier-telegram-id"`
}

// Pizzerias lists every outlet registered in the pizzeria flow.
func (c *Client) Pizzerias(ctx context.Context) ([]Pizzeria, error) {
	var resp struct {
		Data []pizzeriaEntry `json:"data"`
	}
	path := fmt.Sprintf("/v2/flows/%s/entries", flowPizzeria)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Pizzeria, 0, len(resp.Data))
	for _, e := range resp.Data {
		out = append(out, Pizzeria{
			ID:            e.ID,
			Address:       e.Address,
			Alias:         e.Alias,
			Lat:           e.Latitude,
			Lon:           e.Longitude,
			CourierChatID: e.CourierChatID,
		})
	}
	return out, nil
}

// CreatePizzeria registers one outlet in the pizzeria flow.
func (c *Client) CreatePizzeria(ctx context.Context, p Pizzeria) (string, error) {
	fields := map[string]any{
		"Address":             p.Address,
		"Alias":               p.Alias,
		"Latitude":            p.Lat,
		"Longitude":           p.Lon,
		"Courier-telegram-id": p.CourierChatID,
	}
	return c.createEntry(ctx, flowPizzeria, fields)
}

// SaveCustomerAddress records a delivery destination in the
// customer_address flow for courier dispatch and analytics.
func (c *Client) SaveCustomerAddress(ctx context.Context, chatID int64, lat, lon float64) (string, error) {
	fields := map[string]any{
		"telegram-id": fmt.Sprintf("%d", chatID),
		"Latitude":    lat,
		"Longitude":   lon,
	}
	return c.createEntry(ctx, flowCustomerAddress, fields)
}

func (c *Client) createEntry(ctx context.Context, flowSlug string, fields map[string]any) (string, error) {
	data := map[string]any{"type": "entry"}
	for k, v := range fields {
		data[k] = v
	}
	payload := map[string]any{"data": data}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/v2/flows/%s/entries", flowSlug)
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

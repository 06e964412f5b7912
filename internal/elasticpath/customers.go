package elasticpath

import (
	"context"
	"net/http"
)

// CreateCustomer registers a buyer in the commerce CRM. The backend
// rejects duplicate emails with a 409, which callers may treat as
// already-registered.
func (c *Client) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	payload := map[string]any{
		"data": map[string]any{
			"type":  "customer",
			"name":  name,
			"email": email,
		},
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v2/customers", payload, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

package elasticpath

import (
	"context"
	"fmt"
	"net/http"
)

// Product is one catalog item. Amount is the unit price in minor
// currency units.
type Product struct {
	ID          string
	Name        string
	Description string
	Amount      int
	Currency    string
	// ImageFileID references the main image file; resolve a URL via ImageURL.
	ImageFileID string
}

type productData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       []struct {
		Amount   int    `json:"amount"`
		Currency string `json:"currency"`
	} `json:"price"`
	Relationships struct {
		MainImage struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"main_image"`
	} `json:"relationships"`
}

func (d productData) toProduct() Product {
	p := Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		ImageFileID: d.Relationships.MainImage.Data.ID,
	}
	if len(d.Price) > 0 {
		p.Amount = d.Price[0].Amount
		p.Currency = d.Price[0].Currency
	}
	return p
}

// FetchProducts lists the full catalog.
func (c *Client) FetchProducts(ctx context.Context) ([]Product, error) {
	var resp struct {
		Data []productData `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v2/products", nil, &resp); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(resp.Data))
	for _, d := range resp.Data {
		products = append(products, d.toProduct())
	}
	return products, nil
}

// GetProduct fetches a single catalog item by id.
func (c *Client) GetProduct(ctx context.Context, productID string) (Product, error) {
	var resp struct {
		Data productData `json:"data"`
	}
	path := fmt.Sprintf("/v2/products/%s", productID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Product{}, err
	}
	return resp.Data.toProduct(), nil
}

// ImageURL resolves a stored file id to its public link.
func (c *Client) ImageURL(ctx context.Context, fileID string) (string, error) {
	var resp struct {
		Data struct {
			Link struct {
				Href string `json:"href"`
			} `json:"link"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/v2/files/%s", fileID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Data.Link.Href, nil
}

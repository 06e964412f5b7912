package elasticpath

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	coreconfig "github.com/intrening/pizzabot/core/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(coreconfig.CommerceConfig{
		BaseURL:        srv.URL,
		ClientID:       "test-client",
		TimeoutSeconds: 5,
	})
	return c, srv
}

func serveToken(w http.ResponseWriter, expiresIn int64) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "tok-1",
		"expires_in":   expiresIn,
	})
}

func TestTokenCachedAcrossCalls(t *testing.T) {
	var tokenHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "implicit" {
			t.Errorf("grant_type = %q, expected implicit", got)
		}
		if got := r.Form.Get("client_id"); got != "test-client" {
			t.Errorf("client_id = %q", got)
		}
		tokenHits.Add(1)
		serveToken(w, 3600)
	})
	mux.HandleFunc("/v2/products", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	})

	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.FetchProducts(ctx); err != nil {
			t.Fatalf("fetch products: %v", err)
		}
	}
	if n := tokenHits.Load(); n != 1 {
		t.Fatalf("token endpoint hit %d times, expected 1", n)
	}
}

func TestTokenRefreshedAfterExpiry(t *testing.T) {
	var tokenHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenHits.Add(1)
		serveToken(w, 3600)
	})
	mux.HandleFunc("/v2/products", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	})

	c, _ := newTestClient(t, mux)

	fakeNow := time.Now()
	c.tokens.now = func() time.Time { return fakeNow }

	ctx := context.Background()
	if _, err := c.FetchProducts(ctx); err != nil {
		t.Fatalf("fetch products: %v", err)
	}
	// Advance past the cached expiry; the next call must re-authenticate.
	fakeNow = fakeNow.Add(2 * time.Hour)
	if _, err := c.FetchProducts(ctx); err != nil {
		t.Fatalf("fetch products: %v", err)
	}
	if n := tokenHits.Load(); n != 2 {
		t.Fatalf("token endpoint hit %d times, expected 2", n)
	}
}

func TestFetchProductsParsesCatalog(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) { serveToken(w, 3600) })
	mux.HandleFunc("/v2/products", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [
			{
				"id": "p1",
				"name": "Margherita",
				"description": "Tomato and mozzarella",
				"price": [{"amount": 55000, "currency": "RUB"}],
				"relationships": {"main_image": {"data": {"id": "img1"}}}
			}
		]}`))
	})

	c, _ := newTestClient(t, mux)
	products, err := c.FetchProducts(context.Background())
	if err != nil {
		t.Fatalf("fetch products: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("got %d products, expected 1", len(products))
	}
	p := products[0]
	if p.ID != "p1" || p.Name != "Margherita" || p.Amount != 55000 || p.Currency != "RUB" || p.ImageFileID != "img1" {
		t.Fatalf("unexpected product: %+v", p)
	}
}

func TestCartContentsDerivesQuantity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) { serveToken(w, 3600) })
	mux.HandleFunc("/v2/carts/:42/items", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [
			{
				"id": "line1",
				"product_id": "p1",
				"name": "Margherita",
				"description": "Tomato and mozzarella",
				"meta": {"display_price": {"with_tax": {
					"unit": {"amount": 55000},
					"value": {"amount": 165000}
				}}}
			}
		]}`))
	})
	mux.HandleFunc("/v2/carts/:42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"meta": {"display_price": {"with_tax": {
			"amount": 165000, "formatted": "1650.00 RUB"
		}}}}}`))
	})

	c, _ := newTestClient(t, mux)
	cart, err := c.CartContents(context.Background(), 42)
	if err != nil {
		t.Fatalf("cart contents: %v", err)
	}
	if len(cart.Lines) != 1 {
		t.Fatalf("got %d lines, expected 1", len(cart.Lines))
	}
	line := cart.Lines[0]
	if line.Quantity != 3 {
		t.Errorf("quantity = %d, expected 3 (165000/55000)", line.Quantity)
	}
	if line.UnitAmount != 55000 || line.ValueAmount != 165000 {
		t.Errorf("amounts = %d/%d", line.UnitAmount, line.ValueAmount)
	}
	if cart.TotalAmount != 165000 || cart.TotalFormatted != "1650.00 RUB" {
		t.Errorf("total = %d %q", cart.TotalAmount, cart.TotalFormatted)
	}
}

func TestAddToCartPayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) { serveToken(w, 3600) })
	mux.HandleFunc("/v2/carts/:42/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var payload struct {
			Data struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Quantity int    `json:"quantity"`
			} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Data.ID != "p1" || payload.Data.Type != "cart_item" || payload.Data.Quantity != 5 {
			t.Errorf("unexpected payload: %+v", payload.Data)
		}
		w.WriteHeader(http.StatusCreated)
	})

	c, _ := newTestClient(t, mux)
	if err := c.AddToCart(context.Background(), 42, "p1", 5); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
}

func TestAPIErrorOnServerFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) { serveToken(w, 3600) })
	mux.HandleFunc("/v2/products", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors": [{"title": "boom"}]}`, http.StatusInternalServerError)
	})

	c, _ := newTestClient(t, mux)
	_, err := c.FetchProducts(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d", apiErr.Status)
	}
}

func TestPizzeriasParsesFlowEntries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) { serveToken(w, 3600) })
	mux.HandleFunc("/v2/flows/pizzeria/entries", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [
			{
				"id": "e1",
				"Address": "Moscow, Arbat 1",
				"Alias": "Arbat",
				"Latitude": 55.75,
				"Longitude": 37.59,
				"Courier-telegram-id": 100500
			}
		]}`))
	})

	c, _ := newTestClient(t, mux)
	pizzerias, err := c.Pizzerias(context.Background())
	if err != nil {
		t.Fatalf("pizzerias: %v", err)
	}
	if len(pizzerias) != 1 {
		t.Fatalf("got %d entries, expected 1", len(pizzerias))
	}
	p := pizzerias[0]
	if p.Alias != "Arbat" || p.Lat != 55.75 || p.Lon != 37.59 || p.CourierChatID != 100500 {
		t.Fatalf("unexpected pizzeria: %+v", p)
	}
}

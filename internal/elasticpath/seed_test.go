package elasticpath

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestSeedPizzeriasSkipsExisting(t *testing.T) {
	seedJSON := `[
		{
			"alias": "Arbat",
			"address": {"full": "Moscow, Arbat 1"},
			"coordinates": {"lat": "55.75", "lon": "37.59"}
		},
		{
			"alias": "Tverskaya",
			"address": {"full": "Moscow, Tverskaya 7"},
			"coordinates": {"lat": 55.764, "lon": 37.605}
		}
	]`
	path := filepath.Join(t.TempDir(), "pizzerias.json")
	if err := os.WriteFile(path, []byte(seedJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	var created atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) { serveToken(w, 3600) })
	mux.HandleFunc("/v2/flows/pizzeria/entries", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			// Arbat already exists upstream.
			_, _ = w.Write([]byte(`{"data": [
				{"id": "e1", "Address": "Moscow, Arbat 1", "Alias": "Arbat", "Latitude": 55.75, "Longitude": 37.59}
			]}`))
		case http.MethodPost:
			var payload struct {
				Data map[string]any `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode entry payload: %v", err)
			}
			if payload.Data["Alias"] != "Tverskaya" {
				t.Errorf("created alias = %v, expected Tverskaya", payload.Data["Alias"])
			}
			created.Add(1)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data": {"id": "e2"}}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	c, _ := newTestClient(t, mux)
	if err := c.SeedPizzerias(context.Background(), path); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n := created.Load(); n != 1 {
		t.Fatalf("created %d entries, expected 1", n)
	}
}

package elasticpath

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/intrening/pizzabot/core/logger"
)

type seedPizzeria struct {
	Alias   string `json:"alias"`
	Address struct {
		Full string `json:"full"`
	} `json:"address"`
	Coordinates struct {
		Lat json.Number `json:"lat"`
		Lon json.Number `json:"lon"`
	} `json:"coordinates"`
}

// SeedPizzerias uploads outlets from a JSON file into the pizzeria
// flow. Entries already present (matched by address) are skipped, so
// reseeding on every start is safe.
func (c *Client) SeedPizzerias(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("commerce: read seed file: %w", err)
	}
	var seeds []seedPizzeria
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return fmt.Errorf("commerce: parse seed file: %w", err)
	}

	existing, err := c.Pizzerias(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		known[p.Address] = struct{}{}
	}

	created := 0
	for _, s := range seeds {
		if _, ok := known[s.Address.Full]; ok {
			continue
		}
		lat, err := strconv.ParseFloat(s.Coordinates.Lat.String(), 64)
		if err != nil {
			return fmt.Errorf("commerce: seed %q: bad latitude: %w", s.Alias, err)
		}
		lon, err := strconv.ParseFloat(s.Coordinates.Lon.String(), 64)
		if err != nil {
			return fmt.Errorf("commerce: seed %q: bad longitude: %w", s.Alias, err)
		}
		if _, err := c.CreatePizzeria(ctx, Pizzeria{
			Address: s.Address.Full,
			Alias:   s.Alias,
			Lat:     lat,
			Lon:     lon,
		}); err != nil {
			return err
		}
		created++
	}

	logger.Info(ctx, "commerce", "seed.done",
		slog.Int("total", len(seeds)),
		slog.Int("created", created),
		slog.Int("skipped", len(seeds)-created))
	return nil
}

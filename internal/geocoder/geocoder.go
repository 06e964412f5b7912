// Package geocoder resolves free-form postal addresses to coordinates
// through the Google Geocoding API.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/intrening/pizzabot/core/logger"
	"github.com/intrening/pizzabot/internal/delivery"
)

// ErrNotFound is returned when the API yields no match for an address.
var ErrNotFound = errors.New("geocoder: address not found")

// Geocoder resolves an address string to a coordinate pair.
type Geocoder struct {
	client *maps.Client
}

// New creates a Geocoder with the given API key.
func New(apiKey string) (*Geocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &Geocoder{client: client}, nil
}

// Resolve geocodes the address and returns the highest-ranked match.
// It returns ErrNotFound when the API recognizes nothing in the text.
func (g *Geocoder) Resolve(ctx context.Context, address string) (delivery.Point, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return delivery.Point{}, ErrNotFound
	}

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: trimmed})
	if err != nil {
		logger.Warn(ctx, "geo", "geocode.fail",
			slog.String("error", err.Error()))
		return delivery.Point{}, fmt.Errorf("geocode %q: %w", trimmed, err)
	}
	if len(results) == 0 {
		logger.Debug(ctx, "geo", "geocode.empty",
			slog.String("address", logger.SanitizeLimit(trimmed, 120)))
		return delivery.Point{}, ErrNotFound
	}

	loc := results[0].Geometry.Location
	pt := delivery.Point{Lat: loc.Lat, Lon: loc.Lng}
	logger.Debug(ctx, "geo", "geocode.ok",
		slog.Float64("lat", pt.Lat),
		slog.Float64("lon", pt.Lon))
	return pt, nil
}

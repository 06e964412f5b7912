package delivery

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	// Red Square to Gorky Park entrance, roughly 2.4 km apart.
	redSquare := Point{Lat: 55.7539, Lon: 37.6208}
	gorkyPark := Point{Lat: 55.7299, Lon: 37.6012}

	km := DistanceKm(redSquare, gorkyPark)
	if km < 2.0 || km > 3.5 {
		t.Fatalf("distance = %v km, expected around 2.4-3", km)
	}

	if d := DistanceKm(redSquare, redSquare); d != 0 {
		t.Fatalf("distance to self = %v, expected 0", d)
	}

	// Symmetry.
	if a, b := DistanceKm(redSquare, gorkyPark), DistanceKm(gorkyPark, redSquare); math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", a, b)
	}
}

func TestNearest(t *testing.T) {
	from := Point{Lat: 55.75, Lon: 37.62}
	candidates := []Point{
		{Lat: 55.90, Lon: 37.40},
		{Lat: 55.751, Lon: 37.621}, // closest
		{Lat: 55.60, Lon: 37.80},
	}

	idx, km := Nearest(from, candidates)
	if idx != 1 {
		t.Fatalf("nearest index = %d, expected 1", idx)
	}
	if km > 1 {
		t.Fatalf("nearest distance = %v km, expected under 1", km)
	}
}

func TestNearestEmpty(t *testing.T) {
	idx, km := Nearest(Point{}, nil)
	if idx != -1 || km != 0 {
		t.Fatalf("Nearest on empty list = (%d, %v), expected (-1, 0)", idx, km)
	}
}

package delivery

import "math"

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometres between two points.
func DistanceKm(a, b Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLon := degreesToRadians(b.Lon - a.Lon)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Nearest returns the index of the candidate closest to from and the
// distance to it in kilometres. It returns -1 for an empty candidate list.
func Nearest(from Point, candidates []Point) (int, float64) {
	best := -1
	bestKm := math.MaxFloat64
	for i, c := range candidates {
		if km := DistanceKm(from, c); km < bestKm {
			best = i
			bestKm = km
		}
	}
	if best == -1 {
		return -1, 0
	}
	return best, bestKm
}

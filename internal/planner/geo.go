package planner

import (
	"math"

	"github.com/sells-group/visit-planner/internal/model"
)

const earthRadiusKM = 6371.0

// DistanceFunc returns the distance in kilometers between two points.
type DistanceFunc func(a, b model.Coordinates) float64

// HaversineKM is the great-circle distance between a and b.
func HaversineKM(a, b model.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}

package geo

import (
	"math"
	"sort"

	"github.com/reggosong/freebies-go/internal/models"
)

// earthRadiusKm is the mean Earth radius
const earthRadiusKm = 6371.0

// DistanceKm computes the Haversine great-circle distance between two
// points, in kilometers.
func DistanceKm(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Suggestion is an address-autocomplete candidate
type Suggestion struct {
	Label    string
	Location models.Coordinates
}

// RankByDistance orders suggestions by distance from center, nearest
// first. The sort is stable so equidistant suggestions keep provider
// order. Feed geo-filtering is not done here; the server owns that.
func RankByDistance(center models.Coordinates, suggestions []Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		return DistanceKm(center, suggestions[i].Location) < DistanceKm(center, suggestions[j].Location)
	})
}

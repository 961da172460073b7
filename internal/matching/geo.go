package matching

import (
	"math"
	"sort"

	"github.com/pulseroute/platform/internal/hospital"
	"github.com/pulseroute/platform/internal/shared/types"
)

const earthRadiusKM = 6371.0

// Candidate is a hospital within search range of a patient, annotated
// with the great-circle distance to it
type Candidate struct {
	Hospital   hospital.Hospital `json:"hospital"`
	DistanceKM float64           `json:"distance_km"`
}

// GeoIndex selects candidate hospitals by proximity
type GeoIndex struct {
	radiusKM float64
}

// NewGeoIndex creates a geo index with the given search radius in
// kilometers
func NewGeoIndex(radiusKM float64) *GeoIndex {
	return &GeoIndex{radiusKM: radiusKM}
}

// Candidates returns the hospitals within the search radius of the given
// location, closest first. Ties are broken by hospital ID so the result
// is deterministic for identical inputs.
func (g *GeoIndex) Candidates(loc types.Location, hospitals []hospital.Hospital) []Candidate {
	var candidates []Candidate
	for _, h := range hospitals {
		d := HaversineKM(loc, h.Location)
		if d <= g.radiusKM {
			candidates = append(candidates, Candidate{Hospital: h, DistanceKM: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKM != candidates[j].DistanceKM {
			return candidates[i].DistanceKM < candidates[j].DistanceKM
		}
		return candidates[i].Hospital.ID < candidates[j].Hospital.ID
	})

	return candidates
}

// HaversineKM computes the great-circle distance between two points in
// kilometers
func HaversineKM(a, b types.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

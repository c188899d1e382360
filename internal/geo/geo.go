// Package geo provides great-circle distance and search-window math shared by
// the store backends and the map sink.
package geo

import "math"

const (
	earthRadiusMeters  = 6371000
	metersPerDegreeLat = 111320.0
)

// Distance returns the great-circle distance in meters between two WGS84
// points, using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := lat1*math.Pi/180, lat2*math.Pi/180
	dPhi, dLambda := (lat2-lat1)*math.Pi/180, (lon2-lon1)*math.Pi/180
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Window returns a degree-space bounding box guaranteed to contain every
// point within meters of (lat, lon), clamped to WGS84 range. Backends
// without a native spherical index prefilter on this window and refine with
// Distance.
func Window(lat, lon, meters float64) (west, south, east, north float64) {
	dLat := meters / metersPerDegreeLat

	// Longitude degrees shrink with latitude. Near the poles the window
	// degenerates, so fall back to the full longitude range.
	cosLat := math.Cos(lat * math.Pi / 180)
	var dLon float64
	if cosLat < 1e-6 {
		dLon = 360
	} else {
		dLon = meters / (metersPerDegreeLat * cosLat)
	}

	west = math.Max(lon-dLon, -180)
	east = math.Min(lon+dLon, 180)
	south = math.Max(lat-dLat, -90)
	north = math.Min(lat+dLat, 90)
	return west, south, east, north
}

// MeanCenter returns the arithmetic mean of the given latitudes and
// longitudes. ok is false when the slices are empty or of unequal length.
func MeanCenter(lats, lons []float64) (lat, lon float64, ok bool) {
	if len(lats) == 0 || len(lats) != len(lons) {
		return 0, 0, false
	}
	var sumLat, sumLon float64
	for i := range lats {
		sumLat += lats[i]
		sumLon += lons[i]
	}
	n := float64(len(lats))
	return sumLat / n, sumLon / n, true
}

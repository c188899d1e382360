package model

import (
	"math"

	"github.com/twpayne/go-geom"
)

// SystemName identifies the registry a location record originated from.
type SystemName string

const (
	SystemEMSL          SystemName = "EMSL"
	SystemESSDive       SystemName = "ESSDIVE"
	SystemNMDC          SystemName = "NMDC"
	SystemJGIBiosamples SystemName = "JGI-Biosamples"
	SystemJGIOrganism   SystemName = "JGI-Organism"
)

// SystemNames returns every registry tag in stable order. Statistics and
// reports iterate this rather than discovering tags from the data, so an
// empty store still reports all five.
func SystemNames() []SystemName {
	return []SystemName{
		SystemEMSL,
		SystemESSDive,
		SystemNMDC,
		SystemJGIBiosamples,
		SystemJGIOrganism,
	}
}

// Record is the canonical sample-location document every source maps to.
// Coordinates are WGS84 decimal degrees, longitude first when serialized as
// a geometry. Records are write-once: inserted during ingestion and never
// updated in place.
type Record struct {
	DatasetID  string         `json:"dataset_id"`
	SystemName SystemName     `json:"system_name"`
	Longitude  float64        `json:"longitude"`
	Latitude   float64        `json:"latitude"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Point returns the record's coordinates as an SRID 4326 point geometry.
func (r *Record) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{r.Longitude, r.Latitude}).SetSRID(4326)
}

// Result is a stored record plus its store-assigned identifier, as returned
// by query operations.
type Result struct {
	ID string `json:"id"`
	Record
}

// ValidCoordinates reports whether lon/lat are finite numbers within WGS84
// range. (0, 0) is a valid coordinate pair.
func ValidCoordinates(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

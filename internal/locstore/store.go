// Package locstore persists canonical sample locations and answers the
// spatial questions the query commands ask. Two implementations exist: a
// PostGIS-backed store for shared deployments and a SQLite store for
// single-machine use.
package locstore

import (
	"context"

	"github.com/samplegeo/atlas-cli/internal/model"
)

// Box is a geographic bounding box in WGS84 decimal degrees.
type Box struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Bounds is the spatial extent of the stored locations.
type Bounds struct {
	South float64 `json:"south"`
	North float64 `json:"north"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// Store persists location records and answers spatial queries over them.
type Store interface {
	// EnsureIndexes creates the table and indexes if they do not exist.
	// It is idempotent and safe to call before every run.
	EnsureIndexes(ctx context.Context) error

	// BulkInsert writes records as one batch. Either the whole batch
	// lands or none of it does; the returned count is the number written.
	BulkInsert(ctx context.Context, records []model.Record) (int64, error)

	// ClearAll removes every stored location and reports how many were
	// removed.
	ClearAll(ctx context.Context) (int64, error)

	// FindByDataset returns every location with the given dataset id.
	FindByDataset(ctx context.Context, datasetID string) ([]model.Result, error)

	// FindInBox returns locations inside the box, capped at limit.
	FindInBox(ctx context.Context, box Box, limit int) ([]model.Result, error)

	// FindNear returns locations within meters of the point, nearest
	// first, capped at limit.
	FindNear(ctx context.Context, lat, lng, meters float64, limit int) ([]model.Result, error)

	// Bounds reports the extent of all stored locations, or nil when the
	// store is empty.
	Bounds(ctx context.Context) (*Bounds, error)

	// CountAll returns the number of stored locations.
	CountAll(ctx context.Context) (int64, error)

	// CountBySystem returns per-registry record counts. Registries with
	// no records are absent from the map.
	CountBySystem(ctx context.Context) (map[model.SystemName]int64, error)

	// List returns up to limit locations in stable id order.
	List(ctx context.Context, limit int) ([]model.Result, error)

	Close() error
}

// Package query validates and executes read-side operations against the
// location store.
package query

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/samplegeo/atlas-cli/internal/locstore"
	"github.com/samplegeo/atlas-cli/internal/model"
)

// Action names a supported query operation.
type Action string

const (
	ActionStats   Action = "stats"
	ActionDataset Action = "dataset"
	ActionBox     Action = "box"
	ActionNearby  Action = "nearby"
	ActionMap     Action = "map"
)

// Request carries the parameters of one query run. Geographic parameters
// are pointers so a missing value is distinguishable from zero, which is a
// legitimate coordinate.
type Request struct {
	Action    Action
	DatasetID string
	West      *float64
	South     *float64
	East      *float64
	North     *float64
	Lat       *float64
	Lng       *float64
	Distance  float64
	Limit     int
}

// Validate reports the first problem with the request. Required geographic
// parameters are never defaulted; a request missing them fails here rather
// than silently querying the wrong region.
func (r *Request) Validate() error {
	switch r.Action {
	case ActionStats:
		return nil

	case ActionDataset:
		if r.DatasetID == "" {
			return eris.New("query: dataset action requires a dataset id")
		}
		return nil

	case ActionBox:
		if r.West == nil || r.South == nil || r.East == nil || r.North == nil {
			return eris.New("query: box action requires west, south, east and north")
		}
		if !model.ValidCoordinates(*r.West, *r.South) || !model.ValidCoordinates(*r.East, *r.North) {
			return eris.New("query: box corners out of range")
		}
		if *r.West >= *r.East {
			return eris.New("query: west must be less than east")
		}
		if *r.South >= *r.North {
			return eris.New("query: south must be less than north")
		}
		return r.validateLimit()

	case ActionNearby:
		if r.Lat == nil || r.Lng == nil {
			return eris.New("query: nearby action requires lat and lng")
		}
		if !model.ValidCoordinates(*r.Lng, *r.Lat) {
			return eris.New("query: center point out of range")
		}
		if r.Distance <= 0 {
			return eris.New("query: distance must be positive")
		}
		return r.validateLimit()

	case ActionMap:
		return r.validateLimit()

	default:
		return eris.Errorf("query: unknown action %q", r.Action)
	}
}

func (r *Request) validateLimit() error {
	if r.Limit <= 0 {
		return eris.New("query: limit must be positive")
	}
	return nil
}

// Stats summarizes the store contents. SystemCounts always carries every
// known registry, zero-filled, so reports stay shaped the same on an empty
// store. Bounds is null when nothing is stored.
type Stats struct {
	Total        int64                      `json:"total"`
	SystemCounts map[model.SystemName]int64 `json:"system_counts"`
	Bounds       *locstore.Bounds           `json:"bounds"`
}

// Outcome is what a query run produced: statistics for the stats action,
// result records for everything else.
type Outcome struct {
	Stats   *Stats
	Results []model.Result
}

// Service runs validated query requests against a store.
type Service struct {
	store   locstore.Store
	timeout time.Duration
}

// NewService wraps a store. timeout bounds the whole request; zero means
// no deadline beyond the caller's context.
func NewService(store locstore.Store, timeout time.Duration) *Service {
	return &Service{store: store, timeout: timeout}
}

// Run validates and executes one request.
func (s *Service) Run(ctx context.Context, req *Request) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	switch req.Action {
	case ActionStats:
		stats, err := s.stats(ctx)
		if err != nil {
			return nil, err
		}
		return &Outcome{Stats: stats}, nil

	case ActionDataset:
		results, err := s.store.FindByDataset(ctx, req.DatasetID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Results: results}, nil

	case ActionBox:
		box := locstore.Box{West: *req.West, South: *req.South, East: *req.East, North: *req.North}
		results, err := s.store.FindInBox(ctx, box, req.Limit)
		if err != nil {
			return nil, err
		}
		return &Outcome{Results: results}, nil

	case ActionNearby:
		results, err := s.store.FindNear(ctx, *req.Lat, *req.Lng, req.Distance, req.Limit)
		if err != nil {
			return nil, err
		}
		return &Outcome{Results: results}, nil

	case ActionMap:
		results, err := s.store.List(ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		return &Outcome{Results: results}, nil

	default:
		return nil, eris.Errorf("query: unknown action %q", req.Action)
	}
}

func (s *Service) stats(ctx context.Context) (*Stats, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountBySystem(ctx)
	if err != nil {
		return nil, err
	}
	systemCounts := make(map[model.SystemName]int64, len(model.SystemNames()))
	for _, name := range model.SystemNames() {
		systemCounts[name] = counts[name]
	}
	bounds, err := s.store.Bounds(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Total: total, SystemCounts: systemCounts, Bounds: bounds}, nil
}

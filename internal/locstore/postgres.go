package locstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/samplegeo/atlas-cli/internal/db"
	"github.com/samplegeo/atlas-cli/internal/model"
	"github.com/samplegeo/atlas-cli/internal/resilience"
)

// PostgresStore implements Store using a Postgres connection pool with PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool and verifies
// connectivity. The initial ping retries transient failures so a run can
// start while the database is still coming up.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: create pool")
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("postgres", "ping")
	err = resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "locstore: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresStore wraps an existing pool. The caller keeps ownership of the
// pool's lifecycle.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const locationsDDL = `
CREATE TABLE IF NOT EXISTS locations (
	id          TEXT PRIMARY KEY,
	dataset_id  TEXT,
	system_name TEXT NOT NULL,
	geom        geometry(Point, 4326) NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	latitude    DOUBLE PRECISION NOT NULL,
	metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_locations_geom ON locations USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_locations_dataset_id ON locations(dataset_id);
CREATE INDEX IF NOT EXISTS idx_locations_system_name ON locations(system_name);
`

// EnsureIndexes implements Store.
func (s *PostgresStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, locationsDDL)
	return eris.Wrap(err, "locstore: ensure indexes")
}

var copyColumns = []string{"id", "dataset_id", "system_name", "geom", "longitude", "latitude", "metadata"}

// BulkInsert implements Store. The batch goes through COPY, so it lands
// whole or not at all.
func (s *PostgresStore) BulkInsert(ctx context.Context, records []model.Record) (int64, error) {
	rows := make([][]any, len(records))
	for i := range records {
		r := &records[i]
		geomData, err := ewkb.Marshal(r.Point(), ewkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "locstore: encode point for %q", r.DatasetID)
		}
		metaJSON, err := marshalMetadata(r.Metadata)
		if err != nil {
			return 0, eris.Wrapf(err, "locstore: marshal metadata for %q", r.DatasetID)
		}
		var datasetID any
		if r.DatasetID != "" {
			datasetID = r.DatasetID
		}
		rows[i] = []any{
			uuid.New().String(), datasetID, string(r.SystemName),
			geomData, r.Longitude, r.Latitude, metaJSON,
		}
	}
	return db.CopyFrom(ctx, s.pool, "locations", copyColumns, rows)
}

// ClearAll implements Store.
func (s *PostgresStore) ClearAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM locations`)
	if err != nil {
		return 0, eris.Wrap(err, "locstore: clear all")
	}
	return tag.RowsAffected(), nil
}

// FindByDataset implements Store.
func (s *PostgresStore) FindByDataset(ctx context.Context, datasetID string) ([]model.Result, error) {
	sql := `
		SELECT id, dataset_id, system_name, longitude, latitude, metadata
		FROM locations WHERE dataset_id = $1 ORDER BY id
	`
	rows, err := s.pool.Query(ctx, sql, datasetID)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: find by dataset")
	}
	return scanResults(rows, "find by dataset")
}

// FindInBox implements Store. The && probe uses the spatial index; the
// BETWEEN refine keeps edge points exact since index boxes are stored at
// float4 precision.
func (s *PostgresStore) FindInBox(ctx context.Context, box Box, limit int) ([]model.Result, error) {
	sql := `
		SELECT id, dataset_id, system_name, longitude, latitude, metadata
		FROM locations
		WHERE geom && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		  AND longitude BETWEEN $1 AND $3
		  AND latitude BETWEEN $2 AND $4
		ORDER BY id LIMIT $5
	`
	rows, err := s.pool.Query(ctx, sql, box.West, box.South, box.East, box.North, limit)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: find in box")
	}
	return scanResults(rows, "find in box")
}

// FindNear implements Store. Geography casts keep both the distance test
// and the ordering in meters rather than degrees.
func (s *PostgresStore) FindNear(ctx context.Context, lat, lng, meters float64, limit int) ([]model.Result, error) {
	sql := `
		SELECT id, dataset_id, system_name, longitude, latitude, metadata
		FROM locations
		WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY geom::geography <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $4
	`
	rows, err := s.pool.Query(ctx, sql, lng, lat, meters, limit)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: find near")
	}
	return scanResults(rows, "find near")
}

// Bounds implements Store.
func (s *PostgresStore) Bounds(ctx context.Context) (*Bounds, error) {
	sql := `
		SELECT COUNT(*), MIN(latitude), MAX(latitude), MIN(longitude), MAX(longitude)
		FROM locations
	`
	var n int64
	var south, north, west, east *float64
	err := s.pool.QueryRow(ctx, sql).Scan(&n, &south, &north, &west, &east)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: bounds")
	}
	if n == 0 || south == nil || north == nil || west == nil || east == nil {
		return nil, nil
	}
	return &Bounds{South: *south, North: *north, West: *west, East: *east}, nil
}

// CountAll implements Store.
func (s *PostgresStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "locstore: count all")
	}
	return n, nil
}

// CountBySystem implements Store.
func (s *PostgresStore) CountBySystem(ctx context.Context) (map[model.SystemName]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT system_name, COUNT(*) FROM locations GROUP BY system_name`)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: count by system")
	}
	defer rows.Close()

	counts := make(map[model.SystemName]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, eris.Wrap(err, "locstore: scan system count")
		}
		counts[model.SystemName(name)] = n
	}
	return counts, eris.Wrap(rows.Err(), "locstore: iterate system counts")
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.Result, error) {
	sql := `
		SELECT id, dataset_id, system_name, longitude, latitude, metadata
		FROM locations ORDER BY id LIMIT $1
	`
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: list")
	}
	return scanResults(rows, "list")
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func scanResults(rows pgx.Rows, op string) ([]model.Result, error) {
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		var datasetID *string
		var metaJSON []byte
		if err := rows.Scan(&res.ID, &datasetID, &res.SystemName, &res.Longitude, &res.Latitude, &metaJSON); err != nil {
			return nil, eris.Wrapf(err, "locstore: scan row (%s)", op)
		}
		if datasetID != nil {
			res.DatasetID = *datasetID
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &res.Metadata); err != nil {
				return nil, eris.Wrapf(err, "locstore: unmarshal metadata (%s)", op)
			}
		}
		results = append(results, res)
	}
	return results, eris.Wrapf(rows.Err(), "locstore: iterate rows (%s)", op)
}

func marshalMetadata(md map[string]any) ([]byte, error) {
	if len(md) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(md)
}

package locstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/samplegeo/atlas-cli/internal/geo"
	"github.com/samplegeo/atlas-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Spatial queries
// run against plain longitude/latitude columns: boxes become BETWEEN
// filters and proximity is a window prefilter refined by great-circle
// distance in Go.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	dbh, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := dbh.Exec(pragma); err != nil {
			dbh.Close()
			return nil, eris.Wrapf(err, "locstore: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: dbh}, nil
}

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS locations (
	id          TEXT PRIMARY KEY,
	dataset_id  TEXT,
	system_name TEXT NOT NULL,
	longitude   REAL NOT NULL,
	latitude    REAL NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_locations_dataset_id ON locations(dataset_id);
CREATE INDEX IF NOT EXISTS idx_locations_system_name ON locations(system_name);
CREATE INDEX IF NOT EXISTS idx_locations_lon_lat ON locations(longitude, latitude);
`

// EnsureIndexes implements Store.
func (s *SQLiteStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteDDL)
	return eris.Wrap(err, "locstore: ensure indexes")
}

// BulkInsert implements Store. The batch runs in one transaction and rolls
// back whole on any failure.
func (s *SQLiteStore) BulkInsert(ctx context.Context, records []model.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "locstore: begin bulk insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO locations (id, dataset_id, system_name, longitude, latitude, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "locstore: prepare bulk insert")
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		metaJSON, err := marshalMetadata(r.Metadata)
		if err != nil {
			return 0, eris.Wrapf(err, "locstore: marshal metadata for %q", r.DatasetID)
		}
		var datasetID any
		if r.DatasetID != "" {
			datasetID = r.DatasetID
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), datasetID, string(r.SystemName),
			r.Longitude, r.Latitude, string(metaJSON),
		); err != nil {
			return 0, eris.Wrapf(err, "locstore: insert record %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "locstore: commit bulk insert")
	}
	return int64(len(records)), nil
}

// ClearAll implements Store.
func (s *SQLiteStore) ClearAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locations`)
	if err != nil {
		return 0, eris.Wrap(err, "locstore: clear all")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "locstore: clear all rows affected")
	}
	return n, nil
}

// FindByDataset implements Store.
func (s *SQLiteStore) FindByDataset(ctx context.Context, datasetID string) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_id, system_name, longitude, latitude, metadata
		 FROM locations WHERE dataset_id = ? ORDER BY id`,
		datasetID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: find by dataset")
	}
	return scanSQLResults(rows, "find by dataset")
}

// FindInBox implements Store.
func (s *SQLiteStore) FindInBox(ctx context.Context, box Box, limit int) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_id, system_name, longitude, latitude, metadata
		 FROM locations
		 WHERE longitude BETWEEN ? AND ? AND latitude BETWEEN ? AND ?
		 ORDER BY id LIMIT ?`,
		box.West, box.East, box.South, box.North, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: find in box")
	}
	return scanSQLResults(rows, "find in box")
}

// FindNear implements Store. A degree window around the point prefilters
// candidates in SQL; the exact distance test and nearest-first ordering
// happen in Go.
func (s *SQLiteStore) FindNear(ctx context.Context, lat, lng, meters float64, limit int) ([]model.Result, error) {
	west, south, east, north := geo.Window(lat, lng, meters)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_id, system_name, longitude, latitude, metadata
		 FROM locations
		 WHERE longitude BETWEEN ? AND ? AND latitude BETWEEN ? AND ?`,
		west, east, south, north,
	)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: find near")
	}
	candidates, err := scanSQLResults(rows, "find near")
	if err != nil {
		return nil, err
	}

	type scored struct {
		res  model.Result
		dist float64
	}
	within := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		d := geo.Distance(lat, lng, c.Latitude, c.Longitude)
		if d <= meters {
			within = append(within, scored{res: c, dist: d})
		}
	}
	sort.Slice(within, func(i, j int) bool { return within[i].dist < within[j].dist })

	if limit > 0 && len(within) > limit {
		within = within[:limit]
	}
	results := make([]model.Result, len(within))
	for i, w := range within {
		results[i] = w.res
	}
	return results, nil
}

// Bounds implements Store.
func (s *SQLiteStore) Bounds(ctx context.Context) (*Bounds, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(latitude), MAX(latitude), MIN(longitude), MAX(longitude) FROM locations`,
	)
	var n int64
	var south, north, west, east *float64
	if err := row.Scan(&n, &south, &north, &west, &east); err != nil {
		return nil, eris.Wrap(err, "locstore: bounds")
	}
	if n == 0 || south == nil || north == nil || west == nil || east == nil {
		return nil, nil
	}
	return &Bounds{South: *south, North: *north, West: *west, East: *east}, nil
}

// CountAll implements Store.
func (s *SQLiteStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "locstore: count all")
	}
	return n, nil
}

// CountBySystem implements Store.
func (s *SQLiteStore) CountBySystem(ctx context.Context) (map[model.SystemName]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT system_name, COUNT(*) FROM locations GROUP BY system_name`)
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
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_id, system_name, longitude, latitude, metadata
		 FROM locations ORDER BY id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "locstore: list")
	}
	return scanSQLResults(rows, "list")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLResults(rows *sql.Rows, op string) ([]model.Result, error) {
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		var datasetID sql.NullString
		var metaJSON string
		if err := rows.Scan(&res.ID, &datasetID, &res.SystemName, &res.Longitude, &res.Latitude, &metaJSON); err != nil {
			return nil, eris.Wrapf(err, "locstore: scan row (%s)", op)
		}
		if datasetID.Valid {
			res.DatasetID = datasetID.String
		}
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &res.Metadata); err != nil {
				return nil, eris.Wrapf(err, "locstore: unmarshal metadata (%s)", op)
			}
		}
		results = append(results, res)
	}
	return results, eris.Wrapf(rows.Err(), "locstore: iterate rows (%s)", op)
}

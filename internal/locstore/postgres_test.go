package locstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samplegeo/atlas-cli/internal/model"
)

var resultColumns = []string{"id", "dataset_id", "system_name", "longitude", "latitude", "metadata"}

func strPtr(s string) *string     { return &s }
func floatPtr(v float64) *float64 { return &v }

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock)
}

func TestPostgres_EnsureIndexes(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS locations").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	assert.NoError(t, store.EnsureIndexes(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_BulkInsert(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"locations"}, copyColumns).WillReturnResult(2)

	records := []model.Record{
		{DatasetID: "60145", SystemName: model.SystemEMSL, Longitude: -119.2779, Latitude: 46.34758,
			Metadata: map[string]any{"source": "project_locations"}},
		{SystemName: model.SystemNMDC, Longitude: -97.74, Latitude: 30.27},
	}
	n, err := store.BulkInsert(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_BulkInsert_Empty(t *testing.T) {
	_, store := newMockStore(t)

	n, err := store.BulkInsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestPostgres_BulkInsert_Error(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"locations"}, copyColumns).
		WillReturnError(fmt.Errorf("deadlock detected"))

	records := []model.Record{
		{DatasetID: "x", SystemName: model.SystemEMSL, Longitude: 1, Latitude: 2},
	}
	n, err := store.BulkInsert(context.Background(), records)
	require.Error(t, err)
	assert.Equal(t, int64(0), n)
	assert.Contains(t, err.Error(), "COPY INTO locations")
}

func TestPostgres_ClearAll(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("DELETE FROM locations").
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	n, err := store.ClearAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByDataset(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM locations WHERE dataset_id").
		WithArgs("60145").
		WillReturnRows(pgxmock.NewRows(resultColumns).
			AddRow("id-1", strPtr("60145"), "EMSL", -119.2779, 46.34758,
				[]byte(`{"source":"project_locations"}`)))

	results, err := store.FindByDataset(context.Background(), "60145")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "id-1", results[0].ID)
	assert.Equal(t, "60145", results[0].DatasetID)
	assert.Equal(t, model.SystemEMSL, results[0].SystemName)
	assert.Equal(t, -119.2779, results[0].Longitude)
	assert.Equal(t, 46.34758, results[0].Latitude)
	assert.Equal(t, "project_locations", results[0].Metadata["source"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByDataset_QueryError(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM locations WHERE dataset_id").
		WithArgs("60145").
		WillReturnError(fmt.Errorf("connection refused"))

	_, err := store.FindByDataset(context.Background(), "60145")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find by dataset")
}

func TestPostgres_FindInBox(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("geom && ST_MakeEnvelope").
		WithArgs(-125.0, 44.0, -115.0, 48.0, 1000).
		WillReturnRows(pgxmock.NewRows(resultColumns).
			AddRow("id-1", strPtr("60145"), "EMSL", -119.2779, 46.34758, []byte(`{}`)).
			AddRow("id-2", nil, "NMDC", -120.5, 47.6, []byte(`{}`)))

	results, err := store.FindInBox(context.Background(), Box{West: -125, South: 44, East: -115, North: 48}, 1000)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "60145", results[0].DatasetID)
	// NULL dataset ids come back as empty strings.
	assert.Equal(t, "", results[1].DatasetID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindNear(t *testing.T) {
	mock, store := newMockStore(t)

	// ST_MakePoint takes longitude first.
	mock.ExpectQuery("ST_DWithin").
		WithArgs(-119.2779, 46.34758, 10000.0, 5).
		WillReturnRows(pgxmock.NewRows(resultColumns).
			AddRow("id-1", strPtr("60145"), "EMSL", -119.2779, 46.34758, []byte(`{}`)))

	results, err := store.FindNear(context.Background(), 46.34758, -119.2779, 10000, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "id-1", results[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Bounds(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT(.+), MIN").
		WillReturnRows(pgxmock.NewRows([]string{"count", "min_lat", "max_lat", "min_lng", "max_lng"}).
			AddRow(int64(3), floatPtr(30.27), floatPtr(46.34758), floatPtr(-122.67), floatPtr(-97.74)))

	b, err := store.Bounds(context.Background())
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 30.27, b.South)
	assert.Equal(t, 46.34758, b.North)
	assert.Equal(t, -122.67, b.West)
	assert.Equal(t, -97.74, b.East)
}

func TestPostgres_Bounds_Empty(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT(.+), MIN").
		WillReturnRows(pgxmock.NewRows([]string{"count", "min_lat", "max_lat", "min_lng", "max_lng"}).
			AddRow(int64(0), nil, nil, nil, nil))

	b, err := store.Bounds(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestPostgres_CountAll(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := store.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestPostgres_CountBySystem(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("GROUP BY system_name").
		WillReturnRows(pgxmock.NewRows([]string{"system_name", "count"}).
			AddRow("EMSL", int64(3)).
			AddRow("NMDC", int64(2)))

	counts, err := store.CountBySystem(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[model.SystemEMSL])
	assert.Equal(t, int64(2), counts[model.SystemNMDC])
	assert.Len(t, counts, 2)
}

func TestPostgres_List(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM locations ORDER BY id").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(resultColumns).
			AddRow("id-1", strPtr("60145"), "EMSL", -119.2779, 46.34758, []byte(`{}`)))

	results, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

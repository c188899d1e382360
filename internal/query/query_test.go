package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samplegeo/atlas-cli/internal/locstore"
	"github.com/samplegeo/atlas-cli/internal/model"
)

type nearCall struct {
	lat, lng, meters float64
	limit            int
}

// fakeStore records the calls the service makes and returns canned data.
type fakeStore struct {
	total   int64
	counts  map[model.SystemName]int64
	bounds  *locstore.Bounds
	results []model.Result
	err     error

	gotDataset string
	gotBox     *locstore.Box
	gotNear    *nearCall
	gotLimit   int
	calls      int
}

func (f *fakeStore) EnsureIndexes(ctx context.Context) error { return f.err }

func (f *fakeStore) BulkInsert(ctx context.Context, records []model.Record) (int64, error) {
	return int64(len(records)), f.err
}

func (f *fakeStore) ClearAll(ctx context.Context) (int64, error) { return 0, f.err }

func (f *fakeStore) FindByDataset(ctx context.Context, datasetID string) ([]model.Result, error) {
	f.calls++
	f.gotDataset = datasetID
	return f.results, f.err
}

func (f *fakeStore) FindInBox(ctx context.Context, box locstore.Box, limit int) ([]model.Result, error) {
	f.calls++
	f.gotBox = &box
	f.gotLimit = limit
	return f.results, f.err
}

func (f *fakeStore) FindNear(ctx context.Context, lat, lng, meters float64, limit int) ([]model.Result, error) {
	f.calls++
	f.gotNear = &nearCall{lat: lat, lng: lng, meters: meters, limit: limit}
	return f.results, f.err
}

func (f *fakeStore) Bounds(ctx context.Context) (*locstore.Bounds, error) {
	f.calls++
	return f.bounds, f.err
}

func (f *fakeStore) CountAll(ctx context.Context) (int64, error) {
	f.calls++
	return f.total, f.err
}

func (f *fakeStore) CountBySystem(ctx context.Context) (map[model.SystemName]int64, error) {
	f.calls++
	return f.counts, f.err
}

func (f *fakeStore) List(ctx context.Context, limit int) ([]model.Result, error) {
	f.calls++
	f.gotLimit = limit
	return f.results, f.err
}

func (f *fakeStore) Close() error { return nil }

func fp(v float64) *float64 { return &v }

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"stats needs nothing", Request{Action: ActionStats}, false},
		{"dataset ok", Request{Action: ActionDataset, DatasetID: "60145"}, false},
		{"dataset missing id", Request{Action: ActionDataset}, true},
		{"box ok", Request{Action: ActionBox, West: fp(-125), South: fp(44), East: fp(-115), North: fp(48), Limit: 10}, false},
		{"box missing corner", Request{Action: ActionBox, West: fp(-125), South: fp(44), East: fp(-115), Limit: 10}, true},
		{"box west not less than east", Request{Action: ActionBox, West: fp(-115), South: fp(44), East: fp(-125), North: fp(48), Limit: 10}, true},
		{"box south not less than north", Request{Action: ActionBox, West: fp(-125), South: fp(48), East: fp(-115), North: fp(44), Limit: 10}, true},
		{"box corner out of range", Request{Action: ActionBox, West: fp(-200), South: fp(44), East: fp(-115), North: fp(48), Limit: 10}, true},
		{"box zero limit", Request{Action: ActionBox, West: fp(-125), South: fp(44), East: fp(-115), North: fp(48)}, true},
		{"nearby ok", Request{Action: ActionNearby, Lat: fp(46.3), Lng: fp(-119.3), Distance: 10000, Limit: 10}, false},
		{"nearby origin is valid", Request{Action: ActionNearby, Lat: fp(0), Lng: fp(0), Distance: 10000, Limit: 10}, false},
		{"nearby missing lng", Request{Action: ActionNearby, Lat: fp(46.3), Distance: 10000, Limit: 10}, true},
		{"nearby out of range", Request{Action: ActionNearby, Lat: fp(95), Lng: fp(-119.3), Distance: 10000, Limit: 10}, true},
		{"nearby zero distance", Request{Action: ActionNearby, Lat: fp(46.3), Lng: fp(-119.3), Limit: 10}, true},
		{"nearby negative distance", Request{Action: ActionNearby, Lat: fp(46.3), Lng: fp(-119.3), Distance: -5, Limit: 10}, true},
		{"map ok", Request{Action: ActionMap, Limit: 1000}, false},
		{"map zero limit", Request{Action: ActionMap}, true},
		{"unknown action", Request{Action: Action("drop")}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_Stats_ZeroFillsSystems(t *testing.T) {
	store := &fakeStore{
		total:  3,
		counts: map[model.SystemName]int64{model.SystemEMSL: 2, model.SystemNMDC: 1},
		bounds: &locstore.Bounds{South: 30.27, North: 46.34758, West: -122.67, East: -97.74},
	}
	svc := NewService(store, 0)

	out, err := svc.Run(context.Background(), &Request{Action: ActionStats})
	require.NoError(t, err)
	require.NotNil(t, out.Stats)

	assert.Equal(t, int64(3), out.Stats.Total)
	assert.Len(t, out.Stats.SystemCounts, len(model.SystemNames()))
	assert.Equal(t, int64(2), out.Stats.SystemCounts[model.SystemEMSL])
	assert.Equal(t, int64(1), out.Stats.SystemCounts[model.SystemNMDC])
	assert.Equal(t, int64(0), out.Stats.SystemCounts[model.SystemESSDive])
	assert.Equal(t, int64(0), out.Stats.SystemCounts[model.SystemJGIBiosamples])
	assert.Equal(t, int64(0), out.Stats.SystemCounts[model.SystemJGIOrganism])
	require.NotNil(t, out.Stats.Bounds)
	assert.Equal(t, 46.34758, out.Stats.Bounds.North)
}

func TestRun_Stats_EmptyStore(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, 0)

	out, err := svc.Run(context.Background(), &Request{Action: ActionStats})
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Stats.Total)
	assert.Nil(t, out.Stats.Bounds)
	assert.Len(t, out.Stats.SystemCounts, len(model.SystemNames()))
}

func TestRun_Dataset(t *testing.T) {
	store := &fakeStore{results: []model.Result{{ID: "id-1"}}}
	svc := NewService(store, 0)

	out, err := svc.Run(context.Background(), &Request{Action: ActionDataset, DatasetID: "60145"})
	require.NoError(t, err)
	assert.Equal(t, "60145", store.gotDataset)
	assert.Len(t, out.Results, 1)
}

func TestRun_Box(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, 0)

	req := &Request{Action: ActionBox, West: fp(-125), South: fp(44), East: fp(-115), North: fp(48), Limit: 50}
	_, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, store.gotBox)
	assert.Equal(t, locstore.Box{West: -125, South: 44, East: -115, North: 48}, *store.gotBox)
	assert.Equal(t, 50, store.gotLimit)
}

func TestRun_Nearby(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, 0)

	req := &Request{Action: ActionNearby, Lat: fp(46.34758), Lng: fp(-119.2779), Distance: 10000, Limit: 1000}
	_, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, store.gotNear)
	assert.Equal(t, 46.34758, store.gotNear.lat)
	assert.Equal(t, -119.2779, store.gotNear.lng)
	assert.Equal(t, 10000.0, store.gotNear.meters)
	assert.Equal(t, 1000, store.gotNear.limit)
}

func TestRun_Map(t *testing.T) {
	store := &fakeStore{results: []model.Result{{ID: "a"}, {ID: "b"}}}
	svc := NewService(store, 0)

	out, err := svc.Run(context.Background(), &Request{Action: ActionMap, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1000, store.gotLimit)
	assert.Len(t, out.Results, 2)
}

func TestRun_InvalidRequestDoesNotTouchStore(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, 0)

	_, err := svc.Run(context.Background(), &Request{Action: ActionDataset})
	require.Error(t, err)
	assert.Equal(t, 0, store.calls)
}

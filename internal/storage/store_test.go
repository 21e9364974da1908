package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/internal/storage"
	"github.com/rohmanhakim/nextmuni/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	config := &storage.Config{}
	config.ApplyDefaults()

	assert.Equal(t, filepath.Join("/tmp/xdg", "nextmuni", "cache.db"), config.Path)
	assert.NoError(t, config.Validate())
}

func TestGORMStore_EmptyStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	has, err := store.HasRoutes(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	routes, err := store.ListRoutes(ctx)
	require.NoError(t, err)
	assert.Empty(t, routes)

	_, ok, err := store.GetRoute(ctx, "N")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGORMStore_SetRoutes_OrdersByUpstreamIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetRoutes(ctx, map[string]storage.Route{
		"N": {Tag: "N", Title: "N-Judah", UpstreamIndex: 2},
		"F": {Tag: "F", Title: "F-Market & Wharves", UpstreamIndex: 0},
		"J": {Tag: "J", Title: "J-Church", UpstreamIndex: 1},
	}))

	has, err := store.HasRoutes(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	routes, err := store.ListRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 3)
	assert.Equal(t, []string{"F", "J", "N"}, []string{routes[0].Tag, routes[1].Tag, routes[2].Tag})
	for _, r := range routes {
		assert.NotZero(t, r.ID)
		assert.Zero(t, r.DirectionsUpdatedMs)
	}
}

func TestGORMStore_SetRoutes_KeepsIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seeded := seedRouteN(t, store, 1000)

	require.NoError(t, store.SetRoutes(ctx, map[string]storage.Route{
		"N": {Tag: "N", Title: "N-Judah Owl", UpstreamIndex: 5},
	}))

	route, ok, err := store.GetRoute(ctx, "N")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, seeded.ID, route.ID)
	assert.Equal(t, "N-Judah Owl", route.Title)
	assert.Equal(t, int64(1000), route.DirectionsUpdatedMs)
}

func TestGORMStore_ListDirections_UIOnlyOrderedByTag(t *testing.T) {
	store := newTestStore(t)
	route := seedRouteN(t, store, 1000)

	directions, err := store.ListDirections(context.Background(), route.ID)

	require.NoError(t, err)
	require.Len(t, directions, 2)
	assert.Equal(t, "N__IB1", directions[0].Tag)
	assert.Equal(t, "Inbound to Caltrain", directions[0].Title)
	assert.Equal(t, "N__OB1", directions[1].Tag)
}

func TestGORMStore_ListStops_TravelOrder(t *testing.T) {
	store := newTestStore(t)
	route := seedRouteN(t, store, 1000)

	stops, err := store.ListStops(context.Background(), route.ID, "N__IB1")

	require.NoError(t, err)
	assert.Equal(t, []storage.OrderedStop{
		{Tag: "4448", Title: "Carl St & Cole St", Latitude: 37.76574, Longitude: -122.44983, StopOrder: 0},
		{Tag: "5205", Title: "Duboce St & Noe St", Latitude: 37.7692399, Longitude: -122.43347, StopOrder: 1},
	}, stops)

	none, err := store.ListStops(context.Background(), route.ID, "N__NOPE")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGORMStore_RoutesServingStop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRouteN(t, store, 1000)

	j, _, err := store.GetRoute(ctx, "J")
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		return tx.SetDirections(j.ID, []storage.Direction{
			{Tag: "J__IB1", Title: "Inbound to Embarcadero", UseForUI: true, Stops: []storage.DirectionStop{
				{StopOrder: 0, StopTag: "5205"},
			}},
		})
	}))

	tags, err := store.RoutesServingStop(ctx, "5205")
	require.NoError(t, err)
	assert.Equal(t, []string{"J", "N"}, tags)

	tags, err = store.RoutesServingStop(ctx, "4448")
	require.NoError(t, err)
	assert.Equal(t, []string{"N"}, tags)

	tags, err = store.RoutesServingStop(ctx, "0000")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestGORMStore_DirectionTitles(t *testing.T) {
	store := newTestStore(t)
	seedRouteN(t, store, 1000)

	titles, err := store.DirectionTitles(context.Background(), []string{"N__OB1", "N__OBSHORT", "X__UNKNOWN"})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"N__OB1":     "Outbound to Ocean Beach",
		"N__OBSHORT": "Short Turn",
	}, titles)

	empty, err := store.DirectionTitles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGORMStore_SetDirections_ReplacesWholesale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	route := seedRouteN(t, store, 1000)

	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		return tx.SetDirections(route.ID, []storage.Direction{
			{Tag: "N__OB2", Title: "Outbound to Sunset", UseForUI: true, Stops: []storage.DirectionStop{
				{StopOrder: 0, StopTag: "5205"},
			}},
		})
	}))

	directions, err := store.ListDirections(ctx, route.ID)
	require.NoError(t, err)
	require.Len(t, directions, 1)
	assert.Equal(t, "N__OB2", directions[0].Tag)

	stops, err := store.ListStops(ctx, route.ID, "N__OB1")
	require.NoError(t, err)
	assert.Empty(t, stops)

	tags, err := store.RoutesServingStop(ctx, "4448")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestGORMStore_Update_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	route := seedRouteN(t, store, 1000)
	errAbort := errors.New("abort")

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.SetDirections(route.ID, nil); err != nil {
			return err
		}
		if err := tx.SetDirectionsUpdatedMs(route.ID, 2000); err != nil {
			return err
		}
		return errAbort
	})

	assert.ErrorIs(t, err, errAbort)
	ms, err := store.DirectionsUpdatedMs(ctx, route.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ms)
	directions, err := store.ListDirections(ctx, route.ID)
	require.NoError(t, err)
	assert.Len(t, directions, 2)
}

func TestGORMStore_Tx_ReadsOwnWrites(t *testing.T) {
	store := newTestStore(t)
	route := seedRouteN(t, store, 1000)

	var seen int64
	err := store.Update(context.Background(), func(tx storage.Tx) error {
		if err := tx.SetDirectionsUpdatedMs(route.ID, 5000); err != nil {
			return err
		}
		var err error
		seen, err = tx.DirectionsUpdatedMs(route.ID)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, int64(5000), seen)
}

func TestGORMStore_Tx_UnknownRoute(t *testing.T) {
	store := newTestStore(t)

	err := store.Update(context.Background(), func(tx storage.Tx) error {
		return tx.SetDirectionsUpdatedMs(999, 5000)
	})

	var storageErr *storage.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, storage.ErrCauseInvalidInput, storageErr.Cause)
	assert.Equal(t, failure.SeverityFatal, storageErr.Severity())
}

func TestGORMStore_AddStop_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	route := seedRouteN(t, store, 1000)

	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		return tx.AddStop(storage.Stop{Tag: "4448", Title: "Carl & Cole", Latitude: 1, Longitude: 2})
	}))

	stops, err := store.ListStops(ctx, route.ID, "N__IB1")
	require.NoError(t, err)
	require.NotEmpty(t, stops)
	assert.Equal(t, "Carl & Cole", stops[0].Title)
}

func TestNew_RecordsNothingOnSuccess(t *testing.T) {
	store, err := storage.New(&storage.Config{Path: filepath.Join(t.TempDir(), "c.db")}, &metadata.NoopSink{})
	require.NoError(t, err)
	defer store.Close()
	assert.NotNil(t, store.DB())
}

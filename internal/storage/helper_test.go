package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/internal/storage"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a store backed by a file in a per-test directory.
// A file is used instead of ":memory:" so every pooled connection sees
// the same database.
func newTestStore(t *testing.T) *storage.GORMStore {
	t.Helper()
	store, err := storage.New(&storage.Config{
		Path: filepath.Join(t.TempDir(), "nested", "cache.db"),
	}, &metadata.NoopSink{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedRouteN stores route N with two UI directions and one hidden one.
func seedRouteN(t *testing.T, store *storage.GORMStore, updatedMs int64) storage.Route {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SetRoutes(ctx, map[string]storage.Route{
		"J": {Tag: "J", Title: "J-Church", UpstreamIndex: 0},
		"N": {Tag: "N", Title: "N-Judah", UpstreamIndex: 1},
	}))
	route, ok, err := store.GetRoute(ctx, "N")
	require.NoError(t, err)
	require.True(t, ok)

	err = store.Update(ctx, func(tx storage.Tx) error {
		for _, stop := range []storage.Stop{
			{Tag: "3911", Title: "Church St & Duboce Ave", Latitude: 37.76952, Longitude: -122.42928},
			{Tag: "5205", Title: "Duboce St & Noe St", Latitude: 37.7692399, Longitude: -122.43347},
			{Tag: "4448", Title: "Carl St & Cole St", Latitude: 37.76574, Longitude: -122.44983},
		} {
			if err := tx.AddStop(stop); err != nil {
				return err
			}
		}
		if err := tx.SetDirections(route.ID, []storage.Direction{
			{Tag: "N__OB1", Title: "Outbound to Ocean Beach", UseForUI: true, Stops: []storage.DirectionStop{
				{StopOrder: 0, StopTag: "3911"},
				{StopOrder: 1, StopTag: "5205"},
				{StopOrder: 2, StopTag: "4448"},
			}},
			{Tag: "N__IB1", Title: "Inbound to Caltrain", UseForUI: true, Stops: []storage.DirectionStop{
				{StopOrder: 0, StopTag: "4448"},
				{StopOrder: 1, StopTag: "5205"},
			}},
			{Tag: "N__OBSHORT", Title: "Short Turn", UseForUI: false, Stops: []storage.DirectionStop{
				{StopOrder: 0, StopTag: "3911"},
			}},
		}); err != nil {
			return err
		}
		return tx.SetDirectionsUpdatedMs(route.ID, updatedMs)
	})
	require.NoError(t, err)

	route.DirectionsUpdatedMs = updatedMs
	return route
}

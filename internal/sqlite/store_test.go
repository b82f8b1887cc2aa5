package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-optimizer/internal/database"
	"itinerary-optimizer/internal/models"
	tu "itinerary-optimizer/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", DefaultDBFileName))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleItinerary() *models.Itinerary {
	it := tu.Itinerary([]models.Day{
		tu.Day(1, tu.Activities("a", 2, tu.TokyoShinjuku)...),
		tu.Day(2, tu.Activities("b", 3, tu.KyotoGion)...),
	}, tu.Lodging("h-tokyo", "Tokyo", tu.TokyoShinjuku))
	it.ID = ""
	return it
}

func TestStoreHealthCheck(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
	assert.Contains(t, store.GetDBPath(), "nested")
}

func TestStoreReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBFileName)
	store, err := New(path)
	require.NoError(t, err)
	_, err = store.Itineraries().Save(context.Background(), sampleItinerary())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	_, total, err := reopened.Itineraries().List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestItinerarySaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Itineraries()

	saved, err := repo.Save(ctx, sampleItinerary())
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, 5, got.ActivityCount())
	assert.Equal(t, []string{"a-1", "a-2", "b-1", "b-2", "b-3"}, got.AllActivityIDs())
	require.Len(t, got.Lodgings, 1)
	assert.Equal(t, "Tokyo", got.Lodgings[0].City)
	require.NotNil(t, got.Days[1].Activities[0].Coords)
	assert.InDelta(t, tu.KyotoGion.Lat, got.Days[1].Activities[0].Coords.Lat, 1e-9)
}

func TestItinerarySaveUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Itineraries()

	saved, err := repo.Save(ctx, sampleItinerary())
	require.NoError(t, err)
	created := saved.CreatedAt

	saved.Title = "Renamed"
	saved.Days = saved.Days[:1]
	_, err = repo.Save(ctx, saved)
	require.NoError(t, err)

	list, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Title)
	assert.Equal(t, 1, list[0].Days)
	assert.Equal(t, 2, list[0].Activities)

	got, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestItineraryGetMissing(t *testing.T) {
	got, err := newTestStore(t).Itineraries().GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestItineraryDeleteCascadesRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	saved, err := store.Itineraries().Save(ctx, sampleItinerary())
	require.NoError(t, err)
	_, err = store.Runs().Create(ctx, &models.OptimizationRun{ItineraryID: saved.ID, Fingerprint: "f", State: "done"})
	require.NoError(t, err)

	require.NoError(t, store.Itineraries().Delete(ctx, saved.ID))

	runs, err := store.Runs().ListByItinerary(ctx, saved.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	err = store.Itineraries().Delete(ctx, saved.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRunCreateAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	saved, err := store.Itineraries().Save(ctx, sampleItinerary())
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{"success": true})
	require.NoError(t, err)

	run, err := store.Runs().Create(ctx, &models.OptimizationRun{
		ItineraryID:    saved.ID,
		Fingerprint:    "abc123",
		State:          "done",
		Success:        true,
		ResidualErrors: 0,
		WarningCount:   2,
		Result:         payload,
	})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	_, err = store.Runs().Create(ctx, &models.OptimizationRun{ItineraryID: saved.ID, Fingerprint: "def456", State: "aborted"})
	require.NoError(t, err)

	got, err := store.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Success)
	assert.Equal(t, 2, got.WarningCount)
	assert.JSONEq(t, `{"success":true}`, string(got.Result))

	runs, err := store.Runs().ListByItinerary(ctx, saved.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Nil(t, r.Result, "list omits results")
	}

	missing, err := store.Runs().GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRunRequiresItinerary(t *testing.T) {
	_, err := newTestStore(t).Runs().Create(context.Background(), &models.OptimizationRun{ItineraryID: "nope", Fingerprint: "f", State: "done"})
	assert.Error(t, err)
}

func TestGeocodeCache(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).GeocodeCache()

	miss, err := repo.Get(ctx, "kinkaku-ji kyoto")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, repo.Set(ctx, &models.GeocodeCacheEntry{
		Query:       "kinkaku-ji kyoto",
		Coords:      models.Coordinates{Lat: 35.0394, Lng: 135.7292},
		DisplayName: "Kinkaku-ji",
		City:        "Kyoto",
	}))

	hit, err := repo.Get(ctx, "kinkaku-ji kyoto")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, 35.0394, hit.Coords.Lat)
	assert.Equal(t, "Kyoto", hit.City)

	require.NoError(t, repo.Clear(ctx))
	gone, err := repo.Get(ctx, "kinkaku-ji kyoto")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

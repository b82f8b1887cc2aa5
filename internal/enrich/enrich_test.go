package enrich

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-optimizer/internal/models"
	tu "itinerary-optimizer/internal/testutil"
)

const sensojiQuery = "Senso-ji, Asakusa, Tokyo"

func tripWithMissingCoords() *models.Itinerary {
	acts := tu.Activities("a", 2, tu.TokyoShinjuku)
	acts = append(acts, models.Activity{ID: "sensoji", Title: "Senso-ji", Area: "Asakusa", DurationMinutes: 60})
	return tu.Itinerary([]models.Day{tu.Day(1, acts...)}, tu.Lodging("h-tokyo", "Tokyo", tu.TokyoShinjuku))
}

func TestEnrich_FillsMissingCoords(t *testing.T) {
	geo := tu.NewMockGeocoder()
	geo.SetPlace(sensojiQuery, tu.TokyoAsakusa, "Tokyo")

	it := tripWithMissingCoords()
	before := it.Clone()

	out, stats, err := New(geo, nil, nil, 2).Enrich(context.Background(), it)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Candidates)
	assert.Equal(t, 1, stats.Geocoded)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, []string{sensojiQuery}, geo.Calls)

	a := out.Days[0].Activities[2]
	require.NotNil(t, a.Coords)
	assert.InDelta(t, tu.TokyoAsakusa.Lat, a.Coords.Lat, 1e-5)
	assert.Equal(t, "Tokyo", a.City)

	assert.Equal(t, before, it, "input must not be modified")
}

func TestEnrich_KeepsCityTagForUnknownPlaceCity(t *testing.T) {
	geo := tu.NewMockGeocoder()
	geo.SetPlace(sensojiQuery, tu.TokyoAsakusa, "Taito")

	out, _, err := New(geo, nil, nil, 1).Enrich(context.Background(), tripWithMissingCoords())
	require.NoError(t, err)

	a := out.Days[0].Activities[2]
	require.NotNil(t, a.Coords)
	assert.Empty(t, a.City, "non-catalog cities are not copied onto the activity")
}

func TestEnrich_UsesCache(t *testing.T) {
	geo := tu.NewMockGeocoder()
	geo.SetPlace(sensojiQuery, tu.TokyoAsakusa, "Tokyo")
	cache := tu.NewMemoryGeocodeCache()
	e := New(geo, cache, nil, 2)

	_, first, err := e.Enrich(context.Background(), tripWithMissingCoords())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Geocoded)
	assert.Contains(t, cache.Entries, "senso-ji, asakusa, tokyo")

	out, second, err := e.Enrich(context.Background(), tripWithMissingCoords())
	require.NoError(t, err)
	assert.Equal(t, 1, second.CacheHits)
	assert.Equal(t, 0, second.Geocoded)
	assert.Equal(t, 1, geo.CallCount(), "cached query must not reach the geocoder")
	assert.NotNil(t, out.Days[0].Activities[2].Coords)
}

func TestEnrich_FailuresAreCounted(t *testing.T) {
	geo := tu.NewMockGeocoder()

	out, stats, err := New(geo, nil, nil, 2).Enrich(context.Background(), tripWithMissingCoords())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, "sensoji", stats.Failures[0].ActivityID)
	assert.Equal(t, 1, stats.Failures[0].DayNumber)
	assert.Equal(t, sensojiQuery, stats.Failures[0].Query)
	assert.Nil(t, out.Days[0].Activities[2].Coords)
}

func TestEnrich_NothingToDo(t *testing.T) {
	geo := tu.NewMockGeocoder()
	it := tu.Itinerary([]models.Day{tu.Day(1, tu.Activities("a", 3, tu.TokyoShinjuku)...)})

	_, stats, err := New(geo, nil, nil, 2).Enrich(context.Background(), it)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Candidates)
	assert.Equal(t, 0, geo.CallCount())
}

func TestEnrich_Cancelled(t *testing.T) {
	geo := tu.NewMockGeocoder()
	geo.SetPlace(sensojiQuery, tu.TokyoAsakusa, "Tokyo")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(geo, nil, nil, 2).Enrich(ctx, tripWithMissingCoords())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnrich_ManyActivitiesConcurrently(t *testing.T) {
	geo := tu.NewMockGeocoder()
	acts := tu.Activities("a", 1, tu.KyotoGion)
	for i := 1; i <= 12; i++ {
		title := fmt.Sprintf("Temple %d", i)
		acts = append(acts, models.Activity{ID: fmt.Sprintf("t-%d", i), Title: title, City: "Kyoto", DurationMinutes: 45})
		geo.SetPlace(title+", Kyoto", *tu.Near(tu.KyotoGion, 0.1*float64(i)), "Kyoto")
	}
	it := tu.Itinerary([]models.Day{tu.Day(1, acts...)})

	out, stats, err := New(geo, tu.NewMemoryGeocodeCache(), nil, 3).Enrich(context.Background(), it)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Candidates)
	assert.Equal(t, 12, stats.Geocoded)
	assert.Equal(t, 12, geo.CallCount())
	for _, a := range out.Days[0].Activities {
		assert.True(t, a.HasCoords(), "activity %s", a.ID)
	}
}

func TestQuery(t *testing.T) {
	a := &models.Activity{Title: "Fushimi Inari", Area: " Fushimi "}
	assert.Equal(t, "Fushimi Inari, Fushimi, Kyoto", Query(a, "Kyoto"))
	assert.Equal(t, "Fushimi Inari, Fushimi", Query(a, ""))

	b := &models.Activity{Name: "Nishiki Market"}
	assert.Equal(t, "Nishiki Market, Kyoto", Query(b, "Kyoto"))
}

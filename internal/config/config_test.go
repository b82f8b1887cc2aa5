package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-optimizer/internal/optimizer"
	"itinerary-optimizer/internal/sequencing"
)

var envKeys = []string{
	"SERVER_ADDR", "DB_PATH", "REDIS_URL", "CACHE_TTL", "NOMINATIM_URL", "GEOCODER_RPS",
	"GEOCODER_CONCURRENCY", "RATE_LIMIT_PER_MINUTE", "OPT_PRIORITY_RADIUS_KM", "OPT_MIN_ACTIVITIES",
	"OPT_MAX_ACTIVITIES", "OPT_SEQUENCE_MODE",
}

// clearEnv empties every config variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ServerAddr)
	assert.Contains(t, cfg.DBPath, ".itinerary-optimizer")
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.NominatimURL)
	assert.Equal(t, 1.0, cfg.GeocoderRPS)
	assert.Equal(t, 4, cfg.GeocoderConcurrency)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, optimizer.DefaultOptions(), cfg.Optimizer)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("DB_PATH", "/tmp/trips.db")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CACHE_TTL", "15m")
	t.Setenv("GEOCODER_RPS", "0.5")
	t.Setenv("GEOCODER_CONCURRENCY", "2")
	t.Setenv("OPT_PRIORITY_RADIUS_KM", "1.5")
	t.Setenv("OPT_MIN_ACTIVITIES", "3")
	t.Setenv("OPT_MAX_ACTIVITIES", "5")
	t.Setenv("OPT_SEQUENCE_MODE", "geography")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "/tmp/trips.db", cfg.DBPath)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 2, cfg.GeocoderConcurrency)
	assert.Equal(t, 1.5, cfg.Optimizer.PriorityRadiusKm)
	assert.Equal(t, 3, cfg.Optimizer.MinActivities)
	assert.Equal(t, 5, cfg.Optimizer.MaxActivities)
	assert.Equal(t, sequencing.ModeGeography, cfg.Optimizer.SequenceMode)

	geo := cfg.Geocoding()
	assert.Equal(t, 0.5, geo.RequestsPerSecond)
	assert.Equal(t, cfg.NominatimURL, geo.BaseURL)
}

func TestFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CACHE_TTL", "forever"},
		{"GEOCODER_RPS", "fast"},
		{"GEOCODER_CONCURRENCY", "many"},
		{"OPT_MIN_ACTIVITIES", "four"},
		{"OPT_SEQUENCE_MODE", "random"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)

			var invalid *InvalidValueError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.key, invalid.Key)
			assert.Equal(t, tt.value, invalid.Value)
		})
	}
}

func TestFromEnv_MinAboveMax(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPT_MIN_ACTIVITIES", "7")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("SERVER_ADDR")
	t.Cleanup(func() { os.Unsetenv("SERVER_ADDR") })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_ADDR=0.0.0.0:7000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.ServerAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ServerAddr)
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"itinerary-optimizer/internal/database"
	"itinerary-optimizer/internal/geocoding"
	"itinerary-optimizer/internal/optimizer"
	"itinerary-optimizer/internal/sequencing"
)

// Config holds the process configuration read from the environment
type Config struct {
	ServerAddr          string
	DBPath              string
	RedisURL            string
	CacheTTL            time.Duration
	NominatimURL        string
	GeocoderRPS         float64
	GeocoderConcurrency int
	RateLimitPerMinute  int
	Optimizer           optimizer.Options
}

// Load reads an optional .env file (or the given files) and then the
// environment. Variables already set in the environment win over file values.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Printf("[CONFIG] No .env file loaded, using process environment: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	defaultDB, err := database.GetDefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default database path: %w", err)
	}

	geo := geocoding.DefaultConfig()
	opts := optimizer.DefaultOptions()

	cfg := &Config{
		ServerAddr:   getEnv("SERVER_ADDR", "127.0.0.1:8080"),
		DBPath:       getEnv("DB_PATH", defaultDB),
		RedisURL:     os.Getenv("REDIS_URL"),
		NominatimURL: getEnv("NOMINATIM_URL", geo.BaseURL),
		Optimizer:    opts,
	}

	if cfg.CacheTTL, err = getDuration("CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.GeocoderRPS, err = getFloat("GEOCODER_RPS", geo.RequestsPerSecond); err != nil {
		return nil, err
	}
	if cfg.GeocoderConcurrency, err = getInt("GEOCODER_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}
	if cfg.Optimizer.PriorityRadiusKm, err = getFloat("OPT_PRIORITY_RADIUS_KM", opts.PriorityRadiusKm); err != nil {
		return nil, err
	}
	if cfg.Optimizer.MinActivities, err = getInt("OPT_MIN_ACTIVITIES", opts.MinActivities); err != nil {
		return nil, err
	}
	if cfg.Optimizer.MaxActivities, err = getInt("OPT_MAX_ACTIVITIES", opts.MaxActivities); err != nil {
		return nil, err
	}
	if cfg.Optimizer.SequenceMode, err = sequencing.ParseMode(os.Getenv("OPT_SEQUENCE_MODE")); err != nil {
		return nil, &InvalidValueError{Key: "OPT_SEQUENCE_MODE", Value: os.Getenv("OPT_SEQUENCE_MODE"), Err: err}
	}

	if cfg.Optimizer.MinActivities > cfg.Optimizer.MaxActivities {
		return nil, fmt.Errorf("OPT_MIN_ACTIVITIES (%d) exceeds OPT_MAX_ACTIVITIES (%d)",
			cfg.Optimizer.MinActivities, cfg.Optimizer.MaxActivities)
	}
	return cfg, nil
}

// Geocoding returns the geocoder configuration
func (c *Config) Geocoding() geocoding.Config {
	geo := geocoding.DefaultConfig()
	geo.BaseURL = c.NominatimURL
	if c.GeocoderRPS > 0 {
		geo.RequestsPerSecond = c.GeocoderRPS
	}
	return geo
}

// InvalidValueError reports an environment variable that failed to parse
type InvalidValueError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %v", e.Value, e.Key, e.Err)
}

func (e *InvalidValueError) Unwrap() error {
	return e.Err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &InvalidValueError{Key: key, Value: value, Err: err}
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &InvalidValueError{Key: key, Value: value, Err: err}
	}
	return f, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &InvalidValueError{Key: key, Value: value, Err: err}
	}
	return d, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/optimizer"
)

const defaultTTL = time.Hour

// ResultCache stores optimization results keyed by the fingerprint of their input
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache constructs a cache; a non-positive ttl falls back to one hour.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ResultCache{client: client, ttl: ttl}
}

func key(fingerprint string) string {
	return "optimization:" + fingerprint
}

// fingerprintInput is the part of an itinerary that affects optimization.
// Timestamps and titles are left out.
type fingerprintInput struct {
	Days     []models.Day      `json:"days"`
	Lodgings []models.Lodging  `json:"lodgings"`
	Options  optimizer.Options `json:"options"`
}

// Fingerprint hashes the optimization input. Equal itineraries optimized with
// equal options share a fingerprint.
func Fingerprint(it *models.Itinerary, opts optimizer.Options) (string, error) {
	b, err := json.Marshal(fingerprintInput{Days: it.Days, Lodgings: it.Lodgings, Options: opts})
	if err != nil {
		return "", fmt.Errorf("marshaling itinerary %s for fingerprint: %w", it.ID, err)
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16), nil
}

// Get retrieves a cached result.
// Returns nil, nil on a cache miss (not an error).
func (c *ResultCache) Get(ctx context.Context, fingerprint string) (*optimizer.Result, error) {
	val, err := c.client.Get(ctx, key(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for fingerprint %s: %w", fingerprint, err)
	}

	var res optimizer.Result
	if err := json.Unmarshal(val, &res); err != nil {
		return nil, fmt.Errorf("unmarshaling cached result %s: %w", fingerprint, err)
	}
	return &res, nil
}

// Set stores a result with the configured TTL.
func (c *ResultCache) Set(ctx context.Context, fingerprint string, res *optimizer.Result) error {
	if res == nil {
		return nil
	}

	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling result %s: %w", fingerprint, err)
	}

	if err := c.client.Set(ctx, key(fingerprint), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for fingerprint %s: %w", fingerprint, err)
	}
	return nil
}

// Delete removes a cached result.
func (c *ResultCache) Delete(ctx context.Context, fingerprint string) error {
	if err := c.client.Del(ctx, key(fingerprint)).Err(); err != nil {
		return fmt.Errorf("cache delete for fingerprint %s: %w", fingerprint, err)
	}
	return nil
}

// Ping checks the redis connection
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

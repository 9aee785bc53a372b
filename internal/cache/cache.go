// package cache stores search results in Redis so repeated guest searches do not spend upstream quota.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/partyq/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	searchKeyPrefix  = "partyq:search:"
	defaultSearchTTL = time.Minute
)

// SearchCache keeps track search results for a short time, keyed by normalized query.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSearchCache wraps client. A non-positive ttl falls back to one minute.
func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = defaultSearchTTL
	}
	return &SearchCache{client: client, ttl: ttl}
}

// Open connects to the Redis server at url (redis://host:port/db) and verifies it responds.
func Open(ctx context.Context, url string, ttl time.Duration) (*SearchCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return NewSearchCache(client, ttl), nil
}

// Key returns the Redis key for query.
func Key(query string) string {
	return searchKeyPrefix + strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Get returns cached results for query. A miss is reported with ok false and no error.
func (c *SearchCache) Get(ctx context.Context, query string) ([]models.Track, bool, error) {
	data, err := c.client.Get(ctx, Key(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read search cache: %w", err)
	}

	var tracks []models.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, false, fmt.Errorf("corrupt search cache entry: %w", err)
	}
	return tracks, true, nil
}

// Set stores results for query until the TTL expires.
func (c *SearchCache) Set(ctx context.Context, query string, tracks []models.Track) error {
	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("failed to encode search results: %w", err)
	}
	if err := c.client.Set(ctx, Key(query), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}
	return nil
}

// Clear deletes every cached search and returns how many entries were removed.
func (c *SearchCache) Clear(ctx context.Context) (int, error) {
	var removed int
	iter := c.client.Scan(ctx, 0, searchKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan search cache: %w", err)
	}
	return removed, nil
}

// Close releases the Redis connection.
func (c *SearchCache) Close() error {
	return c.client.Close()
}

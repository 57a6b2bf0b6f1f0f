package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agromonitor/internal/models"

	"github.com/redis/go-redis/v9"
)

// LatestAnyKey holds the most recent reading of any device
const LatestAnyKey = "reading:latest"

var ErrCacheMiss = errors.New("no cached reading")

// NewRedisClient creates a Redis client
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// LatestKey is the cache key of a device's latest reading
func LatestKey(deviceID string) string {
	return fmt.Sprintf("device:%s:latest", deviceID)
}

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cache keeps the latest reading per device
type Cache struct {
	client kv
	ttl    time.Duration
}

// NewCache wraps client. ttl 0 keeps entries until overwritten.
func NewCache(client kv, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// SetLatest stores r as the latest reading of its device and of the system
func (c *Cache) SetLatest(ctx context.Context, r models.SensorReading) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if r.DeviceID != "" {
		if err := c.client.Set(ctx, LatestKey(r.DeviceID), raw, c.ttl).Err(); err != nil {
			return fmt.Errorf("cache latest for %s: %w", r.DeviceID, err)
		}
	}
	if err := c.client.Set(ctx, LatestAnyKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache latest: %w", err)
	}
	return nil
}

// Latest returns the cached reading of deviceID, or of any device when
// deviceID is empty.
func (c *Cache) Latest(ctx context.Context, deviceID string) (models.SensorReading, error) {
	key := LatestAnyKey
	if deviceID != "" {
		key = LatestKey(deviceID)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SensorReading{}, ErrCacheMiss
	}
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("read %s: %w", key, err)
	}

	var r models.SensorReading
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.SensorReading{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return r, nil
}

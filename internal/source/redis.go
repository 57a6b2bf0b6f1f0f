package source

import (
	"context"
	"errors"
	"fmt"

	"agromonitor/internal/models"
	rediscache "agromonitor/internal/redis"
)

// LatestReader returns the most recent stored reading of a device
type LatestReader interface {
	Latest(ctx context.Context, deviceID string) (models.SensorReading, error)
}

// RedisSource reads the latest reading written by ingestion
type RedisSource struct {
	cache    LatestReader
	deviceID string
}

// NewRedisSource polls deviceID, or whichever device reported last when
// deviceID is empty.
func NewRedisSource(cache LatestReader, deviceID string) *RedisSource {
	return &RedisSource{cache: cache, deviceID: deviceID}
}

func (s *RedisSource) Fetch(ctx context.Context) (models.SensorReading, error) {
	r, err := s.cache.Latest(ctx, s.deviceID)
	if errors.Is(err, rediscache.ErrCacheMiss) {
		return models.SensorReading{}, fmt.Errorf("%w: device %q", ErrNoReading, s.deviceID)
	}
	return r, err
}

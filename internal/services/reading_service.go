package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agromonitor/internal/db"
	"agromonitor/internal/logger"
	"agromonitor/internal/metrics"
	"agromonitor/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrInvalidReading = errors.New("invalid reading")
	ErrNoReadings     = errors.New("no readings")
	ErrInvalidRange   = errors.New("invalid date range")
)

// ReadingStore persists readings and resolves devices
type ReadingStore interface {
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	InsertReading(ctx context.Context, r models.SensorReading) (models.SensorReading, error)
	LatestReading(ctx context.Context, deviceID string) (models.SensorReading, error)
	ReadingsBetween(ctx context.Context, deviceID string, from, to time.Time) ([]models.SensorReading, error)
}

// LatestCache keeps the newest reading per device
type LatestCache interface {
	SetLatest(ctx context.Context, r models.SensorReading) error
	Latest(ctx context.Context, deviceID string) (models.SensorReading, error)
}

// HistoryWriter mirrors readings to a time series store
type HistoryWriter interface {
	WriteReading(ctx context.Context, r models.SensorReading) error
}

type ReadingService struct {
	store   ReadingStore
	cache   LatestCache
	history HistoryWriter
	log     zerolog.Logger
}

// NewReadingService creates the ingestion service. cache and history may be nil.
func NewReadingService(store ReadingStore, cache LatestCache, history HistoryWriter) *ReadingService {
	return &ReadingService{
		store:   store,
		cache:   cache,
		history: history,
		log:     logger.WithComponent("readings"),
	}
}

// Ingest stores a reading posted over HTTP
func (s *ReadingService) Ingest(ctx context.Context, r models.SensorReading) (models.SensorReading, error) {
	return s.ingest(ctx, "http", r)
}

// HandleMQTT ingests a reading published by deviceID. The topic wins over
// any device id in the payload.
func (s *ReadingService) HandleMQTT(ctx context.Context, deviceID string, payload []byte) error {
	var r models.SensorReading
	if err := json.Unmarshal(payload, &r); err != nil {
		metrics.ReadingsIngestedTotal.WithLabelValues("mqtt", "rejected").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	r.DeviceID = deviceID
	_, err := s.ingest(ctx, "mqtt", r)
	return err
}

func (s *ReadingService) ingest(ctx context.Context, transport string, r models.SensorReading) (models.SensorReading, error) {
	stored, err := s.persist(ctx, r)
	if err != nil {
		metrics.ReadingsIngestedTotal.WithLabelValues(transport, "rejected").Inc()
		return models.SensorReading{}, err
	}
	metrics.ReadingsIngestedTotal.WithLabelValues(transport, "stored").Inc()

	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, stored); err != nil {
			s.log.Warn().Err(err).Str("device_id", stored.DeviceID).Msg("failed to cache reading")
		}
	}
	if s.history != nil {
		if err := s.history.WriteReading(ctx, stored); err != nil {
			s.log.Warn().Err(err).Str("device_id", stored.DeviceID).Msg("failed to write reading history")
		}
	}

	s.log.Debug().Str("device_id", stored.DeviceID).Str("transport", transport).Msg("reading stored")
	return stored, nil
}

func (s *ReadingService) persist(ctx context.Context, r models.SensorReading) (models.SensorReading, error) {
	if r.DeviceID == "" {
		return models.SensorReading{}, fmt.Errorf("%w: deviceId is required", ErrInvalidReading)
	}
	if r.Empty() {
		return models.SensorReading{}, fmt.Errorf("%w: no sensor values", ErrInvalidReading)
	}

	if _, err := s.store.GetDeviceByDeviceID(ctx, r.DeviceID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.SensorReading{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, r.DeviceID)
		}
		return models.SensorReading{}, fmt.Errorf("lookup device: %w", err)
	}

	stored, err := s.store.InsertReading(ctx, r)
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("insert reading: %w", err)
	}
	return stored, nil
}

// Latest returns the newest reading of deviceID, or of any device when empty.
// The cache is tried first.
func (s *ReadingService) Latest(ctx context.Context, deviceID string) (models.SensorReading, error) {
	if s.cache != nil {
		r, err := s.cache.Latest(ctx, deviceID)
		if err == nil {
			return r, nil
		}
		s.log.Debug().Err(err).Str("device_id", deviceID).Msg("cache miss")
	}

	r, err := s.store.LatestReading(ctx, deviceID)
	if errors.Is(err, db.ErrNotFound) {
		return models.SensorReading{}, ErrNoReadings
	}
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("latest reading: %w", err)
	}
	return r, nil
}

// Range returns the readings of deviceID between from and to, oldest first
func (s *ReadingService) Range(ctx context.Context, deviceID string, from, to time.Time) ([]models.SensorReading, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: start after end", ErrInvalidRange)
	}
	readings, err := s.store.ReadingsBetween(ctx, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}
	if readings == nil {
		readings = []models.SensorReading{}
	}
	return readings, nil
}

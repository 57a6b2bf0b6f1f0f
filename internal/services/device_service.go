package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agromonitor/internal/db"
	"agromonitor/internal/models"
)

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrDeviceExists  = errors.New("device already registered")
)

type DeviceStore interface {
	InsertDevice(ctx context.Context, d models.Device) (models.Device, error)
}

type DeviceService struct {
	store DeviceStore
}

func NewDeviceService(store DeviceStore) *DeviceService {
	return &DeviceService{store: store}
}

// Register creates a device owned by userID
func (s *DeviceService) Register(ctx context.Context, name, deviceID, userID string) (models.Device, error) {
	name, deviceID, userID = strings.TrimSpace(name), strings.TrimSpace(deviceID), strings.TrimSpace(userID)
	if name == "" || deviceID == "" || userID == "" {
		return models.Device{}, ErrMissingFields
	}

	dev, err := s.store.InsertDevice(ctx, models.Device{Name: name, DeviceID: deviceID, UserID: userID})
	if errors.Is(err, db.ErrDuplicate) {
		return models.Device{}, fmt.Errorf("%w: %s", ErrDeviceExists, deviceID)
	}
	if err != nil {
		return models.Device{}, fmt.Errorf("register device: %w", err)
	}
	return dev, nil
}

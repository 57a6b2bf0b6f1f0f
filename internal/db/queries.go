package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agromonitor/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const readingColumns = `device_id, umidade_solo, umidade_ar, temperatura_ar, temperatura_solo, luminosidade, criado_em`

// InsertDevice registers a device and returns it with its generated fields
func (d *DB) InsertDevice(ctx context.Context, dev models.Device) (models.Device, error) {
	if dev.ID == "" {
		dev.ID = uuid.NewString()
	}
	err := d.pool.QueryRow(ctx,
		`INSERT INTO devices (id, nome, device_id, usuario_id) VALUES ($1, $2, $3, $4) RETURNING criado_em`,
		dev.ID, dev.Name, dev.DeviceID, dev.UserID,
	).Scan(&dev.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.Device{}, fmt.Errorf("device %s: %w", dev.DeviceID, ErrDuplicate)
		}
		return models.Device{}, err
	}
	return dev, nil
}

// GetDeviceByDeviceID fetches a device by its hardware id
func (d *DB) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	var dev models.Device
	err := d.pool.QueryRow(ctx,
		`SELECT id, nome, device_id, usuario_id, criado_em FROM devices WHERE device_id = $1`, deviceID,
	).Scan(&dev.ID, &dev.Name, &dev.DeviceID, &dev.UserID, &dev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// InsertReading stores a reading and returns it with its server timestamp
func (d *DB) InsertReading(ctx context.Context, r models.SensorReading) (models.SensorReading, error) {
	err := d.pool.QueryRow(ctx,
		`INSERT INTO sensor_readings (device_id, umidade_solo, umidade_ar, temperatura_ar, temperatura_solo, luminosidade)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING criado_em`,
		r.DeviceID, r.SoilMoisture, r.AirHumidity, r.AirTemperature, r.SoilTemperature, r.Luminosity,
	).Scan(&r.CreatedAt)
	if err != nil {
		return models.SensorReading{}, err
	}
	return r, nil
}

// LatestReading returns the newest reading of deviceID, or of any device
// when deviceID is empty.
func (d *DB) LatestReading(ctx context.Context, deviceID string) (models.SensorReading, error) {
	var row pgx.Row
	if deviceID == "" {
		row = d.pool.QueryRow(ctx,
			`SELECT `+readingColumns+` FROM sensor_readings ORDER BY criado_em DESC LIMIT 1`)
	} else {
		row = d.pool.QueryRow(ctx,
			`SELECT `+readingColumns+` FROM sensor_readings WHERE device_id = $1 ORDER BY criado_em DESC LIMIT 1`,
			deviceID)
	}

	r, err := scanReading(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SensorReading{}, fmt.Errorf("reading for %q: %w", deviceID, ErrNotFound)
	}
	return r, err
}

// ReadingsBetween returns the readings of deviceID in [from, to], oldest first
func (d *DB) ReadingsBetween(ctx context.Context, deviceID string, from, to time.Time) ([]models.SensorReading, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT `+readingColumns+` FROM sensor_readings
		 WHERE device_id = $1 AND criado_em BETWEEN $2 AND $3
		 ORDER BY criado_em ASC`,
		deviceID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.SensorReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func scanReading(row pgx.Row) (models.SensorReading, error) {
	var r models.SensorReading
	err := row.Scan(&r.DeviceID, &r.SoilMoisture, &r.AirHumidity, &r.AirTemperature,
		&r.SoilTemperature, &r.Luminosity, &r.CreatedAt)
	return r, err
}

package models

import (
	"encoding/json"
	"time"
)

// Metric names one quantity reported by a sensor device. The values match
// the JSON field names devices send.
type Metric string

const (
	MetricSoilMoisture    Metric = "umidadeSolo"
	MetricAirHumidity     Metric = "umidadeAr"
	MetricAirTemperature  Metric = "temperaturaAr"
	MetricSoilTemperature Metric = "temperaturaSolo"
	MetricLuminosity      Metric = "luminosidade"
)

// Metrics lists every metric a reading can carry
var Metrics = []Metric{
	MetricSoilMoisture,
	MetricAirHumidity,
	MetricAirTemperature,
	MetricSoilTemperature,
	MetricLuminosity,
}

// Known reports whether m is one of Metrics
func (m Metric) Known() bool {
	for _, k := range Metrics {
		if k == m {
			return true
		}
	}
	return false
}

// SensorReading is one snapshot of a device's sensors. A nil field means the
// sensor did not report it, which is not the same as a zero value.
type SensorReading struct {
	DeviceID        string    `json:"deviceId,omitempty"`
	SoilMoisture    *float64  `json:"umidadeSolo"`
	AirHumidity     *float64  `json:"umidadeAr"`
	AirTemperature  *float64  `json:"temperaturaAr"`
	SoilTemperature *float64  `json:"temperaturaSolo"`
	Luminosity      *float64  `json:"luminosidade"`
	CreatedAt       time.Time `json:"criadoEm,omitempty"`
}

// Value returns the value of m and whether it was reported
func (r SensorReading) Value(m Metric) (float64, bool) {
	var p *float64
	switch m {
	case MetricSoilMoisture:
		p = r.SoilMoisture
	case MetricAirHumidity:
		p = r.AirHumidity
	case MetricAirTemperature:
		p = r.AirTemperature
	case MetricSoilTemperature:
		p = r.SoilTemperature
	case MetricLuminosity:
		p = r.Luminosity
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Empty reports whether no metric was reported at all
func (r SensorReading) Empty() bool {
	for _, m := range Metrics {
		if _, ok := r.Value(m); ok {
			return false
		}
	}
	return true
}

// UnmarshalJSON accepts the snake_case and short aliases some firmware
// versions send alongside the canonical names.
func (r *SensorReading) UnmarshalJSON(data []byte) error {
	var raw struct {
		DeviceID        string    `json:"deviceId"`
		SoilMoisture    *float64  `json:"umidadeSolo"`
		SoilMoistureAlt *float64  `json:"umidade_solo"`
		AirHumidity     *float64  `json:"umidadeAr"`
		AirHumidityAlt  *float64  `json:"umidade_ar"`
		AirTemperature  *float64  `json:"temperaturaAr"`
		Temperature     *float64  `json:"temperatura"`
		Temp            *float64  `json:"temp"`
		SoilTemperature *float64  `json:"temperaturaSolo"`
		Luminosity      *float64  `json:"luminosidade"`
		CreatedAt       time.Time `json:"criadoEm"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = SensorReading{
		DeviceID:        raw.DeviceID,
		SoilMoisture:    firstSet(raw.SoilMoisture, raw.SoilMoistureAlt),
		AirHumidity:     firstSet(raw.AirHumidity, raw.AirHumidityAlt),
		AirTemperature:  firstSet(raw.AirTemperature, raw.Temperature, raw.Temp),
		SoilTemperature: raw.SoilTemperature,
		Luminosity:      raw.Luminosity,
		CreatedAt:       raw.CreatedAt,
	}
	return nil
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"agromonitor/internal/db"
	"agromonitor/internal/models"
)

// ReportTitle is the notification title of the daily summary
const ReportTitle = "Relatório Diário"

var metricLabels = map[models.Metric]string{
	models.MetricSoilMoisture:    "Umidade do solo",
	models.MetricAirHumidity:     "Umidade do ar",
	models.MetricAirTemperature:  "Temperatura do ar",
	models.MetricSoilTemperature: "Temperatura do solo",
	models.MetricLuminosity:      "Luminosidade",
}

// MetricSummary holds the statistics of one metric over a window
type MetricSummary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"media"`
	Samples int     `json:"amostras"`
}

type Summary struct {
	DeviceID string                          `json:"deviceId"`
	From     time.Time                       `json:"de"`
	To       time.Time                       `json:"ate"`
	Readings int                             `json:"leituras"`
	Metrics  map[models.Metric]MetricSummary `json:"metricas"`
}

// Summarize computes per-metric statistics. Missing values are skipped, so a
// metric's sample count can be lower than the number of readings.
func Summarize(readings []models.SensorReading) map[models.Metric]MetricSummary {
	out := make(map[models.Metric]MetricSummary)
	sums := make(map[models.Metric]float64)

	for _, r := range readings {
		for _, m := range models.Metrics {
			v, ok := r.Value(m)
			if !ok {
				continue
			}
			s, seen := out[m]
			if !seen {
				s = MetricSummary{Min: math.Inf(1), Max: math.Inf(-1)}
			}
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
			s.Samples++
			out[m] = s
			sums[m] += v
		}
	}

	for m, s := range out {
		s.Mean = sums[m] / float64(s.Samples)
		out[m] = s
	}
	return out
}

// Text renders the summary as a notification body
func (s Summary) Text() string {
	if s.Readings == 0 {
		return fmt.Sprintf("Sem leituras de %s nas últimas %s.", s.deviceLabel(), hours(s.To.Sub(s.From)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Resumo de %s nas últimas %s: %d leituras.", s.deviceLabel(), hours(s.To.Sub(s.From)), s.Readings)
	for _, m := range models.Metrics {
		ms, ok := s.Metrics[m]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, " %s: mín %s, máx %s, média %s.",
			metricLabels[m], num(ms.Min), num(ms.Max), num(ms.Mean))
	}
	return b.String()
}

func (s Summary) deviceLabel() string {
	if s.DeviceID == "" {
		return "todos os sensores"
	}
	return s.DeviceID
}

func hours(d time.Duration) string {
	return strconv.Itoa(int(math.Round(d.Hours()))) + "h"
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

// RangeReader is the part of the store the report needs
type RangeReader interface {
	LatestReading(ctx context.Context, deviceID string) (models.SensorReading, error)
	ReadingsBetween(ctx context.Context, deviceID string, from, to time.Time) ([]models.SensorReading, error)
}

type ReportService struct {
	store RangeReader
	now   func() time.Time
}

func NewReportService(store RangeReader) *ReportService {
	return &ReportService{store: store, now: time.Now}
}

// Build summarizes the last window of readings of deviceID. An empty
// deviceID picks the device that reported last.
func (s *ReportService) Build(ctx context.Context, deviceID string, window time.Duration) (Summary, error) {
	to := s.now().UTC()
	summary := Summary{DeviceID: deviceID, From: to.Add(-window), To: to}

	if deviceID == "" {
		latest, err := s.store.LatestReading(ctx, "")
		if errors.Is(err, db.ErrNotFound) {
			return summary, nil
		}
		if err != nil {
			return Summary{}, fmt.Errorf("resolve device: %w", err)
		}
		summary.DeviceID = latest.DeviceID
	}

	readings, err := s.store.ReadingsBetween(ctx, summary.DeviceID, summary.From, summary.To)
	if err != nil {
		return Summary{}, fmt.Errorf("report readings: %w", err)
	}
	summary.Readings = len(readings)
	summary.Metrics = Summarize(readings)
	return summary, nil
}

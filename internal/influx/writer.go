package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agromonitor/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the measurement name readings are written under
const Measurement = "sensor_reading"

var ErrIncompleteConfig = errors.New("influx config incomplete")

// Writer mirrors readings into an InfluxDB bucket
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewWriter(url, token, org, bucket string) (*Writer, error) {
	if url == "" || token == "" || org == "" || bucket == "" {
		return nil, ErrIncompleteConfig
	}
	client := influxdb2.NewClient(url, token)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}, nil
}

// ReadingPoint converts a reading into a point tagged by device. Absent
// metrics are left out. It returns nil when the reading has no metric.
func ReadingPoint(r models.SensorReading) *write.Point {
	fields := make(map[string]interface{})
	for _, m := range models.Metrics {
		if v, ok := r.Value(m); ok {
			fields[string(m)] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}

	ts := r.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	tags := map[string]string{"device_id": r.DeviceID}
	return influxdb2.NewPoint(Measurement, tags, fields, ts)
}

func (w *Writer) WriteReading(ctx context.Context, r models.SensorReading) error {
	p := ReadingPoint(r)
	if p == nil {
		return nil
	}
	if err := w.writeAPI.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (w *Writer) Close() {
	w.client.Close()
}

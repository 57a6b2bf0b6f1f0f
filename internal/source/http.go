package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agromonitor/internal/models"

	"github.com/sony/gobreaker"
)

var (
	ErrNoReading   = errors.New("no sensor reading available")
	ErrBadStatus   = errors.New("unexpected upstream status")
	ErrBreakerOpen = errors.New("sensor endpoint circuit open")
)

// NewBreaker returns a breaker that opens after failures consecutive errors
// and probes again after openTimeout.
func NewBreaker(name string, failures uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker {
	if failures == 0 {
		failures = 3
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
	})
}

// HTTPSource reads the latest reading from a JSON endpoint
type HTTPSource struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPSource builds a source for url. breaker may be nil.
func NewHTTPSource(url string, client *http.Client, breaker *gobreaker.CircuitBreaker) *HTTPSource {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSource{
		url:     strings.TrimSpace(url),
		client:  client,
		breaker: breaker,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) (models.SensorReading, error) {
	if s.breaker == nil {
		return s.get(ctx)
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.get(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.SensorReading{}, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	if err != nil {
		return models.SensorReading{}, err
	}
	return out.(models.SensorReading), nil
}

func (s *HTTPSource) get(ctx context.Context) (models.SensorReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return models.SensorReading{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var r models.SensorReading
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return models.SensorReading{}, fmt.Errorf("decode error: %w", err)
	}
	return r, nil
}

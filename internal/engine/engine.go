package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"agromonitor/internal/automation"
	"agromonitor/internal/logger"
	"agromonitor/internal/metrics"
	"agromonitor/internal/models"
	"agromonitor/internal/notify"

	"github.com/rs/zerolog"
)

const (
	DefaultInterval     = time.Hour
	DefaultFetchTimeout = 5 * time.Second

	fetchFailedTitle  = "Erro Sensor"
	fetchFailedText   = "Falha ao buscar dados do sensor!"
	sensorFailedTitle = "Falha Sensor"
	sensorFailedText  = "Falha no envio de dados do sensor!"
)

// Poll results, also used as metric labels
const (
	ResultOK               = "ok"
	ResultSkipped          = "skipped"
	ResultTransportFailure = "transport_failure"
	ResultSensorFailure    = "sensor_failure"
	ResultDiscarded        = "discarded"
)

var ErrAlreadyRunning = errors.New("engine already running")

// Source fetches the latest sensor reading
type Source interface {
	Fetch(ctx context.Context) (models.SensorReading, error)
}

type Config struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Rules        []automation.ThresholdRule
}

// Status is a point-in-time view of the engine
type Status struct {
	Running    bool                  `json:"running"`
	Fetching   bool                  `json:"fetching"`
	PumpOn     bool                  `json:"pumpOn"`
	Rules      map[string]AlertState `json:"rules"`
	LastPoll   *time.Time            `json:"lastPoll,omitempty"`
	LastResult string                `json:"lastResult,omitempty"`
	Interval   string                `json:"interval"`
}

// Engine is the polling loop: fetch, evaluate, track edges, notify
type Engine struct {
	source  Source
	emitter notify.Emitter
	log     *notify.Log
	cfg     Config
	tracker *Tracker
	logger  zerolog.Logger

	fetching atomic.Bool
	wg       sync.WaitGroup

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	lastPoll   time.Time
	lastResult string
}

// NewEngine creates a new engine instance
func NewEngine(source Source, emitter notify.Emitter, log *notify.Log, cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = automation.DefaultRules(automation.DefaultThreshold, automation.DefaultThreshold)
	}
	return &Engine{
		source:  source,
		emitter: emitter,
		log:     log,
		cfg:     cfg,
		tracker: NewTracker(cfg.Rules),
		logger:  logger.WithComponent("engine"),
	}
}

// Start begins a fresh session: alert state is reset, the first poll runs
// immediately and then once per interval until Stop or ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	session, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	e.Reset()

	e.wg.Add(1)
	go e.loop(session)

	e.logger.Info().
		Dur("interval", e.cfg.Interval).
		Int("rules", len(e.cfg.Rules)).
		Msg("engine started")
	return nil
}

// Stop ends the session and waits for in-flight polls. Results that arrive
// after the session ended are dropped. Polls started by calling Tick
// directly, such as the manual poll route, are not waited for: shut the
// HTTP server down before calling Stop.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info().Msg("engine stopped")
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.spawnTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.spawnTick(ctx)
		}
	}
}

func (e *Engine) spawnTick(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Tick(ctx)
	}()
}

// Tick runs one poll. It returns false without fetching when a previous poll
// is still in flight.
func (e *Engine) Tick(ctx context.Context) bool {
	if !e.fetching.CompareAndSwap(false, true) {
		metrics.PollsTotal.WithLabelValues(ResultSkipped).Inc()
		e.logger.Debug().Msg("poll skipped, fetch in flight")
		return false
	}
	defer e.fetching.Store(false)

	start := time.Now()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	reading, err := e.source.Fetch(fetchCtx)
	cancel()

	if ctx.Err() != nil {
		e.record(ResultDiscarded)
		e.logger.Debug().Msg("session ended during fetch, result discarded")
		return true
	}

	if err != nil {
		e.record(ResultTransportFailure)
		e.logger.Warn().Err(err).Msg("sensor fetch failed")
		e.dispatch(ctx, Event{Kind: models.KindInfo, Title: fetchFailedTitle, Text: fetchFailedText})
		return true
	}

	ev := automation.Evaluate(reading, e.cfg.Rules)
	if ev.SensorFailure {
		e.record(ResultSensorFailure)
		e.logger.Warn().Interface("missing", ev.Missing).Msg("sensor reading incomplete")
		e.dispatch(ctx, Event{Kind: models.KindInfo, Title: sensorFailedTitle, Text: sensorFailedText})
		return true
	}

	events := e.tracker.Observe(ev)
	e.record(ResultOK)
	if e.tracker.PumpOn() {
		metrics.PumpActive.Set(1)
	} else {
		metrics.PumpActive.Set(0)
	}

	e.logger.Debug().
		Int("violations", len(ev.Violations())).
		Int("events", len(events)).
		Msg("reading evaluated")

	for _, event := range events {
		e.dispatch(ctx, event)
	}
	return true
}

// Notify appends an entry to the log and emits it, like any pipeline event
func (e *Engine) Notify(ctx context.Context, kind models.NotificationKind, title, text string) models.NotificationEntry {
	return e.dispatch(ctx, Event{Kind: kind, Title: title, Text: text})
}

// Reset returns every rule to Normal and the pump to off without notifying
func (e *Engine) Reset() {
	e.tracker.Reset()
	metrics.PumpActive.Set(0)
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	s := Status{
		Running:    e.running,
		LastResult: e.lastResult,
		Interval:   e.cfg.Interval.String(),
	}
	if !e.lastPoll.IsZero() {
		t := e.lastPoll
		s.LastPoll = &t
	}
	e.mu.Unlock()

	s.Fetching = e.fetching.Load()
	s.PumpOn = e.tracker.PumpOn()
	s.Rules = e.tracker.Snapshot()
	return s
}

// Log returns the notification log the engine appends to
func (e *Engine) Log() *notify.Log {
	return e.log
}

func (e *Engine) record(result string) {
	metrics.PollsTotal.WithLabelValues(result).Inc()
	e.mu.Lock()
	e.lastPoll = time.Now()
	e.lastResult = result
	e.mu.Unlock()
}

// dispatch records the event before emitting it so the panel sees it even
// when delivery fails.
func (e *Engine) dispatch(ctx context.Context, ev Event) models.NotificationEntry {
	entry := e.log.Append(ev.Kind, ev.Text)
	metrics.NotificationsTotal.WithLabelValues(string(ev.Kind)).Inc()

	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.FetchTimeout)
	defer cancel()

	if err := e.emit(emitCtx, ev.Title, ev.body()); err != nil {
		metrics.EmitterFailuresTotal.Inc()
		e.logger.Error().Err(err).
			Str("kind", string(ev.Kind)).
			Str("id", entry.ID).
			Msg("failed to emit notification")
	}
	return entry
}

func (e *Engine) emit(ctx context.Context, title, body string) (err error) {
	if e.emitter == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("emitter").Inc()
			err = fmt.Errorf("emitter panic: %v", r)
		}
	}()
	return e.emitter.Emit(ctx, title, body)
}

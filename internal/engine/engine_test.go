package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agromonitor/internal/automation"
	"agromonitor/internal/metrics"
	"agromonitor/internal/models"
	"agromonitor/internal/notify"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fetchResult struct {
	reading models.SensorReading
	err     error
}

// scriptedSource returns its results in order, repeating the last one
type scriptedSource struct {
	mu      sync.Mutex
	results []fetchResult
	calls   atomic.Int32
}

func (s *scriptedSource) Fetch(ctx context.Context) (models.SensorReading, error) {
	n := int(s.calls.Add(1)) - 1
	s.mu.Lock()
	defer s.mu.Unlock()
	if n >= len(s.results) {
		n = len(s.results) - 1
	}
	return s.results[n].reading, s.results[n].err
}

type recordingEmitter struct {
	mu     sync.Mutex
	titles []string
	bodies []string
	calls  atomic.Int32
}

func (r *recordingEmitter) Emit(_ context.Context, title, body string) error {
	r.calls.Add(1)
	r.mu.Lock()
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()
	return nil
}

func ok(soil, air float64) fetchResult {
	return fetchResult{reading: models.SensorReading{
		SoilMoisture: models.Float(soil),
		AirHumidity:  models.Float(air),
	}}
}

func countKind(entries []models.NotificationEntry, kind models.NotificationKind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func newTestEngine(src Source, em notify.Emitter) (*Engine, *notify.Log) {
	log := notify.NewLog(0, notify.ModeMarkRead)
	e := NewEngine(src, em, log, Config{
		Interval:     time.Hour,
		FetchTimeout: time.Minute,
	})
	return e, log
}

func runTicks(t *testing.T, e *Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if !e.Tick(context.Background()) {
			t.Fatalf("tick %d skipped", i)
		}
	}
}

func TestEngineSoilDryIsEdgeTriggered(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{ok(45, 60), ok(45, 60), ok(55, 60), ok(45, 60)}}
	e, log := newTestEngine(src, nil)

	runTicks(t, e, 4)

	if got := countKind(log.Entries(), models.KindSoilDry); got != 2 {
		t.Fatalf("expected 2 soil notifications, got %d", got)
	}
}

func TestEngineSustainedExcursionNotifiesOnce(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{ok(45, 60), ok(45, 60), ok(45, 60)}}
	e, log := newTestEngine(src, nil)

	runTicks(t, e, 3)

	entries := log.Entries()
	if got := countKind(entries, models.KindSoilDry); got != 1 {
		t.Fatalf("expected 1 soil notification, got %d", got)
	}
	if got := countKind(entries, models.KindPumpOn); got != 1 {
		t.Fatalf("expected 1 pump on, got %d", got)
	}
}

func TestEnginePumpFollowsOrOfRules(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{
		ok(45, 60), // soil dry, pump on
		ok(45, 45), // air dry too
		ok(60, 45), // soil recovers, air still dry
		ok(60, 60), // both fine, pump off
	}}
	em := &recordingEmitter{}
	e, log := newTestEngine(src, em)

	runTicks(t, e, 4)

	entries := log.Entries()
	if got := countKind(entries, models.KindPumpOn); got != 1 {
		t.Fatalf("expected exactly one pump on, got %d", got)
	}
	if got := countKind(entries, models.KindPumpOff); got != 1 {
		t.Fatalf("expected exactly one pump off, got %d", got)
	}
	if countKind(entries, models.KindAirDry) != 1 {
		t.Fatal("expected one air notification")
	}
	if e.Status().PumpOn {
		t.Fatal("pump should be off")
	}
	if int(em.calls.Load()) != len(entries) {
		t.Fatalf("expected every entry emitted, got %d emits for %d entries", em.calls.Load(), len(entries))
	}
}

func TestEngineEventOrder(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{ok(45, 45)}}
	em := &recordingEmitter{}
	e, _ := newTestEngine(src, em)

	runTicks(t, e, 1)

	want := []string{"Solo Seco", "Ar Seco", "Bomba Ligada"}
	if len(em.titles) != len(want) {
		t.Fatalf("expected %v, got %v", want, em.titles)
	}
	for i := range want {
		if em.titles[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, em.titles)
		}
	}
}

func TestEngineFetchFailureNotifiesAndContinues(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{
		{err: errors.New("connection refused")},
		ok(70, 70),
	}}
	e, log := newTestEngine(src, nil)

	runTicks(t, e, 2)

	entries := log.Entries()
	if len(entries) != 1 || entries[0].Kind != models.KindInfo {
		t.Fatalf("expected a single info entry, got %+v", entries)
	}
	if entries[0].Text != "Falha ao buscar dados do sensor!" {
		t.Fatalf("unexpected text %q", entries[0].Text)
	}
	if src.calls.Load() != 2 {
		t.Fatalf("expected the next poll to run, got %d calls", src.calls.Load())
	}
	if e.Status().LastResult != ResultOK {
		t.Fatalf("unexpected last result %q", e.Status().LastResult)
	}
}

func TestEngineSensorFailureLeavesStateAlone(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{
		ok(45, 60),
		{reading: models.SensorReading{AirHumidity: models.Float(60)}},
		ok(45, 60),
	}}
	e, log := newTestEngine(src, nil)

	runTicks(t, e, 3)

	entries := log.Entries()
	if got := countKind(entries, models.KindInfo); got != 1 {
		t.Fatalf("expected one info entry, got %d", got)
	}
	if entries[0].Text != "Falha no envio de dados do sensor!" && entries[1].Text != "Falha no envio de dados do sensor!" {
		t.Fatalf("missing sensor failure text in %+v", entries)
	}
	if got := countKind(entries, models.KindSoilDry); got != 1 {
		t.Fatalf("sensor failure must not reset alert state, got %d soil entries", got)
	}
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) Fetch(ctx context.Context) (models.SensorReading, error) {
	b.entered <- struct{}{}
	<-b.release
	return ok(70, 70).reading, nil
}

func TestEngineSkipsOverlappingTick(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}, 1), release: make(chan struct{})}
	e, _ := newTestEngine(src, nil)

	done := make(chan bool)
	go func() { done <- e.Tick(context.Background()) }()
	<-src.entered

	before := testutil.ToFloat64(metrics.PollsTotal.WithLabelValues(ResultSkipped))
	if e.Tick(context.Background()) {
		t.Fatal("expected overlapping tick to be skipped")
	}
	if !e.Status().Fetching {
		t.Fatal("expected fetching status")
	}
	if got := testutil.ToFloat64(metrics.PollsTotal.WithLabelValues(ResultSkipped)); got != before+1 {
		t.Fatalf("expected skipped counter to increase, got %v", got)
	}

	close(src.release)
	if !<-done {
		t.Fatal("first tick should have run")
	}
	if e.Status().Fetching {
		t.Fatal("expected idle after tick")
	}
}

// lateSource only answers once its context is cancelled
type lateSource struct {
	entered chan struct{}
}

func (l *lateSource) Fetch(ctx context.Context) (models.SensorReading, error) {
	l.entered <- struct{}{}
	<-ctx.Done()
	return ok(10, 10).reading, nil
}

func TestEngineStopDiscardsLateResult(t *testing.T) {
	src := &lateSource{entered: make(chan struct{}, 1)}
	e, log := newTestEngine(src, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-src.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first poll did not run immediately")
	}

	e.Stop()

	if log.Len() != 0 {
		t.Fatalf("expected no entries after stop, got %+v", log.Entries())
	}
	for name, st := range e.Status().Rules {
		if st != StateNormal {
			t.Fatalf("rule %s changed after stop: %s", name, st)
		}
	}
	if e.Status().Running {
		t.Fatal("engine still running")
	}
	if e.Status().LastResult != ResultDiscarded {
		t.Fatalf("expected discarded result, got %q", e.Status().LastResult)
	}
}

func TestEngineStartTwice(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{ok(70, 70)}}
	e, _ := newTestEngine(src, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()
	if err := e.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestEngineEmitterFailuresDoNotBreakLoop(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{ok(45, 60), ok(60, 60), ok(45, 60)}}
	var calls atomic.Int32
	em := notify.EmitterFunc(func(context.Context, string, string) error {
		if calls.Add(1)%2 == 0 {
			panic("boom")
		}
		return errors.New("delivery failed")
	})
	e, log := newTestEngine(src, em)

	before := testutil.ToFloat64(metrics.EmitterFailuresTotal)
	runTicks(t, e, 3)

	// soil + pump on, pump off, soil + pump on
	if log.Len() != 5 {
		t.Fatalf("expected 5 entries despite emitter failures, got %d", log.Len())
	}
	if got := testutil.ToFloat64(metrics.EmitterFailuresTotal); got != before+5 {
		t.Fatalf("expected 5 emitter failures, got %v", got-before)
	}
}

func TestEngineResetRearmsRules(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{ok(45, 60)}}
	e, log := newTestEngine(src, nil)

	runTicks(t, e, 2)
	e.Reset()
	if e.Status().PumpOn {
		t.Fatal("reset must turn the pump off")
	}
	runTicks(t, e, 1)

	if got := countKind(log.Entries(), models.KindSoilDry); got != 2 {
		t.Fatalf("expected a new notification after reset, got %d", got)
	}
}

func TestEngineCustomRuleDoesNotDrivePump(t *testing.T) {
	rules := append(automation.DefaultRules(50, 50), automation.Custom("dark", models.MetricLuminosity, 100))
	src := &scriptedSource{results: []fetchResult{{reading: models.SensorReading{
		SoilMoisture: models.Float(70),
		AirHumidity:  models.Float(70),
		Luminosity:   models.Float(20),
	}}}}
	log := notify.NewLog(0, notify.ModeClear)
	e := NewEngine(src, nil, log, Config{Rules: rules, FetchTimeout: time.Minute})

	runTicks(t, e, 1)

	entries := log.Entries()
	if len(entries) != 1 || entries[0].Kind != models.KindThreshold {
		t.Fatalf("expected one threshold entry, got %+v", entries)
	}
	if e.Status().PumpOn {
		t.Fatal("custom rules must not drive the pump")
	}
}

func TestEngineNotify(t *testing.T) {
	em := &recordingEmitter{}
	e, log := newTestEngine(&scriptedSource{results: []fetchResult{ok(70, 70)}}, em)

	entry := e.Notify(context.Background(), models.KindInfo, "Relatório", "resumo")
	if entry.ID == "" || log.Len() != 1 || em.calls.Load() != 1 {
		t.Fatal("expected notify to append and emit")
	}
}

func TestEngineLoopPollsOnInterval(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{
		{err: errors.New("connection refused")},
		ok(45, 60),
	}}
	log := notify.NewLog(0, notify.ModeMarkRead)
	e := NewEngine(src, nil, log, Config{
		Interval:     20 * time.Millisecond,
		FetchTimeout: time.Second,
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	e.Stop()

	if got := src.calls.Load(); got < 3 {
		t.Fatalf("expected at least 3 scheduled polls, got %d", got)
	}
	entries := log.Entries()
	if got := countKind(entries, models.KindInfo); got != 1 {
		t.Fatalf("expected 1 info entry, got %d", got)
	}
	if got := countKind(entries, models.KindSoilDry); got != 1 {
		t.Fatalf("expected 1 soil notification, got %d", got)
	}
	if got := countKind(entries, models.KindPumpOn); got != 1 {
		t.Fatalf("expected 1 pump on, got %d", got)
	}
}

func TestEnginePumpPushBodyDiffersFromLog(t *testing.T) {
	src := &scriptedSource{results: []fetchResult{ok(45, 60), ok(60, 60)}}
	em := &recordingEmitter{}
	e, log := newTestEngine(src, em)

	runTicks(t, e, 2)

	wantBodies := map[string]string{
		"Bomba Ligada":    "A bomba foi ligada.",
		"Bomba Desligada": "A bomba foi desligada.",
	}
	for i, title := range em.titles {
		if want, found := wantBodies[title]; found && em.bodies[i] != want {
			t.Fatalf("%s: expected push body %q, got %q", title, want, em.bodies[i])
		}
	}

	texts := map[models.NotificationKind]string{}
	for _, entry := range log.Entries() {
		texts[entry.Kind] = entry.Text
	}
	if texts[models.KindPumpOn] != "Bomba acionada automaticamente." || texts[models.KindPumpOff] != "Bomba desligada." {
		t.Fatalf("unexpected log texts %v", texts)
	}
	if em.bodies[0] != "Umidade do solo 45%, abaixo de 50%." {
		t.Fatalf("rule events must push their log text, got %q", em.bodies[0])
	}
}

package engine

import (
	"sync"

	"agromonitor/internal/automation"
	"agromonitor/internal/models"
)

// AlertState is the per-rule edge state
type AlertState string

const (
	StateNormal    AlertState = "normal"
	StateTriggered AlertState = "triggered"
)

const (
	pumpOnTitle  = "Bomba Ligada"
	pumpOnText   = "Bomba acionada automaticamente."
	pumpOffTitle = "Bomba Desligada"
	pumpOffText  = "Bomba desligada."
	pumpOnPush   = "A bomba foi ligada."
	pumpOffPush  = "A bomba foi desligada."
)

// Event is a notification produced by a state transition
type Event struct {
	Kind  models.NotificationKind
	Title string
	// Text is what the log keeps
	Text string
	// Push is the emitted body; empty means Text
	Push string
}

func (e Event) body() string {
	if e.Push != "" {
		return e.Push
	}
	return e.Text
}

// Tracker holds alert state per rule and the inferred pump state
type Tracker struct {
	mu     sync.Mutex
	states map[string]AlertState
	pump   map[string]bool // rule names that drive the pump
	pumpOn bool
}

// NewTracker creates a tracker with every rule Normal and the pump off
func NewTracker(rules []automation.ThresholdRule) *Tracker {
	t := &Tracker{
		states: make(map[string]AlertState, len(rules)),
		pump:   make(map[string]bool),
	}
	for _, r := range rules {
		t.states[r.Name] = StateNormal
		if r.DrivesPump {
			t.pump[r.Name] = true
		}
	}
	return t
}

// Observe applies an evaluation and returns the events for the edges it
// caused. Rule events come first, in rule order, followed by at most one pump
// event. A sensor failure changes nothing.
func (t *Tracker) Observe(ev automation.Evaluation) []Event {
	if ev.SensorFailure {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var events []Event
	for _, o := range ev.Outcomes {
		prev, ok := t.states[o.Rule.Name]
		if !ok {
			continue
		}
		switch {
		case o.Status == automation.StatusViolated && prev == StateNormal:
			t.states[o.Rule.Name] = StateTriggered
			events = append(events, Event{
				Kind:  o.Rule.Kind,
				Title: o.Rule.Title,
				Text:  o.Rule.Message(o.Value),
			})
		case o.Status == automation.StatusOK && prev == StateTriggered:
			// recovery is silent
			t.states[o.Rule.Name] = StateNormal
		}
	}

	pumpOn := false
	for name := range t.pump {
		if t.states[name] == StateTriggered {
			pumpOn = true
			break
		}
	}
	if pumpOn != t.pumpOn {
		t.pumpOn = pumpOn
		if pumpOn {
			events = append(events, Event{Kind: models.KindPumpOn, Title: pumpOnTitle, Text: pumpOnText, Push: pumpOnPush})
		} else {
			events = append(events, Event{Kind: models.KindPumpOff, Title: pumpOffTitle, Text: pumpOffText, Push: pumpOffPush})
		}
	}
	return events
}

// Reset returns every rule to Normal and the pump to off without emitting
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name := range t.states {
		t.states[name] = StateNormal
	}
	t.pumpOn = false
}

// Snapshot returns a copy of the per-rule states
func (t *Tracker) Snapshot() map[string]AlertState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]AlertState, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

// PumpOn reports the inferred pump state
func (t *Tracker) PumpOn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pumpOn
}

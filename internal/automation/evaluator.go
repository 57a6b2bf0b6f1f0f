package automation

import (
	"agromonitor/internal/models"
)

// Status is the result of checking one rule against one reading
type Status int

const (
	StatusUnknown Status = iota
	StatusOK
	StatusViolated
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusViolated:
		return "violated"
	}
	return "unknown"
}

// Outcome pairs a rule with its status and the observed value
type Outcome struct {
	Rule   ThresholdRule
	Status Status
	Value  float64
}

// Evaluation is the result of checking a reading against the whole rule table.
// When SensorFailure is set, Outcomes is empty.
type Evaluation struct {
	SensorFailure bool
	Missing       []models.Metric
	Outcomes      []Outcome
}

// Violations returns the outcomes whose value is below the rule minimum
func (e Evaluation) Violations() []Outcome {
	var out []Outcome
	for _, o := range e.Outcomes {
		if o.Status == StatusViolated {
			out = append(out, o)
		}
	}
	return out
}

// Evaluate checks reading against rules. Comparison is strict: a value equal
// to the minimum passes.
func Evaluate(reading models.SensorReading, rules []ThresholdRule) Evaluation {
	var missing []models.Metric
	for _, r := range rules {
		if !r.Required {
			continue
		}
		if _, ok := reading.Value(r.Metric); !ok {
			missing = append(missing, r.Metric)
		}
	}
	if len(missing) > 0 {
		return Evaluation{SensorFailure: true, Missing: missing}
	}

	outcomes := make([]Outcome, 0, len(rules))
	for _, r := range rules {
		v, ok := reading.Value(r.Metric)
		switch {
		case !ok:
			outcomes = append(outcomes, Outcome{Rule: r, Status: StatusUnknown})
		case v < r.Min:
			outcomes = append(outcomes, Outcome{Rule: r, Status: StatusViolated, Value: v})
		default:
			outcomes = append(outcomes, Outcome{Rule: r, Status: StatusOK, Value: v})
		}
	}
	return Evaluation{Outcomes: outcomes}
}

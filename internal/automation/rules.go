package automation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"agromonitor/internal/models"
)

// DefaultThreshold is the minimum soil moisture and air humidity, in percent
const DefaultThreshold = 50.0

var ErrInvalidRule = errors.New("invalid threshold rule")

// ThresholdRule fires when the value of Metric drops strictly below Min
type ThresholdRule struct {
	Name   string
	Metric models.Metric
	Min    float64
	Kind   models.NotificationKind

	// Required rules turn a missing value into a sensor failure
	Required bool
	// DrivesPump rules take part in pump inference
	DrivesPump bool

	Title string
	Label string
	Unit  string
}

// Message renders the notification body for a violating value
func (r ThresholdRule) Message(value float64) string {
	return fmt.Sprintf("%s %s%s, abaixo de %s%s.",
		r.Label, formatValue(value), r.Unit, formatValue(r.Min), r.Unit)
}

// DefaultRules returns the soil moisture and air humidity rules
func DefaultRules(soilMin, airMin float64) []ThresholdRule {
	return []ThresholdRule{
		{
			Name:       "soil_moisture",
			Metric:     models.MetricSoilMoisture,
			Min:        soilMin,
			Kind:       models.KindSoilDry,
			Required:   true,
			DrivesPump: true,
			Title:      "Solo Seco",
			Label:      "Umidade do solo",
			Unit:       "%",
		},
		{
			Name:       "air_humidity",
			Metric:     models.MetricAirHumidity,
			Min:        airMin,
			Kind:       models.KindAirDry,
			Required:   true,
			DrivesPump: true,
			Title:      "Ar Seco",
			Label:      "Umidade do ar",
			Unit:       "%",
		},
	}
}

// Custom builds an optional rule that notifies but never drives the pump
func Custom(name string, metric models.Metric, min float64) ThresholdRule {
	return ThresholdRule{
		Name:   name,
		Metric: metric,
		Min:    min,
		Kind:   models.KindThreshold,
		Title:  "Limite Atingido",
		Label:  name,
	}
}

// ParseRule parses a "name:metric:min" definition into a custom rule
func ParseRule(def string) (ThresholdRule, error) {
	parts := strings.Split(strings.TrimSpace(def), ":")
	if len(parts) != 3 {
		return ThresholdRule{}, fmt.Errorf("%w: %q: expected name:metric:min", ErrInvalidRule, def)
	}

	name := strings.TrimSpace(parts[0])
	metric := models.Metric(strings.TrimSpace(parts[1]))
	min, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return ThresholdRule{}, fmt.Errorf("%w: %q: bad minimum: %v", ErrInvalidRule, def, err)
	}
	if name == "" {
		return ThresholdRule{}, fmt.Errorf("%w: %q: empty name", ErrInvalidRule, def)
	}
	if !metric.Known() {
		return ThresholdRule{}, fmt.Errorf("%w: %q: unknown metric %q", ErrInvalidRule, def, metric)
	}
	return Custom(name, metric, min), nil
}

// BuildRules returns the default rules followed by the parsed custom ones
func BuildRules(soilMin, airMin float64, custom []string) ([]ThresholdRule, error) {
	rules := DefaultRules(soilMin, airMin)
	for _, def := range custom {
		if strings.TrimSpace(def) == "" {
			continue
		}
		r, err := ParseRule(def)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// ValidateRules checks names are unique, metrics known and pump rules required
func ValidateRules(rules []ThresholdRule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: empty rule table", ErrInvalidRule)
	}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return fmt.Errorf("%w: rule without name", ErrInvalidRule)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: duplicate rule %q", ErrInvalidRule, r.Name)
		}
		seen[r.Name] = true
		if !r.Metric.Known() {
			return fmt.Errorf("%w: rule %q: unknown metric %q", ErrInvalidRule, r.Name, r.Metric)
		}
		if r.DrivesPump && !r.Required {
			return fmt.Errorf("%w: rule %q drives the pump but is optional", ErrInvalidRule, r.Name)
		}
		if !r.Kind.Valid() {
			return fmt.Errorf("%w: rule %q: unknown kind %q", ErrInvalidRule, r.Name, r.Kind)
		}
	}
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package alert

import (
	"fmt"
	"strconv"

	"github.com/M-Affan01/HealthMonitor/internal/domain/threshold"
	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
)

type comparison int

const (
	below comparison = iota
	above
)

// rule is one predicate -> outcome entry. A value matches when it is
// strictly below (or above) the bound.
type rule struct {
	cmp      comparison
	bound    func(*threshold.Config) float64
	severity Severity
	label    string
}

func (r rule) matches(v float64, cfg *threshold.Config) bool {
	if r.cmp == below {
		return v < r.bound(cfg)
	}
	return v > r.bound(cfg)
}

// channel is one measured field and its ordered rules. The first matching
// rule produces the channel's only finding.
type channel struct {
	metric Metric
	value  func(*vitals.Measurement) *float64
	unit   func(string) string
	rules  []rule
}

func suffix(s string) func(string) string {
	return func(v string) string { return v + s }
}

// Rule order and asymmetry are deliberate: systolic and temperature have no
// low advisory tier, diastolic has no advisory tier at all and oxygen has
// no maximum side.
var channels = []channel{
	{
		metric: MetricHeartRate,
		value:  func(m *vitals.Measurement) *float64 { return m.HeartRate },
		unit:   suffix(" bpm"),
		rules: []rule{
			{below, func(c *threshold.Config) float64 { return c.HeartRateMinCritical }, SeverityCritical, "Critical low heart rate"},
			{below, func(c *threshold.Config) float64 { return c.HeartRateMinLow }, SeverityHigh, "Low heart rate"},
			{above, func(c *threshold.Config) float64 { return c.HeartRateMaxCritical }, SeverityCritical, "Critical high heart rate"},
			{above, func(c *threshold.Config) float64 { return c.HeartRateMaxLow }, SeverityHigh, "High heart rate"},
		},
	},
	{
		metric: MetricBloodPressure,
		value:  func(m *vitals.Measurement) *float64 { return m.BloodPressureSystolic },
		unit:   suffix(" mmHg"),
		rules: []rule{
			{below, func(c *threshold.Config) float64 { return c.BPSystolicMinCritical }, SeverityCritical, "Critical low systolic BP"},
			{above, func(c *threshold.Config) float64 { return c.BPSystolicMaxCritical }, SeverityCritical, "Critical high systolic BP"},
			{above, func(c *threshold.Config) float64 { return c.BPSystolicMaxLow }, SeverityHigh, "High systolic BP"},
		},
	},
	{
		metric: MetricBloodPressure,
		value:  func(m *vitals.Measurement) *float64 { return m.BloodPressureDiastolic },
		unit:   suffix(" mmHg"),
		rules: []rule{
			{below, func(c *threshold.Config) float64 { return c.BPDiastolicMinCritical }, SeverityCritical, "Critical low diastolic BP"},
			{above, func(c *threshold.Config) float64 { return c.BPDiastolicMaxCritical }, SeverityCritical, "Critical high diastolic BP"},
		},
	},
	{
		metric: MetricTemperature,
		value:  func(m *vitals.Measurement) *float64 { return m.Temperature },
		unit:   suffix("°C"),
		rules: []rule{
			{below, func(c *threshold.Config) float64 { return c.TempMinCritical }, SeverityCritical, "Critical low temperature"},
			{above, func(c *threshold.Config) float64 { return c.TempMaxCritical }, SeverityCritical, "Critical high temperature"},
			{above, func(c *threshold.Config) float64 { return c.TempMaxLow }, SeverityHigh, "High temperature"},
		},
	},
	{
		metric: MetricOxygen,
		value:  func(m *vitals.Measurement) *float64 { return m.OxygenSaturation },
		unit:   suffix("%"),
		rules: []rule{
			{below, func(c *threshold.Config) float64 { return c.OxygenMinCritical }, SeverityCritical, "Critical low SpO2"},
			{below, func(c *threshold.Config) float64 { return c.OxygenMinLow }, SeverityHigh, "Low SpO2"},
		},
	},
	{
		metric: MetricGlucose,
		value:  func(m *vitals.Measurement) *float64 { return m.BloodGlucose },
		unit:   suffix(" mg/dL"),
		rules: []rule{
			{below, func(c *threshold.Config) float64 { return c.GlucoseMinCritical }, SeverityCritical, "Critical low blood glucose"},
			{above, func(c *threshold.Config) float64 { return c.GlucoseMaxCritical }, SeverityCritical, "Critical high blood glucose"},
			{above, func(c *threshold.Config) float64 { return c.GlucoseMaxLow }, SeverityHigh, "High blood glucose"},
		},
	},
}

// Evaluate classifies a measurement against cfg. It yields at most one
// finding per channel, in channel order, and never fails: a malformed
// configuration only changes which rules can match.
func Evaluate(m *vitals.Measurement, cfg *threshold.Config) []Finding {
	var findings []Finding
	for _, ch := range channels {
		v := ch.value(m)
		if v == nil {
			continue
		}
		for _, r := range ch.rules {
			if !r.matches(*v, cfg) {
				continue
			}
			findings = append(findings, Finding{
				Metric:           ch.metric,
				Severity:         r.severity,
				Message:          fmt.Sprintf("%s: %s", r.label, ch.unit(formatValue(*v))),
				Value:            *v,
				ThresholdCrossed: r.bound(cfg),
			})
			break
		}
	}
	return findings
}

// formatValue renders the shortest decimal that round-trips: 165, 38.5.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

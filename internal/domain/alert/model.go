package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
)

type Metric string

const (
	MetricHeartRate     Metric = "HEART_RATE"
	MetricBloodPressure Metric = "BLOOD_PRESSURE"
	MetricTemperature   Metric = "TEMPERATURE"
	MetricOxygen        Metric = "OXYGEN"
	MetricGlucose       Metric = "GLUCOSE"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity accepts the upper-case wire names and rejects anything else.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	}
	return "", apperr.Validation("unknown severity %q", s)
}

type Status string

const (
	StatusActive       Status = "ACTIVE"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusResolved     Status = "RESOLVED"
)

// ParseStatus accepts the upper-case wire names and rejects anything else.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusAcknowledged, StatusResolved:
		return st, nil
	}
	return "", apperr.Validation("unknown status %q", s)
}

// Alert is one detected out-of-band condition. Severity, message, value and
// threshold are fixed at creation; only the status fields change.
type Alert struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patientId"`
	VitalsID       *uuid.UUID `json:"vitalsId,omitempty"`
	Metric         Metric     `json:"type"`
	Severity       Severity   `json:"severity"`
	Status         Status     `json:"status"`
	Message        string     `json:"message"`
	Value          float64    `json:"value"`
	Threshold      float64    `json:"threshold"`
	AcknowledgedBy *string    `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Finding is the evaluator's output for one metric of one measurement.
type Finding struct {
	Metric           Metric   `json:"metric"`
	Severity         Severity `json:"severity"`
	Message          string   `json:"message"`
	Value            float64  `json:"value"`
	ThresholdCrossed float64  `json:"thresholdCrossed"`
}

// New builds the alert for a finding. Alerts always start ACTIVE.
func New(patientID uuid.UUID, vitalsID *uuid.UUID, f Finding) *Alert {
	return &Alert{
		PatientID: patientID,
		VitalsID:  vitalsID,
		Metric:    f.Metric,
		Severity:  f.Severity,
		Status:    StatusActive,
		Message:   f.Message,
		Value:     f.Value,
		Threshold: f.ThresholdCrossed,
	}
}

package vitals

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
)

// MaxClockSkew is how far past the server clock a reported recordedAt may
// be before the reading is rejected.
const MaxClockSkew = 5 * time.Minute

// Measurement is one immutable vitals reading. Every metric is optional;
// absent metrics are not evaluated.
type Measurement struct {
	ID                     uuid.UUID `json:"id"`
	PatientID              uuid.UUID `json:"patientId"`
	HeartRate              *float64  `json:"heartRate,omitempty"`
	BloodPressureSystolic  *float64  `json:"bloodPressureSystolic,omitempty"`
	BloodPressureDiastolic *float64  `json:"bloodPressureDiastolic,omitempty"`
	Temperature            *float64  `json:"temperature,omitempty"`
	OxygenSaturation       *float64  `json:"oxygenSaturation,omitempty"`
	RespiratoryRate        *float64  `json:"respiratoryRate,omitempty"`
	BloodGlucose           *float64  `json:"bloodGlucose,omitempty"`
	Weight                 *float64  `json:"weight,omitempty"`
	Height                 *float64  `json:"height,omitempty"`
	Notes                  *string   `json:"notes,omitempty"`
	RecordedBy             string    `json:"recordedBy,omitempty"`
	RecordedAt             time.Time `json:"recordedAt"`
}

// Validate checks the fields required before a reading can be stored.
func (m *Measurement) Validate() error {
	if m.PatientID == uuid.Nil {
		return apperr.Validation("patientId is required")
	}
	fields := []struct {
		name string
		v    *float64
	}{
		{"heartRate", m.HeartRate},
		{"bloodPressureSystolic", m.BloodPressureSystolic},
		{"bloodPressureDiastolic", m.BloodPressureDiastolic},
		{"temperature", m.Temperature},
		{"oxygenSaturation", m.OxygenSaturation},
		{"respiratoryRate", m.RespiratoryRate},
		{"bloodGlucose", m.BloodGlucose},
		{"weight", m.Weight},
		{"height", m.Height},
	}
	for _, f := range fields {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			return apperr.Validation("%s must be a finite number", f.name)
		}
	}
	return nil
}

// Stamp fixes RecordedAt against the server clock. A zero value becomes now;
// a value more than MaxClockSkew ahead of now is rejected. Backdated
// readings are kept.
func (m *Measurement) Stamp(now time.Time) error {
	if m.RecordedAt.IsZero() {
		m.RecordedAt = now.UTC()
		return nil
	}
	if m.RecordedAt.After(now.Add(MaxClockSkew)) {
		return apperr.Validation("recordedAt %s is in the future", m.RecordedAt.Format(time.RFC3339))
	}
	m.RecordedAt = m.RecordedAt.UTC()
	return nil
}

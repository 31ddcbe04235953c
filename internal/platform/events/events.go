// Package events carries engine notifications (alert created, alert status
// changed, risk updated, thresholds updated, patient deactivated) to live
// subscribers and downstream systems. Publishing happens after the
// originating transaction commits; failures are logged and never undo
// engine state.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	AlertCreated       = "alert.created"
	AlertStatusChanged = "alert.status_changed"
	RiskUpdated        = "risk.updated"
	ThresholdsUpdated  = "thresholds.updated"
	PatientDeactivated = "patient.deactivated"
)

// Websocket topics.
const (
	TopicAlerts     = "alerts"
	TopicThresholds = "thresholds"
	patientPrefix   = "patient:"
)

// PatientTopic returns the topic carrying every event for one patient.
func PatientTopic(patientID string) string {
	return patientPrefix + patientID
}

// Event is the envelope shared by all transports.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	PatientID string          `json:"patientId,omitempty"`
	DoctorID  string          `json:"doctorId,omitempty"`
	Severity  string          `json:"severity,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// New builds an event with a fresh id and the JSON encoding of data.
func New(typ string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// ForPatient attaches the owning patient and attending doctor.
func (e Event) ForPatient(patientID string, doctorID *string) Event {
	e.PatientID = patientID
	if doctorID != nil {
		e.DoctorID = *doctorID
	}
	return e
}

// Topics lists the websocket topics the event is delivered to.
func (e Event) Topics() []string {
	var topics []string
	switch e.Type {
	case AlertCreated, AlertStatusChanged:
		topics = append(topics, TopicAlerts)
	case ThresholdsUpdated:
		topics = append(topics, TopicThresholds)
	}
	if e.PatientID != "" {
		topics = append(topics, PatientTopic(e.PatientID))
	}
	return topics
}

// Publisher delivers an event to one destination.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout delivers each event to every configured publisher. A failing
// publisher is logged and does not stop delivery to the others.
type Fanout struct {
	publishers []Publisher
	logger     zerolog.Logger
}

func NewFanout(logger zerolog.Logger, publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers, logger: logger}
}

// Add registers another destination. Not safe for use once publishing has
// started.
func (f *Fanout) Add(p Publisher) {
	f.publishers = append(f.publishers, p)
}

func (f *Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.Warn().Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.Type).
				Str("publisher", fmt.Sprintf("%T", p)).
				Msg("event publish failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package monitoring is the engine's entry point. It runs ingestion, alert
// transitions, risk recomputation and threshold administration as single
// units of work and announces their results once committed.
package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/M-Affan01/HealthMonitor/internal/domain/alert"
	"github.com/M-Affan01/HealthMonitor/internal/domain/patient"
	"github.com/M-Affan01/HealthMonitor/internal/domain/risk"
	"github.com/M-Affan01/HealthMonitor/internal/domain/threshold"
	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
	"github.com/M-Affan01/HealthMonitor/internal/platform/auth"
	"github.com/M-Affan01/HealthMonitor/internal/platform/db"
	"github.com/M-Affan01/HealthMonitor/internal/platform/events"
	"github.com/M-Affan01/HealthMonitor/internal/platform/metrics"
)

// DefaultListDays is the trailing window used by listings when the caller
// gives none.
const DefaultListDays = 7

// Recomputer refreshes a patient's risk snapshot, joining the caller's
// transaction when there is one.
type Recomputer interface {
	Recompute(ctx context.Context, patientID uuid.UUID) (*risk.Snapshot, error)
}

// Deps are the collaborators of a Service. Publisher, Metrics and TxRunner
// are optional.
type Deps struct {
	Patients   patient.Repository
	Vitals     vitals.Repository
	Alerts     alert.Repository
	Thresholds *threshold.Store
	Risk       Recomputer
	Tx         db.TxRunner
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

type Service struct {
	patients   patient.Repository
	vitals     vitals.Repository
	alerts     alert.Repository
	thresholds *threshold.Store
	risk       Recomputer
	tx         db.TxRunner
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	locks      *patientLocks
	now        func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		patients:   d.Patients,
		vitals:     d.Vitals,
		alerts:     d.Alerts,
		thresholds: d.Thresholds,
		risk:       d.Risk,
		tx:         d.Tx,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		logger:     d.Logger.With().Str("component", "monitoring").Logger(),
		locks:      newPatientLocks(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.tx == nil {
		s.tx = db.NopTxRunner{}
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	return s
}

// IngestResult is what one ingestion produced.
type IngestResult struct {
	Vitals *vitals.Measurement `json:"vitals"`
	Alerts []*alert.Alert      `json:"alerts"`
	Risk   *risk.Snapshot      `json:"risk"`
}

// Ingest stores a reading, evaluates it against the current thresholds,
// creates one ACTIVE alert per finding and refreshes the patient's risk,
// all in one transaction. RecordedBy is always the acting identity and
// readings dated in the future are rejected.
func (s *Service) Ingest(ctx context.Context, actor auth.Actor, m *vitals.Measurement) (*IngestResult, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := m.Stamp(s.now()); err != nil {
		return nil, err
	}
	m.RecordedBy = actor.ID

	unlock := s.locks.Lock(m.PatientID)
	defer unlock()

	var (
		p   *patient.Patient
		res = &IngestResult{Vitals: m, Alerts: []*alert.Alert{}}
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.patients.GetForUpdate(ctx, m.PatientID); err != nil {
			return err
		}
		if !actor.CanAccessPatient(p.DoctorID) {
			return apperr.AccessDenied("patient is not attended by this doctor")
		}
		if err := s.vitals.Create(ctx, m); err != nil {
			return err
		}

		cfg, err := s.thresholds.Get(ctx)
		if err != nil {
			return err
		}
		for _, f := range alert.Evaluate(m, cfg) {
			a := alert.New(p.ID, &m.ID, f)
			if err := s.alerts.Create(ctx, a); err != nil {
				return err
			}
			res.Alerts = append(res.Alerts, a)
		}

		res.Risk, err = s.risk.Recompute(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.VitalsIngested()
	for _, a := range res.Alerts {
		s.metrics.AlertCreated(string(a.Metric), string(a.Severity))
		s.logger.Info().
			Str("alert_id", a.ID.String()).
			Str("patient_id", p.ID.String()).
			Str("metric", string(a.Metric)).
			Str("severity", string(a.Severity)).
			Msg(a.Message)
		s.publish(ctx, events.AlertCreated, p, string(a.Severity), a)
	}
	s.publish(ctx, events.RiskUpdated, p, "", res.Risk)
	return res, nil
}

// TransitionAlert moves an alert along its lifecycle and refreshes the
// owning patient's risk.
func (s *Service) TransitionAlert(ctx context.Context, actor auth.Actor, alertID uuid.UUID, to alert.Status) (*alert.Alert, error) {
	// The owner never changes, so it is safe to read it before locking.
	current, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(current.PatientID)
	defer unlock()

	var (
		a    *alert.Alert
		p    *patient.Patient
		snap *risk.Snapshot
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.alerts.GetByID(ctx, alertID); err != nil {
			return err
		}
		if p, err = s.patients.GetByID(ctx, a.PatientID); err != nil {
			return err
		}
		if !actor.CanAccessPatient(p.DoctorID) {
			return apperr.AccessDenied("alert belongs to a patient not attended by this doctor")
		}
		if err := a.Transition(to, actor.ID, s.now()); err != nil {
			return err
		}
		if err := s.alerts.UpdateStatus(ctx, a); err != nil {
			return err
		}
		snap, err = s.risk.Recompute(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AlertTransitioned(string(a.Status))
	s.logger.Info().
		Str("alert_id", a.ID.String()).
		Str("patient_id", p.ID.String()).
		Str("status", string(a.Status)).
		Str("actor", actor.ID).
		Msg("alert transitioned")
	s.publish(ctx, events.AlertStatusChanged, p, string(a.Severity), a)
	s.publish(ctx, events.RiskUpdated, p, "", snap)
	return a, nil
}

// RecomputeRisk refreshes one patient's snapshot on demand.
func (s *Service) RecomputeRisk(ctx context.Context, actor auth.Actor, patientID uuid.UUID) (*risk.Snapshot, error) {
	p, err := s.GetPatient(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(patientID)
	defer unlock()

	snap, err := s.risk.Recompute(ctx, patientID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.RiskUpdated, p, "", snap)
	return snap, nil
}

func (s *Service) GetThresholds(ctx context.Context) (*threshold.Config, error) {
	return s.thresholds.Get(ctx)
}

// UpdateThresholds applies a partial update. Only administrators may
// change thresholds.
func (s *Service) UpdateThresholds(ctx context.Context, actor auth.Actor, patch threshold.Patch) (*threshold.Config, error) {
	if !actor.IsAdmin() {
		return nil, apperr.AccessDenied("threshold changes require the admin role")
	}

	var cfg *threshold.Config
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		cfg, err = s.thresholds.Update(ctx, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("actor", actor.ID).Msg("thresholds updated")
	s.publish(ctx, events.ThresholdsUpdated, nil, "", cfg)
	return cfg, nil
}

// GetPatient returns the patient with its current risk snapshot.
func (s *Service) GetPatient(ctx context.Context, actor auth.Actor, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessPatient(p.DoctorID) {
		return nil, apperr.AccessDenied("patient is not attended by this doctor")
	}
	return p, nil
}

// CreatePatient registers a patient. Risk starts at zero and is only ever
// written by recomputation.
func (s *Service) CreatePatient(ctx context.Context, actor auth.Actor, p *patient.Patient) error {
	if !actor.IsAdmin() {
		return apperr.AccessDenied("registering patients requires the admin role")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.RiskScore, p.RiskLevel = 0, patient.RiskLow
	return s.patients.Create(ctx, p)
}

// ListVitals returns a patient's readings from the trailing days, newest
// first.
func (s *Service) ListVitals(ctx context.Context, actor auth.Actor, patientID uuid.UUID, days int) ([]*vitals.Measurement, error) {
	if _, err := s.GetPatient(ctx, actor, patientID); err != nil {
		return nil, err
	}
	return s.vitals.ListByPatientSince(ctx, patientID, s.since(days))
}

// ListAlerts returns alerts from the trailing days matching f, newest
// first. Doctors only ever see alerts of patients they attend.
func (s *Service) ListAlerts(ctx context.Context, actor auth.Actor, f alert.ListFilter, days int) ([]*alert.Alert, int, error) {
	if f.PatientID != nil {
		if _, err := s.GetPatient(ctx, actor, *f.PatientID); err != nil {
			return nil, 0, err
		}
	}
	doctorID, err := doctorScope(actor)
	if err != nil {
		return nil, 0, err
	}
	f.DoctorID = doctorID
	f.Since = s.since(days)
	return s.alerts.List(ctx, f)
}

// ListPatients returns active patients with their risk snapshot, newest
// first. Doctors see only the patients they attend.
func (s *Service) ListPatients(ctx context.Context, actor auth.Actor, limit, offset int) ([]*patient.Patient, int, error) {
	doctorID, err := doctorScope(actor)
	if err != nil {
		return nil, 0, err
	}
	return s.patients.List(ctx, patient.ListFilter{DoctorID: doctorID, Limit: limit, Offset: offset})
}

// DeactivatePatient soft-deletes a patient. Readings and alerts are kept
// and the patient drops out of listings, analytics and risk sweeps.
func (s *Service) DeactivatePatient(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	var p *patient.Patient
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.patients.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if !actor.CanAccessPatient(p.DoctorID) {
			return apperr.AccessDenied("patient is not attended by this doctor")
		}
		return s.patients.Deactivate(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("patient_id", id.String()).Str("actor", actor.ID).Msg("patient deactivated")
	p.IsActive = false
	s.publish(ctx, events.PatientDeactivated, p, "", p)
	return nil
}

// doctorScope returns the doctor filter for listings: nil for
// administrators, the doctor's own id for doctors.
func doctorScope(actor auth.Actor) (*string, error) {
	if actor.IsAdmin() {
		return nil, nil
	}
	if actor.Role != auth.RoleDoctor || actor.ID == "" {
		return nil, apperr.AccessDenied("requires the doctor or admin role")
	}
	id := actor.ID
	return &id, nil
}

func (s *Service) since(days int) time.Time {
	if days <= 0 {
		days = DefaultListDays
	}
	return s.now().AddDate(0, 0, -days)
}

// publish announces a committed change. Delivery failures are logged by
// the publisher and never reach the caller.
func (s *Service) publish(ctx context.Context, typ string, p *patient.Patient, severity string, data interface{}) {
	e, err := events.New(typ, data)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", typ).Msg("building event")
		return
	}
	if p != nil {
		e = e.ForPatient(p.ID.String(), p.DoctorID)
	}
	e.Severity = severity
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Debug().Err(err).Str("event_type", typ).Msg("event delivery incomplete")
	}
}

package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/M-Affan01/HealthMonitor/internal/domain/alert"
	"github.com/M-Affan01/HealthMonitor/internal/domain/patient"
	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
	"github.com/M-Affan01/HealthMonitor/internal/platform/db"
	"github.com/M-Affan01/HealthMonitor/internal/platform/metrics"
)

// Snapshot is the risk state written onto a patient.
type Snapshot struct {
	PatientID  uuid.UUID         `json:"patientId"`
	Score      int               `json:"riskScore"`
	Level      patient.RiskLevel `json:"riskLevel"`
	Alerts     int               `json:"windowAlerts"`
	Readings   int               `json:"windowReadings"`
	ComputedAt time.Time         `json:"computedAt"`
}

// Scorer recomputes and persists patient risk snapshots. It does not
// serialize callers itself; the orchestrator holds the per-patient lock.
type Scorer struct {
	patients patient.Repository
	vitals   vitals.Repository
	alerts   alert.Repository
	tx       db.TxRunner
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewScorer(p patient.Repository, v vitals.Repository, a alert.Repository,
	tx db.TxRunner, m *metrics.Metrics, logger zerolog.Logger) *Scorer {
	return &Scorer{
		patients: p,
		vitals:   v,
		alerts:   a,
		tx:       tx,
		metrics:  m,
		logger:   logger.With().Str("component", "risk").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Recompute reads the patient's trailing window and overwrites the stored
// snapshot. Called inside an existing transaction it joins it, so alerts
// written earlier in that transaction are counted.
func (s *Scorer) Recompute(ctx context.Context, patientID uuid.UUID) (*Snapshot, error) {
	start := time.Now()
	var snap *Snapshot

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetForUpdate(ctx, patientID); err != nil {
			return err
		}

		now := s.now()
		since := now.Add(-Window)

		alerts, err := s.alerts.ListByPatientSince(ctx, patientID, since)
		if err != nil {
			return err
		}
		// Readings stamped after now do not count towards cadence.
		readings, err := s.vitals.Count(ctx, vitals.CountFilter{PatientID: &patientID, From: since, To: now})
		if err != nil {
			return err
		}

		score, level := Compute(alerts, readings)
		if err := s.patients.UpdateRisk(ctx, patientID, score, level); err != nil {
			return err
		}
		snap = &Snapshot{
			PatientID:  patientID,
			Score:      score,
			Level:      level,
			Alerts:     len(alerts),
			Readings:   readings,
			ComputedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RiskRecomputed(string(snap.Level), time.Since(start))
	s.logger.Debug().
		Str("patient_id", patientID.String()).
		Int("score", snap.Score).
		Str("level", string(snap.Level)).
		Int("window_alerts", snap.Alerts).
		Int("window_readings", snap.Readings).
		Msg("risk recomputed")
	return snap, nil
}

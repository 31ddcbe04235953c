package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M-Affan01/HealthMonitor/internal/domain/alert"
	"github.com/M-Affan01/HealthMonitor/internal/domain/patient"
	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
	"github.com/M-Affan01/HealthMonitor/internal/platform/db"
	"github.com/M-Affan01/HealthMonitor/internal/platform/metrics"
)

type mockPatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
	locks    int
}

func (m *mockPatientRepo) Create(_ context.Context, p *patient.Patient) error {
	p.ID = uuid.New()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	m.locks++
	return m.GetByID(ctx, id)
}

func (m *mockPatientRepo) UpdateRisk(_ context.Context, id uuid.UUID, score int, level patient.RiskLevel) error {
	p, ok := m.patients[id]
	if !ok {
		return apperr.NotFound("patient", id)
	}
	p.RiskScore, p.RiskLevel = score, level
	return nil
}

func (m *mockPatientRepo) ListActiveIDs(context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, p := range m.patients {
		if p.IsActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockPatientRepo) List(context.Context, patient.ListFilter) ([]*patient.Patient, int, error) {
	return nil, 0, nil
}

func (m *mockPatientRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	p, ok := m.patients[id]
	if !ok {
		return apperr.NotFound("patient", id)
	}
	p.IsActive = false
	return nil
}

func (m *mockPatientRepo) CountByRiskLevel(context.Context, *string) (map[patient.RiskLevel]int, error) {
	return map[patient.RiskLevel]int{}, nil
}

type mockVitalsRepo struct{ items []*vitals.Measurement }

func (m *mockVitalsRepo) Create(_ context.Context, v *vitals.Measurement) error {
	m.items = append(m.items, v)
	return nil
}

func (m *mockVitalsRepo) ListByPatientSince(_ context.Context, id uuid.UUID, since time.Time) ([]*vitals.Measurement, error) {
	var out []*vitals.Measurement
	for _, v := range m.items {
		if v.PatientID == id && !v.RecordedAt.Before(since) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockVitalsRepo) Count(_ context.Context, f vitals.CountFilter) (int, error) {
	n := 0
	for _, v := range m.items {
		switch {
		case f.PatientID != nil && v.PatientID != *f.PatientID:
		case !f.From.IsZero() && v.RecordedAt.Before(f.From):
		case !f.To.IsZero() && v.RecordedAt.After(f.To):
		default:
			n++
		}
	}
	return n, nil
}

type mockAlertRepo struct{ items []*alert.Alert }

func (m *mockAlertRepo) Create(_ context.Context, a *alert.Alert) error {
	a.ID = uuid.New()
	m.items = append(m.items, a)
	return nil
}

func (m *mockAlertRepo) GetByID(_ context.Context, id uuid.UUID) (*alert.Alert, error) {
	for _, a := range m.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperr.NotFound("alert", id)
}

func (m *mockAlertRepo) UpdateStatus(context.Context, *alert.Alert) error { return nil }

func (m *mockAlertRepo) ListByPatientSince(_ context.Context, id uuid.UUID, since time.Time) ([]*alert.Alert, error) {
	var out []*alert.Alert
	for _, a := range m.items {
		if a.PatientID == id && !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAlertRepo) List(context.Context, alert.ListFilter) ([]*alert.Alert, int, error) {
	return m.items, len(m.items), nil
}

func (m *mockAlertRepo) CountBy(context.Context, alert.ListFilter, alert.GroupBy) (map[string]int, error) {
	return map[string]int{}, nil
}

type fixture struct {
	scorer   *Scorer
	patients *mockPatientRepo
	vitals   *mockVitalsRepo
	alerts   *mockAlertRepo
	metrics  *metrics.Metrics
	now      time.Time
	pid      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		patients: &mockPatientRepo{patients: map[uuid.UUID]*patient.Patient{}},
		vitals:   &mockVitalsRepo{},
		alerts:   &mockAlertRepo{},
		metrics:  metrics.New(),
		now:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	p := &patient.Patient{FirstName: "Ada", LastName: "Lovelace", IsActive: true, RiskLevel: patient.RiskLow}
	require.NoError(t, f.patients.Create(context.Background(), p))
	f.pid = p.ID

	f.scorer = NewScorer(f.patients, f.vitals, f.alerts, db.NopTxRunner{}, f.metrics, zerolog.Nop())
	f.scorer.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addAlert(sev alert.Severity, status alert.Status, age time.Duration) {
	f.alerts.items = append(f.alerts.items, &alert.Alert{
		ID: uuid.New(), PatientID: f.pid, Severity: sev, Status: status, CreatedAt: f.now.Add(-age),
	})
}

func (f *fixture) addReadings(n int, age time.Duration) {
	for i := 0; i < n; i++ {
		f.vitals.items = append(f.vitals.items, &vitals.Measurement{
			ID: uuid.New(), PatientID: f.pid, RecordedAt: f.now.Add(-age),
		})
	}
}

func TestScorer_ClampsAndPersists(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.addAlert(alert.SeverityCritical, alert.StatusActive, time.Hour)
	}

	snap, err := f.scorer.Recompute(context.Background(), f.pid)
	require.NoError(t, err)
	assert.Equal(t, 100, snap.Score)
	assert.Equal(t, patient.RiskCritical, snap.Level)

	stored := f.patients.patients[f.pid]
	assert.Equal(t, 100, stored.RiskScore)
	assert.Equal(t, patient.RiskCritical, stored.RiskLevel)
	assert.Equal(t, 1, f.patients.locks)
}

func TestScorer_CadenceWithoutAlerts(t *testing.T) {
	f := newFixture(t)
	f.patients.patients[f.pid].RiskScore = 40
	f.addReadings(14, 24*time.Hour)

	snap, err := f.scorer.Recompute(context.Background(), f.pid)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, patient.RiskLow, snap.Level)
	assert.Equal(t, 14, snap.Readings)
	assert.Equal(t, 0, f.patients.patients[f.pid].RiskScore)
}

func TestScorer_IgnoresHistoryOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.addAlert(alert.SeverityCritical, alert.StatusActive, 31*24*time.Hour)
	f.addAlert(alert.SeverityHigh, alert.StatusActive, 29*24*time.Hour)
	f.addReadings(14, 40*24*time.Hour)

	snap, err := f.scorer.Recompute(context.Background(), f.pid)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Score)
	assert.Equal(t, 1, snap.Alerts)
	assert.Equal(t, 0, snap.Readings)
}

func TestScorer_UnknownPatient(t *testing.T) {
	f := newFixture(t)
	_, err := f.scorer.Recompute(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestScorer_FutureReadingsEarnNoCadence(t *testing.T) {
	f := newFixture(t)
	f.addAlert(alert.SeverityMedium, alert.StatusActive, time.Hour)
	f.addReadings(13, 24*time.Hour)
	// Readings dated a year ahead stay in any lower-bounded window forever.
	f.addReadings(5, -365*24*time.Hour)

	snap, err := f.scorer.Recompute(context.Background(), f.pid)
	require.NoError(t, err)
	assert.Equal(t, 13, snap.Readings)
	assert.Equal(t, 5, snap.Score, "cadence discount must not apply")
}

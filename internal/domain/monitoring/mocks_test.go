package monitoring

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/M-Affan01/HealthMonitor/internal/domain/alert"
	"github.com/M-Affan01/HealthMonitor/internal/domain/patient"
	"github.com/M-Affan01/HealthMonitor/internal/domain/risk"
	"github.com/M-Affan01/HealthMonitor/internal/domain/threshold"
	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
	"github.com/M-Affan01/HealthMonitor/internal/platform/events"
)

// memDB backs every repository used by the service. Reads return copies
// so callers cannot mutate stored rows without going through a write.
type memDB struct {
	mu         sync.Mutex
	patients   map[uuid.UUID]*patient.Patient
	vitals     []*vitals.Measurement
	alerts     []*alert.Alert
	thresholds *threshold.Config
	riskWrites int
	failAlert  bool
}

func newMemDB() *memDB {
	return &memDB{patients: map[uuid.UUID]*patient.Patient{}}
}

type memPatients struct{ db *memDB }

func (r memPatients) Create(_ context.Context, p *patient.Patient) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	r.db.patients[p.ID] = &cp
	return nil
}

func (r memPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient", id)
	}
	cp := *p
	return &cp, nil
}

func (r memPatients) GetForUpdate(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return r.GetByID(ctx, id)
}

func (r memPatients) UpdateRisk(_ context.Context, id uuid.UUID, score int, level patient.RiskLevel) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.patients[id]
	if !ok {
		return apperr.NotFound("patient", id)
	}
	p.RiskScore, p.RiskLevel = score, level
	r.db.riskWrites++
	return nil
}

func (r memPatients) ListActiveIDs(context.Context) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range r.db.patients {
		if p.IsActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memPatients) List(_ context.Context, f patient.ListFilter) ([]*patient.Patient, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*patient.Patient
	for _, p := range r.db.patients {
		if !p.IsActive || (f.DoctorID != nil && (p.DoctorID == nil || *p.DoctorID != *f.DoctorID)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r memPatients) Deactivate(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.patients[id]
	if !ok {
		return apperr.NotFound("patient", id)
	}
	p.IsActive = false
	return nil
}

func (r memPatients) CountByRiskLevel(_ context.Context, doctorID *string) (map[patient.RiskLevel]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := map[patient.RiskLevel]int{}
	for _, p := range r.db.patients {
		if !p.IsActive || (doctorID != nil && (p.DoctorID == nil || *p.DoctorID != *doctorID)) {
			continue
		}
		out[p.RiskLevel]++
	}
	return out, nil
}

type memVitals struct{ db *memDB }

func (r memVitals) Create(_ context.Context, m *vitals.Measurement) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m.ID = uuid.New()
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	cp := *m
	r.db.vitals = append(r.db.vitals, &cp)
	return nil
}

func (r memVitals) ListByPatientSince(_ context.Context, id uuid.UUID, since time.Time) ([]*vitals.Measurement, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*vitals.Measurement
	for _, m := range r.db.vitals {
		if m.PatientID == id && !m.RecordedAt.Before(since) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

func (r memVitals) Count(_ context.Context, f vitals.CountFilter) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, m := range r.db.vitals {
		switch {
		case f.PatientID != nil && m.PatientID != *f.PatientID:
		case f.DoctorID != nil && !attendedBy(r.db.patients[m.PatientID], *f.DoctorID):
		case !f.From.IsZero() && m.RecordedAt.Before(f.From):
		case !f.To.IsZero() && m.RecordedAt.After(f.To):
		default:
			n++
		}
	}
	return n, nil
}

func attendedBy(p *patient.Patient, doctorID string) bool {
	return p != nil && p.DoctorID != nil && *p.DoctorID == doctorID
}

type memAlerts struct{ db *memDB }

func (r memAlerts) Create(_ context.Context, a *alert.Alert) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failAlert {
		return apperr.Persistence("create alert", errors.New("disk full"))
	}
	a.ID = uuid.New()
	a.CreatedAt, a.UpdatedAt = time.Now().UTC(), time.Now().UTC()
	cp := *a
	r.db.alerts = append(r.db.alerts, &cp)
	return nil
}

func (r memAlerts) GetByID(_ context.Context, id uuid.UUID) (*alert.Alert, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.alerts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("alert", id)
}

func (r memAlerts) UpdateStatus(_ context.Context, a *alert.Alert) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, stored := range r.db.alerts {
		if stored.ID == a.ID {
			cp := *a
			r.db.alerts[i] = &cp
			return nil
		}
	}
	return apperr.NotFound("alert", a.ID)
}

func (r memAlerts) ListByPatientSince(_ context.Context, id uuid.UUID, since time.Time) ([]*alert.Alert, error) {
	return r.filter(func(a *alert.Alert) bool {
		return a.PatientID == id && !a.CreatedAt.Before(since)
	}), nil
}

func (r memAlerts) List(_ context.Context, f alert.ListFilter) ([]*alert.Alert, int, error) {
	r.db.mu.Lock()
	doctorOf := map[uuid.UUID]*string{}
	for id, p := range r.db.patients {
		doctorOf[id] = p.DoctorID
	}
	r.db.mu.Unlock()

	items := r.filter(func(a *alert.Alert) bool {
		switch {
		case f.PatientID != nil && a.PatientID != *f.PatientID:
			return false
		case f.Status != nil && a.Status != *f.Status:
			return false
		case f.Severity != nil && a.Severity != *f.Severity:
			return false
		case a.CreatedAt.Before(f.Since):
			return false
		case f.DoctorID != nil:
			d := doctorOf[a.PatientID]
			return d != nil && *d == *f.DoctorID
		}
		return true
	})
	total := len(items)
	if f.Offset < len(items) {
		items = items[f.Offset:]
	} else {
		items = nil
	}
	if f.Limit > 0 && len(items) > f.Limit {
		items = items[:f.Limit]
	}
	return items, total, nil
}

func (r memAlerts) CountBy(ctx context.Context, f alert.ListFilter, by alert.GroupBy) (map[string]int, error) {
	f.Limit, f.Offset = 0, 0
	items, _, err := r.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, a := range items {
		switch by {
		case alert.GroupBySeverity:
			out[string(a.Severity)]++
		case alert.GroupByMetric:
			out[string(a.Metric)]++
		case alert.GroupByStatus:
			out[string(a.Status)]++
		default:
			return nil, apperr.Validation("cannot group alerts by %q", by)
		}
	}
	return out, nil
}

func (r memAlerts) filter(keep func(*alert.Alert) bool) []*alert.Alert {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*alert.Alert
	for _, a := range r.db.alerts {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

type memThresholds struct{ db *memDB }

func (r memThresholds) Get(context.Context) (*threshold.Config, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.thresholds == nil {
		return nil, apperr.NotFound("threshold config", 1)
	}
	cp := *r.db.thresholds
	return &cp, nil
}

func (r memThresholds) GetForUpdate(ctx context.Context) (*threshold.Config, error) {
	return r.Get(ctx)
}

func (r memThresholds) CreateIfAbsent(_ context.Context, c *threshold.Config) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.thresholds == nil {
		cp := *c
		cp.UpdatedAt = time.Now()
		r.db.thresholds = &cp
	}
	return nil
}

func (r memThresholds) Save(_ context.Context, c *threshold.Config) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c.UpdatedAt = time.Now()
	cp := *c
	r.db.thresholds = &cp
	return nil
}

// countingRecomputer records how often the engine asks for a recompute.
type countingRecomputer struct {
	inner Recomputer
	mu    sync.Mutex
	calls int
}

func (c *countingRecomputer) Recompute(ctx context.Context, id uuid.UUID) (*risk.Snapshot, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Recompute(ctx, id)
}

func (c *countingRecomputer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

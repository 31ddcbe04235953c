package vitals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
	"github.com/M-Affan01/HealthMonitor/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const vitalsCols = `id, patient_id, heart_rate, systolic_bp, diastolic_bp, temperature,
	oxygen_saturation, respiratory_rate, blood_glucose, weight, height, notes,
	recorded_by, recorded_at`

func scanMeasurement(row pgx.Row) (*Measurement, error) {
	var m Measurement
	var recordedBy *string
	err := row.Scan(&m.ID, &m.PatientID, &m.HeartRate, &m.BloodPressureSystolic,
		&m.BloodPressureDiastolic, &m.Temperature, &m.OxygenSaturation,
		&m.RespiratoryRate, &m.BloodGlucose, &m.Weight, &m.Height, &m.Notes,
		&recordedBy, &m.RecordedAt)
	if recordedBy != nil {
		m.RecordedBy = *recordedBy
	}
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Measurement) error {
	m.ID = uuid.New()
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vitals (`+vitalsCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		m.ID, m.PatientID, m.HeartRate, m.BloodPressureSystolic, m.BloodPressureDiastolic,
		m.Temperature, m.OxygenSaturation, m.RespiratoryRate, m.BloodGlucose,
		m.Weight, m.Height, m.Notes, m.RecordedBy, m.RecordedAt)
	return apperr.Persistence("create vitals", err)
}

func (r *repoPG) ListByPatientSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Measurement, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+vitalsCols+` FROM vitals
		WHERE patient_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC`, patientID, since)
	if err != nil {
		return nil, apperr.Persistence("list vitals", err)
	}
	defer rows.Close()

	var items []*Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, apperr.Persistence("scan vitals", err)
		}
		items = append(items, m)
	}
	return items, apperr.Persistence("list vitals", rows.Err())
}

func (r *repoPG) Count(ctx context.Context, f CountFilter) (int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != nil {
		add("v.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		add("p.doctor_id = $%d", *f.DoctorID)
	}
	if !f.From.IsZero() {
		add("v.recorded_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("v.recorded_at <= $%d", f.To)
	}

	q := `SELECT COUNT(*) FROM vitals v`
	if f.DoctorID != nil {
		q += ` JOIN patient p ON p.id = v.patient_id`
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}

	var n int
	err := r.conn(ctx).QueryRow(ctx, q, args...).Scan(&n)
	return n, apperr.Persistence("count vitals", err)
}

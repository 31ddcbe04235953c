package alert

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

const alertCols = `a.id, a.patient_id, a.vitals_id, a.metric, a.severity, a.status, a.message,
	a.value, a.threshold, a.acknowledged_by, a.acknowledged_at, a.resolved_at,
	a.created_at, a.updated_at`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.PatientID, &a.VitalsID, &a.Metric, &a.Severity, &a.Status,
		&a.Message, &a.Value, &a.Threshold, &a.AcknowledgedBy, &a.AcknowledgedAt,
		&a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO alert (id, patient_id, vitals_id, metric, severity, status, message, value, threshold)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.VitalsID, a.Metric, a.Severity, a.Status, a.Message, a.Value, a.Threshold,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return apperr.Persistence("create alert", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := scanAlert(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM alert a WHERE a.id = $1`, id))
	if err != nil {
		return nil, apperr.Persistence("get alert", err)
	}
	return a, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, a *Alert) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE alert SET status = $2, acknowledged_by = $3, acknowledged_at = $4,
			resolved_at = $5, updated_at = $6
		WHERE id = $1`,
		a.ID, a.Status, a.AcknowledgedBy, a.AcknowledgedAt, a.ResolvedAt, a.UpdatedAt)
	if err != nil {
		return apperr.Persistence("update alert status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("alert", a.ID)
	}
	return nil
}

func (r *repoPG) ListByPatientSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Alert, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+alertCols+` FROM alert a
		WHERE a.patient_id = $1 AND a.created_at >= $2
		ORDER BY a.created_at DESC`, patientID, since)
	if err != nil {
		return nil, apperr.Persistence("list patient alerts", err)
	}
	return collect(rows)
}

// filterClause builds the FROM and WHERE part shared by listings and counts.
func filterClause(f ListFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		add("p.doctor_id = $%d", *f.DoctorID)
	}
	if f.Status != nil {
		add("a.status = $%d", *f.Status)
	}
	if f.Severity != nil {
		add("a.severity = $%d", *f.Severity)
	}
	if !f.Since.IsZero() {
		add("a.created_at >= $%d", f.Since)
	}

	from := ` FROM alert a JOIN patient p ON p.id = a.patient_id`
	if len(where) > 0 {
		from += ` WHERE ` + strings.Join(where, " AND ")
	}
	return from, args
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Alert, int, error) {
	from, args := filterClause(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Persistence("count alerts", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	q := `SELECT ` + alertCols + from +
		fmt.Sprintf(` ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, apperr.Persistence("list alerts", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collect(rows pgx.Rows) ([]*Alert, error) {
	defer rows.Close()
	var items []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, apperr.Persistence("scan alert", err)
		}
		items = append(items, a)
	}
	return items, apperr.Persistence("read alerts", rows.Err())
}

var groupColumns = map[GroupBy]string{
	GroupBySeverity: "a.severity",
	GroupByMetric:   "a.metric",
	GroupByStatus:   "a.status",
}

func (r *repoPG) CountBy(ctx context.Context, f ListFilter, by GroupBy) (map[string]int, error) {
	col, ok := groupColumns[by]
	if !ok {
		return nil, apperr.Validation("cannot group alerts by %q", by)
	}
	from, args := filterClause(f)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+col+`, COUNT(*)`+from+` GROUP BY `+col, args...)
	if err != nil {
		return nil, apperr.Persistence("count alerts by "+string(by), err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, apperr.Persistence("scan alert count", err)
		}
		out[key] = n
	}
	return out, apperr.Persistence("count alerts by "+string(by), rows.Err())
}

package patient

import (
	"context"
	"fmt"

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

const patientCols = `id, first_name, last_name, doctor_id, is_active, risk_score, risk_level, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DoctorID, &p.IsActive,
		&p.RiskScore, &p.RiskLevel, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	if p.RiskLevel == "" {
		p.RiskLevel = RiskLow
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, first_name, last_name, doctor_id, is_active, risk_score, risk_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.DoctorID, p.IsActive, p.RiskScore, p.RiskLevel,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.Persistence("create patient", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.Persistence("get patient", err)
	}
	return p, nil
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, apperr.Persistence("lock patient", err)
	}
	return p, nil
}

func (r *repoPG) UpdateRisk(ctx context.Context, id uuid.UUID, score int, level RiskLevel) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET risk_score = $2, risk_level = $3, updated_at = NOW()
		WHERE id = $1`, id, score, level)
	if err != nil {
		return apperr.Persistence("update patient risk", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", id)
	}
	return nil
}

func (r *repoPG) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM patient WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, apperr.Persistence("list active patients", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Persistence("scan patient id", err)
		}
		ids = append(ids, id)
	}
	return ids, apperr.Persistence("list active patients", rows.Err())
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	where := ` WHERE is_active`
	var args []interface{}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		where += ` AND doctor_id = $1`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Persistence("count patients", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	q := `SELECT ` + patientCols + ` FROM patient` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, apperr.Persistence("list patients", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, apperr.Persistence("scan patient", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Persistence("list patients", err)
	}
	return items, total, nil
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return apperr.Persistence("deactivate patient", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", id)
	}
	return nil
}

func (r *repoPG) CountByRiskLevel(ctx context.Context, doctorID *string) (map[RiskLevel]int, error) {
	q := `SELECT risk_level, COUNT(*) FROM patient WHERE is_active`
	var args []interface{}
	if doctorID != nil {
		q += ` AND doctor_id = $1`
		args = append(args, *doctorID)
	}
	rows, err := r.conn(ctx).Query(ctx, q+` GROUP BY risk_level`, args...)
	if err != nil {
		return nil, apperr.Persistence("count patients by risk", err)
	}
	defer rows.Close()

	out := map[RiskLevel]int{}
	for rows.Next() {
		var (
			level RiskLevel
			n     int
		)
		if err := rows.Scan(&level, &n); err != nil {
			return nil, apperr.Persistence("scan risk count", err)
		}
		out[level] = n
	}
	return out, apperr.Persistence("count patients by risk", rows.Err())
}

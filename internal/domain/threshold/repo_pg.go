package threshold

import (
	"context"

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

const configCols = `heart_rate_min_critical, heart_rate_min_low, heart_rate_max_low, heart_rate_max_critical,
	systolic_bp_min_critical, systolic_bp_min_low, systolic_bp_max_low, systolic_bp_max_critical,
	diastolic_bp_min_critical, diastolic_bp_min_low, diastolic_bp_max_low, diastolic_bp_max_critical,
	temperature_min_critical, temperature_min_low, temperature_max_low, temperature_max_critical,
	oxygen_saturation_min_critical, oxygen_saturation_min_low,
	blood_glucose_min_critical, blood_glucose_min_low, blood_glucose_max_low, blood_glucose_max_critical`

func configArgs(c *Config) []interface{} {
	return []interface{}{
		c.HeartRateMinCritical, c.HeartRateMinLow, c.HeartRateMaxLow, c.HeartRateMaxCritical,
		c.BPSystolicMinCritical, c.BPSystolicMinLow, c.BPSystolicMaxLow, c.BPSystolicMaxCritical,
		c.BPDiastolicMinCritical, c.BPDiastolicMinLow, c.BPDiastolicMaxLow, c.BPDiastolicMaxCritical,
		c.TempMinCritical, c.TempMinLow, c.TempMaxLow, c.TempMaxCritical,
		c.OxygenMinCritical, c.OxygenMinLow,
		c.GlucoseMinCritical, c.GlucoseMinLow, c.GlucoseMaxLow, c.GlucoseMaxCritical,
	}
}

func scanConfig(row pgx.Row) (*Config, error) {
	var c Config
	err := row.Scan(
		&c.HeartRateMinCritical, &c.HeartRateMinLow, &c.HeartRateMaxLow, &c.HeartRateMaxCritical,
		&c.BPSystolicMinCritical, &c.BPSystolicMinLow, &c.BPSystolicMaxLow, &c.BPSystolicMaxCritical,
		&c.BPDiastolicMinCritical, &c.BPDiastolicMinLow, &c.BPDiastolicMaxLow, &c.BPDiastolicMaxCritical,
		&c.TempMinCritical, &c.TempMinLow, &c.TempMaxLow, &c.TempMaxCritical,
		&c.OxygenMinCritical, &c.OxygenMinLow,
		&c.GlucoseMinCritical, &c.GlucoseMinLow, &c.GlucoseMaxLow, &c.GlucoseMaxCritical,
		&c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Get(ctx context.Context) (*Config, error) {
	c, err := scanConfig(r.conn(ctx).QueryRow(ctx,
		`SELECT `+configCols+`, updated_at FROM threshold_config WHERE id = 1`))
	if err != nil {
		return nil, apperr.Persistence("get thresholds", err)
	}
	return c, nil
}

func (r *repoPG) GetForUpdate(ctx context.Context) (*Config, error) {
	c, err := scanConfig(r.conn(ctx).QueryRow(ctx,
		`SELECT `+configCols+`, updated_at FROM threshold_config WHERE id = 1 FOR UPDATE`))
	if err != nil {
		return nil, apperr.Persistence("lock thresholds", err)
	}
	return c, nil
}

const placeholders = `$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22`

// CreateIfAbsent tolerates a concurrent first access creating the row.
func (r *repoPG) CreateIfAbsent(ctx context.Context, c *Config) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO threshold_config (id, `+configCols+`)
		VALUES (1, `+placeholders+`)
		ON CONFLICT (id) DO NOTHING`, configArgs(c)...)
	return apperr.Persistence("create thresholds", err)
}

func (r *repoPG) Save(ctx context.Context, c *Config) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE threshold_config SET
			heart_rate_min_critical=$1, heart_rate_min_low=$2, heart_rate_max_low=$3, heart_rate_max_critical=$4,
			systolic_bp_min_critical=$5, systolic_bp_min_low=$6, systolic_bp_max_low=$7, systolic_bp_max_critical=$8,
			diastolic_bp_min_critical=$9, diastolic_bp_min_low=$10, diastolic_bp_max_low=$11, diastolic_bp_max_critical=$12,
			temperature_min_critical=$13, temperature_min_low=$14, temperature_max_low=$15, temperature_max_critical=$16,
			oxygen_saturation_min_critical=$17, oxygen_saturation_min_low=$18,
			blood_glucose_min_critical=$19, blood_glucose_min_low=$20, blood_glucose_max_low=$21, blood_glucose_max_critical=$22,
			updated_at=NOW()
		WHERE id = 1
		RETURNING updated_at`, configArgs(c)...).Scan(&c.UpdatedAt)
	return apperr.Persistence("save thresholds", err)
}

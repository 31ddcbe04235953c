// Package sandbox generates demo patients and vitals for development and
// demo environments. Readings are submitted through the engine itself, so
// the resulting alerts and risk snapshots are real engine output.
package sandbox

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/M-Affan01/HealthMonitor/internal/domain/monitoring"
	"github.com/M-Affan01/HealthMonitor/internal/domain/patient"
	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
	"github.com/M-Affan01/HealthMonitor/internal/platform/auth"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	PatientCount   int      `json:"patientCount"`
	Doctors        []string `json:"doctors"`
	Days           int      `json:"days"`
	ReadingsPerDay int      `json:"readingsPerDay"`
	// AbnormalRate is the probability that a reading pushes one metric out
	// of its normal range.
	AbnormalRate float64 `json:"abnormalRate"`
	Seed         int64   `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:   10,
		Doctors:        []string{"dr-demo-1", "dr-demo-2"},
		Days:           14,
		ReadingsPerDay: 1,
		AbnormalRate:   0.15,
	}
}

// SeedResult summarizes the output of a seed operation.
type SeedResult struct {
	Patients int                       `json:"patients"`
	Readings int                       `json:"readings"`
	Alerts   int                       `json:"alerts"`
	ByLevel  map[patient.RiskLevel]int `json:"byLevel"`
	Duration time.Duration             `json:"duration"`
}

var (
	firstNames = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Mary",
		"Patricia", "Jennifer", "Linda", "Barbara", "Elizabeth", "Susan",
		"Jessica", "Sarah", "Karen", "Amina", "Omar", "Bilal", "Fatima",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
		"Miller", "Davis", "Rodriguez", "Martinez", "Khan", "Ahmed",
		"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson",
	}
)

// vitalRange is the normal spread of one metric and the value an
// excursion jumps to.
type vitalRange struct {
	low, high  float64
	excursions []float64
	decimals   int
	set        func(m *vitals.Measurement, v float64)
	occasional bool
}

var ranges = []vitalRange{
	{low: 62, high: 95, excursions: []float64{44, 55, 108, 135},
		set: func(m *vitals.Measurement, v float64) { m.HeartRate = &v }},
	{low: 105, high: 135, excursions: []float64{75, 150, 170},
		set: func(m *vitals.Measurement, v float64) { m.BloodPressureSystolic = &v }},
	{low: 65, high: 85, excursions: []float64{45, 115},
		set: func(m *vitals.Measurement, v float64) { m.BloodPressureDiastolic = &v }},
	{low: 36.3, high: 37.4, excursions: []float64{34.6, 38.4, 40.1}, decimals: 1,
		set: func(m *vitals.Measurement, v float64) { m.Temperature = &v }},
	{low: 95, high: 99, excursions: []float64{86, 92},
		set: func(m *vitals.Measurement, v float64) { m.OxygenSaturation = &v }},
	{low: 12, high: 18,
		set: func(m *vitals.Measurement, v float64) { m.RespiratoryRate = &v }},
	{low: 80, high: 140, excursions: []float64{50, 210, 280}, occasional: true,
		set: func(m *vitals.Measurement, v float64) { m.BloodGlucose = &v }},
}

// DataGenerator produces deterministic demo data.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) Patient(doctorID string) *patient.Patient {
	p := &patient.Patient{
		FirstName: g.pick(firstNames),
		LastName:  g.pick(lastNames),
		IsActive:  true,
	}
	if doctorID != "" {
		p.DoctorID = &doctorID
	}
	return p
}

// Reading returns one measurement. With probability abnormalRate a single
// metric is replaced by one of its excursion values.
func (g *DataGenerator) Reading(p *patient.Patient, at time.Time, abnormalRate float64) *vitals.Measurement {
	m := &vitals.Measurement{PatientID: p.ID, RecordedAt: at}
	for _, r := range ranges {
		if r.occasional && g.rng.Intn(3) != 0 {
			continue
		}
		v := r.low + g.rng.Float64()*(r.high-r.low)
		r.set(m, round(v, r.decimals))
	}

	if g.rng.Float64() < abnormalRate {
		var candidates []vitalRange
		for _, r := range ranges {
			if len(r.excursions) > 0 {
				candidates = append(candidates, r)
			}
		}
		r := candidates[g.rng.Intn(len(candidates))]
		r.set(m, r.excursions[g.rng.Intn(len(r.excursions))])
	}
	return m
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Engine is the part of the monitoring service the seeder drives.
type Engine interface {
	CreatePatient(ctx context.Context, actor auth.Actor, p *patient.Patient) error
	Ingest(ctx context.Context, actor auth.Actor, m *vitals.Measurement) (*monitoring.IngestResult, error)
}

// Seeder creates patients and replays their readings through an Engine.
type Seeder struct {
	engine    Engine
	generator *DataGenerator
	config    SeedConfig
	logger    zerolog.Logger
	now       func() time.Time
}

func NewSeeder(engine Engine, config SeedConfig, logger zerolog.Logger) *Seeder {
	return &Seeder{
		engine:    engine,
		generator: NewDataGenerator(config.Seed),
		config:    config,
		logger:    logger.With().Str("component", "seeder").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run creates the configured patients, assigning doctors round-robin, and
// ingests their readings oldest first.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	cfg := s.config
	if cfg.PatientCount <= 0 {
		return nil, fmt.Errorf("patient count must be positive, got %d", cfg.PatientCount)
	}
	if cfg.Days <= 0 {
		cfg.Days = 14
	}
	if cfg.ReadingsPerDay <= 0 {
		cfg.ReadingsPerDay = 1
	}

	system := auth.SystemActor("seeder")
	res := &SeedResult{ByLevel: map[patient.RiskLevel]int{}}
	step := 24 * time.Hour / time.Duration(cfg.ReadingsPerDay)
	origin := s.now().Add(-time.Duration(cfg.Days) * 24 * time.Hour)

	for i := 0; i < cfg.PatientCount; i++ {
		doctor := ""
		if len(cfg.Doctors) > 0 {
			doctor = cfg.Doctors[i%len(cfg.Doctors)]
		}
		p := s.generator.Patient(doctor)
		if err := s.engine.CreatePatient(ctx, system, p); err != nil {
			return nil, fmt.Errorf("create patient %d: %w", i+1, err)
		}
		res.Patients++

		var last *monitoring.IngestResult
		for n := 0; n < cfg.Days*cfg.ReadingsPerDay; n++ {
			at := origin.Add(time.Duration(n+1) * step)
			out, err := s.engine.Ingest(ctx, system, s.generator.Reading(p, at, cfg.AbnormalRate))
			if err != nil {
				return nil, fmt.Errorf("ingest reading for patient %s: %w", p.ID, err)
			}
			res.Readings++
			res.Alerts += len(out.Alerts)
			last = out
		}
		if last != nil && last.Risk != nil {
			res.ByLevel[last.Risk.Level]++
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info().
		Int("patients", res.Patients).
		Int("readings", res.Readings).
		Int("alerts", res.Alerts).
		Dur("duration", res.Duration).
		Msg("demo data seeded")
	return res, nil
}

package threshold

import (
	"math"
	"time"

	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
)

// Config is the single active set of threshold bands. Boundaries are
// expected to satisfy MinCritical <= MinLow <= MaxLow <= MaxCritical per
// metric but this is not enforced.
type Config struct {
	HeartRateMinCritical float64 `json:"heartRateMinCritical"`
	HeartRateMinLow      float64 `json:"heartRateMinLow"`
	HeartRateMaxLow      float64 `json:"heartRateMaxLow"`
	HeartRateMaxCritical float64 `json:"heartRateMaxCritical"`

	BPSystolicMinCritical float64 `json:"bpSystolicMinCritical"`
	BPSystolicMinLow      float64 `json:"bpSystolicMinLow"`
	BPSystolicMaxLow      float64 `json:"bpSystolicMaxLow"`
	BPSystolicMaxCritical float64 `json:"bpSystolicMaxCritical"`

	BPDiastolicMinCritical float64 `json:"bpDiastolicMinCritical"`
	BPDiastolicMinLow      float64 `json:"bpDiastolicMinLow"`
	BPDiastolicMaxLow      float64 `json:"bpDiastolicMaxLow"`
	BPDiastolicMaxCritical float64 `json:"bpDiastolicMaxCritical"`

	TempMinCritical float64 `json:"tempMinCritical"`
	TempMinLow      float64 `json:"tempMinLow"`
	TempMaxLow      float64 `json:"tempMaxLow"`
	TempMaxCritical float64 `json:"tempMaxCritical"`

	OxygenMinCritical float64 `json:"oxygenMinCritical"`
	OxygenMinLow      float64 `json:"oxygenMinLow"`

	GlucoseMinCritical float64 `json:"glucoseMinCritical"`
	GlucoseMinLow      float64 `json:"glucoseMinLow"`
	GlucoseMaxLow      float64 `json:"glucoseMaxLow"`
	GlucoseMaxCritical float64 `json:"glucoseMaxCritical"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Defaults returns the bands stored when no configuration exists yet.
func Defaults() Config {
	return Config{
		HeartRateMinCritical: 50, HeartRateMinLow: 60, HeartRateMaxLow: 100, HeartRateMaxCritical: 120,
		BPSystolicMinCritical: 80, BPSystolicMinLow: 90, BPSystolicMaxLow: 140, BPSystolicMaxCritical: 160,
		BPDiastolicMinCritical: 50, BPDiastolicMinLow: 60, BPDiastolicMaxLow: 90, BPDiastolicMaxCritical: 110,
		TempMinCritical: 35.0, TempMinLow: 36.1, TempMaxLow: 37.8, TempMaxCritical: 39.5,
		OxygenMinCritical: 90, OxygenMinLow: 94,
		GlucoseMinCritical: 54, GlucoseMinLow: 70, GlucoseMaxLow: 180, GlucoseMaxCritical: 250,
	}
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	HeartRateMinCritical *float64 `json:"heartRateMinCritical,omitempty"`
	HeartRateMinLow      *float64 `json:"heartRateMinLow,omitempty"`
	HeartRateMaxLow      *float64 `json:"heartRateMaxLow,omitempty"`
	HeartRateMaxCritical *float64 `json:"heartRateMaxCritical,omitempty"`

	BPSystolicMinCritical *float64 `json:"bpSystolicMinCritical,omitempty"`
	BPSystolicMinLow      *float64 `json:"bpSystolicMinLow,omitempty"`
	BPSystolicMaxLow      *float64 `json:"bpSystolicMaxLow,omitempty"`
	BPSystolicMaxCritical *float64 `json:"bpSystolicMaxCritical,omitempty"`

	BPDiastolicMinCritical *float64 `json:"bpDiastolicMinCritical,omitempty"`
	BPDiastolicMinLow      *float64 `json:"bpDiastolicMinLow,omitempty"`
	BPDiastolicMaxLow      *float64 `json:"bpDiastolicMaxLow,omitempty"`
	BPDiastolicMaxCritical *float64 `json:"bpDiastolicMaxCritical,omitempty"`

	TempMinCritical *float64 `json:"tempMinCritical,omitempty"`
	TempMinLow      *float64 `json:"tempMinLow,omitempty"`
	TempMaxLow      *float64 `json:"tempMaxLow,omitempty"`
	TempMaxCritical *float64 `json:"tempMaxCritical,omitempty"`

	OxygenMinCritical *float64 `json:"oxygenMinCritical,omitempty"`
	OxygenMinLow      *float64 `json:"oxygenMinLow,omitempty"`

	GlucoseMinCritical *float64 `json:"glucoseMinCritical,omitempty"`
	GlucoseMinLow      *float64 `json:"glucoseMinLow,omitempty"`
	GlucoseMaxLow      *float64 `json:"glucoseMaxLow,omitempty"`
	GlucoseMaxCritical *float64 `json:"glucoseMaxCritical,omitempty"`
}

type binding struct {
	name string
	dst  *float64
	src  *float64
}

func bind(c *Config, p *Patch) []binding {
	return []binding{
		{"heartRateMinCritical", &c.HeartRateMinCritical, p.HeartRateMinCritical},
		{"heartRateMinLow", &c.HeartRateMinLow, p.HeartRateMinLow},
		{"heartRateMaxLow", &c.HeartRateMaxLow, p.HeartRateMaxLow},
		{"heartRateMaxCritical", &c.HeartRateMaxCritical, p.HeartRateMaxCritical},
		{"bpSystolicMinCritical", &c.BPSystolicMinCritical, p.BPSystolicMinCritical},
		{"bpSystolicMinLow", &c.BPSystolicMinLow, p.BPSystolicMinLow},
		{"bpSystolicMaxLow", &c.BPSystolicMaxLow, p.BPSystolicMaxLow},
		{"bpSystolicMaxCritical", &c.BPSystolicMaxCritical, p.BPSystolicMaxCritical},
		{"bpDiastolicMinCritical", &c.BPDiastolicMinCritical, p.BPDiastolicMinCritical},
		{"bpDiastolicMinLow", &c.BPDiastolicMinLow, p.BPDiastolicMinLow},
		{"bpDiastolicMaxLow", &c.BPDiastolicMaxLow, p.BPDiastolicMaxLow},
		{"bpDiastolicMaxCritical", &c.BPDiastolicMaxCritical, p.BPDiastolicMaxCritical},
		{"tempMinCritical", &c.TempMinCritical, p.TempMinCritical},
		{"tempMinLow", &c.TempMinLow, p.TempMinLow},
		{"tempMaxLow", &c.TempMaxLow, p.TempMaxLow},
		{"tempMaxCritical", &c.TempMaxCritical, p.TempMaxCritical},
		{"oxygenMinCritical", &c.OxygenMinCritical, p.OxygenMinCritical},
		{"oxygenMinLow", &c.OxygenMinLow, p.OxygenMinLow},
		{"glucoseMinCritical", &c.GlucoseMinCritical, p.GlucoseMinCritical},
		{"glucoseMinLow", &c.GlucoseMinLow, p.GlucoseMinLow},
		{"glucoseMaxLow", &c.GlucoseMaxLow, p.GlucoseMaxLow},
		{"glucoseMaxCritical", &c.GlucoseMaxCritical, p.GlucoseMaxCritical},
	}
}

// Validate rejects NaN and infinite boundaries. Ordering is not checked.
func (p *Patch) Validate() error {
	for _, b := range bind(&Config{}, p) {
		if b.src != nil && (math.IsNaN(*b.src) || math.IsInf(*b.src, 0)) {
			return apperr.Validation("%s must be a finite number", b.name)
		}
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p *Patch) Empty() bool {
	for _, b := range bind(&Config{}, p) {
		if b.src != nil {
			return false
		}
	}
	return true
}

// Apply merges the non-nil fields of p into c.
func (p *Patch) Apply(c *Config) {
	for _, b := range bind(c, p) {
		if b.src != nil {
			*b.dst = *b.src
		}
	}
}

// Inverted lists the metrics whose bands violate
// MinCritical <= MinLow <= MaxLow <= MaxCritical.
func (c *Config) Inverted() []string {
	type band struct {
		metric string
		bounds []float64
	}
	bands := []band{
		{"heartRate", []float64{c.HeartRateMinCritical, c.HeartRateMinLow, c.HeartRateMaxLow, c.HeartRateMaxCritical}},
		{"bpSystolic", []float64{c.BPSystolicMinCritical, c.BPSystolicMinLow, c.BPSystolicMaxLow, c.BPSystolicMaxCritical}},
		{"bpDiastolic", []float64{c.BPDiastolicMinCritical, c.BPDiastolicMinLow, c.BPDiastolicMaxLow, c.BPDiastolicMaxCritical}},
		{"temp", []float64{c.TempMinCritical, c.TempMinLow, c.TempMaxLow, c.TempMaxCritical}},
		{"oxygen", []float64{c.OxygenMinCritical, c.OxygenMinLow}},
		{"glucose", []float64{c.GlucoseMinCritical, c.GlucoseMinLow, c.GlucoseMaxLow, c.GlucoseMaxCritical}},
	}

	var out []string
	for _, b := range bands {
		for i := 1; i < len(b.bounds); i++ {
			if b.bounds[i-1] > b.bounds[i] {
				out = append(out, b.metric)
				break
			}
		}
	}
	return out
}

package threshold

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the YAML form of a threshold override:
//
//	heart_rate:
//	  min_critical: 45
//	  max_low: 110
//	oxygen_saturation:
//	  min_low: 92
type Profile struct {
	HeartRate        *BandProfile `yaml:"heart_rate"`
	SystolicBP       *BandProfile `yaml:"systolic_bp"`
	DiastolicBP      *BandProfile `yaml:"diastolic_bp"`
	Temperature      *BandProfile `yaml:"temperature"`
	OxygenSaturation *BandProfile `yaml:"oxygen_saturation"`
	BloodGlucose     *BandProfile `yaml:"blood_glucose"`
}

type BandProfile struct {
	MinCritical *float64 `yaml:"min_critical"`
	MinLow      *float64 `yaml:"min_low"`
	MaxLow      *float64 `yaml:"max_low"`
	MaxCritical *float64 `yaml:"max_critical"`
}

func (b *BandProfile) get() BandProfile {
	if b == nil {
		return BandProfile{}
	}
	return *b
}

// ParseProfile decodes a YAML profile into a Patch. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func ParseProfile(data []byte) (Patch, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Patch{}, fmt.Errorf("parse threshold profile: %w", err)
	}

	if p.OxygenSaturation != nil && (p.OxygenSaturation.MaxLow != nil || p.OxygenSaturation.MaxCritical != nil) {
		return Patch{}, fmt.Errorf("parse threshold profile: oxygen_saturation has no maximum bands")
	}

	hr, sys, dia := p.HeartRate.get(), p.SystolicBP.get(), p.DiastolicBP.get()
	temp, ox, glu := p.Temperature.get(), p.OxygenSaturation.get(), p.BloodGlucose.get()

	patch := Patch{
		HeartRateMinCritical: hr.MinCritical, HeartRateMinLow: hr.MinLow, HeartRateMaxLow: hr.MaxLow, HeartRateMaxCritical: hr.MaxCritical,
		BPSystolicMinCritical: sys.MinCritical, BPSystolicMinLow: sys.MinLow, BPSystolicMaxLow: sys.MaxLow, BPSystolicMaxCritical: sys.MaxCritical,
		BPDiastolicMinCritical: dia.MinCritical, BPDiastolicMinLow: dia.MinLow, BPDiastolicMaxLow: dia.MaxLow, BPDiastolicMaxCritical: dia.MaxCritical,
		TempMinCritical: temp.MinCritical, TempMinLow: temp.MinLow, TempMaxLow: temp.MaxLow, TempMaxCritical: temp.MaxCritical,
		OxygenMinCritical: ox.MinCritical, OxygenMinLow: ox.MinLow,
		GlucoseMinCritical: glu.MinCritical, GlucoseMinLow: glu.MinLow, GlucoseMaxLow: glu.MaxLow, GlucoseMaxCritical: glu.MaxCritical,
	}
	if err := patch.Validate(); err != nil {
		return Patch{}, err
	}
	return patch, nil
}

// LoadProfile reads and parses a profile file.
func LoadProfile(path string) (Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patch{}, fmt.Errorf("read threshold profile: %w", err)
	}
	return ParseProfile(data)
}

// DefaultsWithProfile returns Defaults overlaid with the profile at path.
// An empty path yields the plain defaults.
func DefaultsWithProfile(path string) (Config, error) {
	d := Defaults()
	if path == "" {
		return d, nil
	}
	patch, err := LoadProfile(path)
	if err != nil {
		return Config{}, err
	}
	patch.Apply(&d)
	return d, nil
}

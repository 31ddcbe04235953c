package risk

import (
	"time"

	"github.com/M-Affan01/HealthMonitor/internal/domain/alert"
	"github.com/M-Affan01/HealthMonitor/internal/domain/patient"
)

const (
	// Window is the trailing period of alerts and readings a score covers.
	Window = 30 * 24 * time.Hour

	// CadenceReadings is how many windowed readings earn the monitoring
	// cadence discount.
	CadenceReadings = 14
	cadenceDiscount = 5

	MaxScore = 100
)

var severityWeight = map[alert.Severity]int{
	alert.SeverityCritical: 25,
	alert.SeverityHigh:     10,
	alert.SeverityMedium:   5,
}

// Compute scores a patient's windowed history. Only alerts still ACTIVE
// count; LOW alerts carry no weight.
func Compute(alerts []*alert.Alert, vitalsCount int) (int, patient.RiskLevel) {
	score := 0
	for _, a := range alerts {
		if a.Status != alert.StatusActive {
			continue
		}
		score += severityWeight[a.Severity]
	}
	if vitalsCount >= CadenceReadings {
		score -= cadenceDiscount
	}

	switch {
	case score < 0:
		score = 0
	case score > MaxScore:
		score = MaxScore
	}
	return score, LevelFor(score)
}

func LevelFor(score int) patient.RiskLevel {
	switch {
	case score >= 75:
		return patient.RiskCritical
	case score >= 50:
		return patient.RiskHigh
	case score >= 25:
		return patient.RiskMedium
	default:
		return patient.RiskLow
	}
}

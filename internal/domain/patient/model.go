package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Patient is a monitored patient. RiskScore and RiskLevel are derived and
// only written by risk recomputation.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	DoctorID  *string   `json:"doctorId,omitempty"`
	IsActive  bool      `json:"isActive"`
	RiskScore int       `json:"riskScore"`
	RiskLevel RiskLevel `json:"riskLevel"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Patient) Validate() error {
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Validation("firstName and lastName are required")
	}
	return nil
}

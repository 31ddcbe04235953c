package patient

import (
	"errors"
	"testing"

	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
)

func TestPatient_Validate(t *testing.T) {
	if err := (&Patient{FirstName: "Ada", LastName: "Byron"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (&Patient{FirstName: "Ada"}).Validate(); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

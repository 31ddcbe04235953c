package patient

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a patient listing. Only active patients are listed.
type ListFilter struct {
	// DoctorID scopes the listing to patients attended by one doctor.
	DoctorID *string
	Limit    int
	Offset   int
}

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetForUpdate reads the patient and, inside a transaction, locks the
	// row until commit.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error)
	UpdateRisk(ctx context.Context, id uuid.UUID, score int, level RiskLevel) error
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
	// List returns active patients, newest first, and the total match count.
	List(ctx context.Context, f ListFilter) ([]*Patient, int, error)
	// Deactivate soft-deletes the patient; history is kept.
	Deactivate(ctx context.Context, id uuid.UUID) error
	// CountByRiskLevel counts active patients per level, optionally for one
	// doctor.
	CountByRiskLevel(ctx context.Context, doctorID *string) (map[RiskLevel]int, error)
}

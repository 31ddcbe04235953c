package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CountFilter bounds a reading count. Zero values mean "no constraint";
// From and To are inclusive.
type CountFilter struct {
	PatientID *uuid.UUID
	// DoctorID restricts the count to patients attended by one doctor.
	DoctorID *string
	From     time.Time
	To       time.Time
}

type Repository interface {
	// Create assigns the id, and RecordedAt when it is zero.
	Create(ctx context.Context, m *Measurement) error
	// ListByPatientSince returns readings recorded at or after since, newest first.
	ListByPatientSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Measurement, error)
	Count(ctx context.Context, f CountFilter) (int, error)
}

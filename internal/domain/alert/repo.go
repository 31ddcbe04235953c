package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows an alert listing. Zero values mean "no constraint".
type ListFilter struct {
	PatientID *uuid.UUID
	// DoctorID scopes the listing to patients attended by one doctor.
	DoctorID *string
	Status   *Status
	Severity *Severity
	Since    time.Time
	Limit    int
	Offset   int
}

// GroupBy names the column an alert count is grouped on.
type GroupBy string

const (
	GroupBySeverity GroupBy = "severity"
	GroupByMetric   GroupBy = "metric"
	GroupByStatus   GroupBy = "status"
)

type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	UpdateStatus(ctx context.Context, a *Alert) error
	// ListByPatientSince returns the patient's alerts created at or after
	// since, newest first.
	ListByPatientSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Alert, error)
	List(ctx context.Context, f ListFilter) ([]*Alert, int, error)
	// CountBy counts the alerts matching f grouped by one column. Limit and
	// Offset are ignored.
	CountBy(ctx context.Context, f ListFilter, by GroupBy) (map[string]int, error)
}

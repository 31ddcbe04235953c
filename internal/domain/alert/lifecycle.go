package alert

import (
	"fmt"
	"time"

	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
)

// transitions lists the legal targets per state. RESOLVED is terminal.
var transitions = map[Status][]Status{
	StatusActive:       {StatusAcknowledged, StatusResolved},
	StatusAcknowledged: {StatusResolved},
}

// CanTransition reports whether an alert may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the alert to the target status and stamps the metadata
// for it: acknowledger and time on ACKNOWLEDGED, resolution time on
// RESOLVED.
func (a *Alert) Transition(to Status, actorID string, now time.Time) error {
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, a.Status, to)
	}

	switch to {
	case StatusAcknowledged:
		by := actorID
		a.AcknowledgedBy = &by
		a.AcknowledgedAt = &now
	case StatusResolved:
		a.ResolvedAt = &now
	}
	a.Status = to
	a.UpdatedAt = now
	return nil
}

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
	// RoleSystem is used by in-process callers (device ingestion, the risk
	// sweep, seeding) and is never issued in a token.
	RoleSystem = "system"
)

// Actor is the already-authenticated caller of an engine operation.
type Actor struct {
	ID   string
	Role string
}

// SystemActor returns the actor used by background workers.
func SystemActor(name string) Actor {
	return Actor{ID: name, Role: RoleSystem}
}

// ActorFromContext builds an Actor from the identity placed on the context by
// the auth middleware. Admin wins over doctor when both roles are present.
func ActorFromContext(ctx context.Context) Actor {
	a := Actor{ID: UserIDFromContext(ctx)}
	for _, r := range RolesFromContext(ctx) {
		switch r {
		case RoleAdmin:
			a.Role = RoleAdmin
			return a
		case RoleDoctor:
			a.Role = RoleDoctor
		}
	}
	return a
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// CanAccessPatient reports whether the actor may read or act on a patient
// attended by doctorID. Admins see everyone; doctors only their own patients.
func (a Actor) CanAccessPatient(doctorID *string) bool {
	if a.IsAdmin() {
		return true
	}
	if a.Role != RoleDoctor || a.ID == "" {
		return false
	}
	return doctorID != nil && *doctorID == a.ID
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

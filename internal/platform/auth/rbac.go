package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Staff roles.
const (
	RoleAdmin        = "admin"
	RoleFrontDesk    = "front_desk"
	RoleNurse        = "nurse"
	RoleDoctor       = "doctor"
	RoleLabScientist = "lab_scientist"
	RolePharmacist   = "pharmacist"
	RoleBilling      = "billing"
)

// StaffRoles lists every role allowed to work a visit.
var StaffRoles = []string{
	RoleFrontDesk, RoleNurse, RoleDoctor, RoleLabScientist, RolePharmacist, RoleBilling,
}

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. Admins always pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if hasAnyRole(RolesFromContext(c.Request().Context()), roles) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

func hasAnyRole(userRoles, required []string) bool {
	for _, has := range userRoles {
		if has == RoleAdmin {
			return true
		}
		for _, r := range required {
			if has == r {
				return true
			}
		}
	}
	return false
}

// Actor is the authenticated staff member performing an operation. Services
// take it explicitly instead of reading the request context.
type Actor struct {
	StaffID  uuid.UUID
	Roles    []string
	BranchID *uuid.UUID
}

// HasRole reports whether the actor holds one of roles, admins included.
func (a Actor) HasRole(roles ...string) bool {
	return hasAnyRole(a.Roles, roles)
}

func (a Actor) IsAdmin() bool {
	for _, r := range a.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// ActorFromContext builds the Actor set up by the auth middleware. It fails
// when the subject is not a staff UUID.
func ActorFromContext(ctx context.Context) (Actor, error) {
	staffID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return Actor{}, fmt.Errorf("caller identity is not a staff id")
	}
	a := Actor{StaffID: staffID, Roles: RolesFromContext(ctx)}
	if raw := BranchIDFromContext(ctx); raw != "" {
		if bid, err := uuid.Parse(raw); err == nil {
			a.BranchID = &bid
		}
	}
	return a, nil
}

// WithActor stores a's identity on ctx the way the auth middlewares do.
func WithActor(ctx context.Context, a Actor) context.Context {
	id := identity{staffID: a.StaffID.String(), roles: a.Roles}
	if a.BranchID != nil {
		id.branchID = a.BranchID.String()
	}
	return withIdentity(ctx, id)
}

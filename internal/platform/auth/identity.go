package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
)

type identityKey struct{}

// identity is what every authenticator leaves on the request context.
type identity struct {
	staffID  string
	roles    []string
	branchID string
}

func withIdentity(ctx context.Context, id identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFrom(ctx context.Context) identity {
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

func UserIDFromContext(ctx context.Context) string   { return identityFrom(ctx).staffID }
func RolesFromContext(ctx context.Context) []string  { return identityFrom(ctx).roles }
func BranchIDFromContext(ctx context.Context) string { return identityFrom(ctx).branchID }

// tenantClaimKey is the echo context key TenantMiddleware reads the clinic from.
const tenantClaimKey = "jwt_tenant_id"

// DevStaffID is the identity given to unauthenticated requests in development.
const DevStaffID = "00000000-0000-0000-0000-000000000001"

// DevAuthMiddleware admits every request as an admin of the default clinic.
// X-Dev-Staff-ID, X-Dev-Role (comma separated) and X-Dev-Branch-ID replace
// parts of that identity so role checks can be tried locally.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			id := identity{staffID: DevStaffID, roles: []string{RoleAdmin}, branchID: h.Get("X-Dev-Branch-ID")}
			if v := h.Get("X-Dev-Staff-ID"); v != "" {
				id.staffID = v
			}
			if v := h.Get("X-Dev-Role"); v != "" {
				id.roles = splitRoles(v)
			}
			c.Set(tenantClaimKey, "default")
			c.SetRequest(c.Request().WithContext(withIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

package db

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

// Tenant identifiers and schema names are spliced into SQL, so both are held
// to this alphabet.
var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// tenantSources are consulted in order; the first non-empty value wins. A
// verified token claim outranks anything the client can set directly.
var tenantSources = []func(echo.Context) string{
	jwtTenant,
	func(c echo.Context) string { return c.Request().Header.Get("X-Tenant-ID") },
	func(c echo.Context) string { return c.QueryParam("tenant_id") },
}

func jwtTenant(c echo.Context) string {
	s, _ := c.Get("jwt_tenant_id").(string)
	return s
}

func extractTenantID(c echo.Context, fallback string) string {
	for _, src := range tenantSources {
		if id := src(c); id != "" {
			return id
		}
	}
	return fallback
}

// SchemaFor returns the Postgres schema that holds a clinic's tables.
func SchemaFor(tenantID string) string {
	return "tenant_" + tenantID
}

// TenantMiddleware pins one pooled connection per request to the clinic's
// schema and exposes it through ConnFromContext. Branches are rows inside the
// schema, not separate tenants.
func TenantMiddleware(pool *pgxpool.Pool, fallback string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := extractTenantID(c, fallback)
			if !tenantIDPattern.MatchString(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			req := c.Request()
			ctx := req.Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			// AfterRelease in NewPool resets search_path.
			defer conn.Release()

			if _, err := conn.Exec(ctx, "SELECT set_config('search_path', $1, false)", SchemaFor(tenantID)+", public"); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
			}

			ctx = context.WithValue(context.WithValue(ctx, TenantIDKey, tenantID), DBConnKey, conn)
			c.SetRequest(req.WithContext(ctx))
			c.Set("tenant_id", tenantID)
			return next(c)
		}
	}
}

func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// CreateTenantSchema provisions a clinic: its schema plus every migration in
// files. With nil files only the empty schema is created.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, files fs.FS) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %q", tenantID)
	}
	schema := SchemaFor(tenantID)

	if files == nil {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
			return fmt.Errorf("create schema %s: %w", schema, err)
		}
		return nil
	}
	if _, err := NewMigrator(pool, files).Up(ctx, schema); err != nil {
		return fmt.Errorf("provision %s: %w", schema, err)
	}
	return nil
}

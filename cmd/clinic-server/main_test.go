package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/billing"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/middleware"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:           "development",
		DefaultTenant: "default",
		CORSOrigins:   []string{"http://localhost:3000"},
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migs, err := db.NewMigrator(nil, migrationFiles("")).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for i, m := range migs {
		if m.Version != i+1 {
			t.Errorf("migration %s: expected version %d, got %d", m.Name, i+1, m.Version)
		}
		if strings.TrimSpace(m.SQL) == "" {
			t.Errorf("migration %s is empty", m.Name)
		}
	}

	var all strings.Builder
	for _, m := range migs {
		all.WriteString(m.SQL)
	}
	for _, table := range []string{"staff", "patients", "appointments", "visits", "lab_tests",
		"pharmacy_stock", "prescriptions", "service_charges", "invoices", "payments", "notifications"} {
		if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("no migration creates table %s", table)
		}
	}
}

func TestRateLimitConfig(t *testing.T) {
	cfg := testConfig()
	if got := rateLimitConfig(cfg); got != middleware.DefaultRateLimitConfig() {
		t.Errorf("expected default rate limit, got %+v", got)
	}

	cfg.RateLimitRPS = 5
	cfg.RateLimitBurst = 10
	got := rateLimitConfig(cfg)
	if got.RequestsPerSecond != 5 || got.BurstSize != 10 {
		t.Errorf("expected 5/10, got %+v", got)
	}
}

func TestNewServer_Routes(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := newServer(testConfig(), nil, billing.DefaultPricing(), m, zerolog.Nop())

	routes := make(map[string]bool)
	for _, r := range e.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/clocking/clock-in",
		"POST /api/clocking/handoff",
		"POST /api/clocking/billing-clock-in",
		"POST /api/visits",
		"GET /api/visits/:id",
		"POST /api/invoices/generate",
		"GET /api/visits/:id/invoice",
		"POST /api/service-charges",
		"GET /api/notifications",
		"GET /health",
		"GET /metrics",
	} {
		if !routes[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}

func TestNewServer_HealthAndMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := newServer(testConfig(), nil, billing.DefaultPricing(), m, zerolog.Nop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on /health")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "clinic_http_requests_total") {
		t.Error("expected request counter after /health was served")
	}
}

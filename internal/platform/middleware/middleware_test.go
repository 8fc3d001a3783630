package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// serve runs one request through mws and h on a fresh echo instance that
// uses the package error handler.
func serve(method, path string, h echo.HandlerFunc, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	e.Use(mws...)
	e.Add(method, path, h)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRequestID(t *testing.T) {
	var seen string
	h := func(c echo.Context) error {
		seen, _ = c.Get("request_id").(string)
		return ok(c)
	}

	rec := serve(http.MethodGet, "/api/visits", h, RequestID())
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated id in context and header, got %q / %q", seen, rec.Header().Get(RequestIDHeader))
	}

	e := echo.New()
	e.Use(RequestID())
	e.GET("/api/visits", h)
	for _, tc := range []struct {
		in       string
		preserve bool
	}{
		{"front-desk-42", true},
		{strings.Repeat("x", 200), false},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/visits", nil)
		req.Header.Set(RequestIDHeader, tc.in)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if got := seen == tc.in; got != tc.preserve {
			t.Errorf("id of length %d: preserved=%v, want %v", len(tc.in), got, tc.preserve)
		}
	}
}

func TestLogger_WritesFinalStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	rec := serve(http.MethodPost, "/api/clocking/handoff", func(c echo.Context) error {
		return apperr.NotFound("visit not found")
	}, RequestID(), Logger(logger))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON log line, got %q", buf.String())
	}
	if line["level"] != "warn" {
		t.Errorf("expected warn level, got %v", line["level"])
	}
	if line["status"] != float64(404) {
		t.Errorf("expected status 404, got %v", line["status"])
	}
	if line["route"] != "/api/clocking/handoff" {
		t.Errorf("expected route pattern, got %v", line["route"])
	}
	if line["request_id"] == "" {
		t.Error("expected request id in log line")
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	rec := serve(http.MethodGet, "/api/invoices", func(c echo.Context) error {
		panic("nil invoice")
	}, Recovery(zerolog.New(&buf)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "nil invoice") {
		t.Error("panic value leaked to the client")
	}
	if !strings.Contains(buf.String(), `"panic":"nil invoice"`) {
		t.Errorf("expected panic in log, got %q", buf.String())
	}

	rec = serve(http.MethodGet, "/health", ok, Recovery(zerolog.Nop()))
	if rec.Code != http.StatusOK {
		t.Errorf("expected pass-through 200, got %d", rec.Code)
	}
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", r)
		}
	}()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_ = Recovery(zerolog.Nop())(func(echo.Context) error { panic(http.ErrAbortHandler) })(c)
}

func TestErrorHandler_Kinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		errText string
	}{
		{"validation", apperr.Validation("visitId is required"), http.StatusBadRequest, "visitId is required"},
		{"not found", apperr.NotFound("visit not found"), http.StatusNotFound, "visit not found"},
		{"forbidden", apperr.Forbidden("only billing staff can clock in at billing"), http.StatusForbidden, "only billing staff can clock in at billing"},
		{"state conflict", apperr.Conflict("visit is cancelled, not in_progress"), http.StatusBadRequest, "visit is cancelled, not in_progress"},
		{"version conflict", apperr.VersionConflict("invoice INV-1"), http.StatusConflict, "invoice INV-1 was modified concurrently, reload and retry"},
		{"echo", echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), http.StatusTooManyRequests, "rate limit exceeded"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/clocking/billing-clock-in", nil), rec)

			ErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			var body ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tt.errText {
				t.Errorf("expected error %q, got %q", tt.errText, body.Error)
			}
		})
	}
}

func TestErrorHandler_Internal(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/visits", nil), rec)
	c.Set("request_id", "rid-7")

	ErrorHandler(zerolog.New(&buf))(apperr.Wrap(errors.New("connection refused"), "list visits"), c)

	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "internal server error" || !strings.Contains(body.Message, "connection refused") {
		t.Errorf("unexpected body %+v", body)
	}
	if !strings.Contains(buf.String(), `"request_id":"rid-7"`) {
		t.Errorf("expected request id in error log, got %q", buf.String())
	}
}

func TestErrorHandler_CommittedAndHead(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = c.String(http.StatusOK, "done")
	ErrorHandler(zerolog.Nop())(apperr.NotFound("gone"), c)
	if rec.Code != http.StatusOK || rec.Body.String() != "done" {
		t.Errorf("committed response was overwritten: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodHead, "/api/visits/x", nil), rec)
	ErrorHandler(zerolog.Nop())(apperr.NotFound("visit not found"), c)
	if rec.Code != http.StatusNotFound || rec.Body.Len() != 0 {
		t.Errorf("expected bodiless 404 for HEAD, got %d %q", rec.Code, rec.Body.String())
	}
}

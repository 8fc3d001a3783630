package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret-key-for-unit-tests-only")

func staffClaims(subject string, ttl time.Duration) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "https://id.clinic.test",
			Audience:  jwt.ClaimStrings{"clinic-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		TenantID: "lagos_main",
		BranchID: "b-1",
		Roles:    []string{RoleDoctor},
	}
}

func hsToken(t *testing.T, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// authenticate runs mw over one request and returns the status code and the
// identity the handler saw.
func authenticate(t *testing.T, mw echo.MiddlewareFunc, header string) (int, identity, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	var seen identity
	err := mw(func(c echo.Context) error {
		seen = identityFrom(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})(c)
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code, seen, ""
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tenant, _ := c.Get(tenantClaimKey).(string)
	return rec.Code, seen, tenant
}

func TestJWTMiddleware_SharedSecret(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{Issuer: "https://id.clinic.test", Audience: "clinic-api", SigningKey: testSecret})

	good := hsToken(t, staffClaims("staff-1", time.Hour))
	code, id, tenant := authenticate(t, mw, "Bearer "+good)
	if code != http.StatusOK {
		t.Fatalf("valid token: status %d", code)
	}
	if id.staffID != "staff-1" || id.branchID != "b-1" || len(id.roles) != 1 || id.roles[0] != RoleDoctor {
		t.Errorf("identity = %+v", id)
	}
	if tenant != "lagos_main" {
		t.Errorf("tenant claim = %q", tenant)
	}

	wrongAud := staffClaims("staff-1", time.Hour)
	wrongAud.Audience = jwt.ClaimStrings{"other"}
	noExp := staffClaims("staff-1", time.Hour)
	noExp.ExpiresAt = nil

	rejected := map[string]string{
		"no header":      "",
		"basic auth":     "Basic dXNlcjpwYXNz",
		"bare scheme":    "Bearer",
		"blank token":    "Bearer   ",
		"garbage":        "Bearer not.a.jwt",
		"expired":        "Bearer " + hsToken(t, staffClaims("staff-1", -time.Minute)),
		"wrong audience": "Bearer " + hsToken(t, wrongAud),
		"no expiry":      "Bearer " + hsToken(t, noExp),
		"no subject":     "Bearer " + hsToken(t, staffClaims("", time.Hour)),
	}
	for name, header := range rejected {
		if code, _, _ := authenticate(t, mw, header); code != http.StatusUnauthorized {
			t.Errorf("%s: status %d, want 401", name, code)
		}
	}
}

func TestJWTMiddleware_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"keys": []jwk{{
			Kty: "RSA",
			Kid: "k1",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	sign := func(kid string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, staffClaims("staff-9", time.Hour))
		tok.Header["kid"] = kid
		s, err := tok.SignedString(key)
		if err != nil {
			t.Fatal(err)
		}
		return "Bearer " + s
	}

	mw := JWTMiddleware(JWTConfig{JWKSURL: srv.URL})

	if code, id, _ := authenticate(t, mw, sign("k1")); code != http.StatusOK || id.staffID != "staff-9" {
		t.Fatalf("RS256 token: status %d identity %+v", code, id)
	}
	if code, _, _ := authenticate(t, mw, sign("k1")); code != http.StatusOK {
		t.Fatalf("second request: status %d", code)
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("JWKS fetched %d times, want 1 while cached", n)
	}

	if code, _, _ := authenticate(t, mw, sign("rotated")); code != http.StatusUnauthorized {
		t.Errorf("unknown kid: status %d, want 401", code)
	}
	if code, _, _ := authenticate(t, mw, sign("rotated")); code != http.StatusUnauthorized {
		t.Errorf("unknown kid again: status %d, want 401", code)
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("unknown kids refetched JWKS %d times inside the backoff window", n)
	}

	hs := hsToken(t, staffClaims("staff-9", time.Hour))
	if code, _, _ := authenticate(t, mw, "Bearer "+hs); code != http.StatusUnauthorized {
		t.Errorf("HS256 token against a JWKS config: status %d, want 401", code)
	}
}

func TestKeySet_RefreshesAfterTTL(t *testing.T) {
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		_, _ = w.Write([]byte(`{"keys":[{"kty":"RSA","kid":"a","n":"AQAB","e":"AQAB"},{"kty":"EC","kid":"b"}]}`))
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ks := newKeySet(srv.URL)
	ks.now = func() time.Time { return now }

	if _, err := ks.key("a"); err != nil {
		t.Fatalf("key a: %v", err)
	}
	if _, err := ks.key("b"); err == nil {
		t.Error("non-RSA keys should be skipped")
	}

	now = now.Add(jwksTTL + time.Second)
	if _, err := ks.key("a"); err != nil {
		t.Fatalf("key a after ttl: %v", err)
	}
	if n := atomic.LoadInt32(&fetches); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestJWKRejectsMalformedKeys(t *testing.T) {
	bad := []jwk{
		{Kty: "RSA", N: "", E: "AQAB"},
		{Kty: "RSA", N: "AQAB", E: "!!"},
		{Kty: "RSA", N: "AQAB", E: "AQ"},
		{Kty: "oct", N: "AQAB", E: "AQAB"},
	}
	for i, k := range bad {
		if _, err := k.rsa(); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}

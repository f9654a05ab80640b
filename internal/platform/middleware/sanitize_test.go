package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newSanitizeEcho(logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.Use(Sanitize(logger))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/*", ok)
	e.POST("/*", ok)
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func withQuery(path, key, value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	q := req.URL.Query()
	q.Set(key, value)
	req.URL.RawQuery = q.Encode()
	return req
}

func TestSanitize_RejectsBadPaths(t *testing.T) {
	e := newSanitizeEcho(zerolog.Nop())

	for _, path := range []string{
		"/../../etc/passwd",
		"/%2e%2e/%2e%2e/etc/passwd",
		"/%252e%252e/etc/passwd",
		"/file%00.txt",
	} {
		rec := serve(e, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
			continue
		}
		assertJSONMessage(t, rec)
	}
}

func TestSanitize_RejectsNullByteInQuery(t *testing.T) {
	e := newSanitizeEcho(zerolog.Nop())

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/patients?name=foo%00bar", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	assertJSONMessage(t, rec)
}

func TestSanitize_RejectsHeaderInjection(t *testing.T) {
	e := newSanitizeEcho(zerolog.Nop())

	for _, v := range []string{"value\r\nInjected: header", "value\rinjected", "value\ninjected"} {
		req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
		req.Header.Set("X-Custom", v)
		rec := serve(e, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", v, rec.Code)
		}
	}
}

func TestSanitize_RejectsOversizedHeader(t *testing.T) {
	e := newSanitizeEcho(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set("X-Big", strings.Repeat("A", maxHeaderValueSize+1))
	rec := serve(e, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	assertJSONMessage(t, rec)
}

func TestSanitize_RejectsScriptInQuery(t *testing.T) {
	e := newSanitizeEcho(zerolog.Nop())

	for _, v := range []string{
		"<script>alert(1)</script>",
		"javascript:alert(1)",
		"onload=alert(1)",
		"onclick=alert(1)",
	} {
		rec := serve(e, withQuery("/api/patients", "q", v))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", v, rec.Code)
			continue
		}
		assertJSONMessage(t, rec)
	}
}

func TestSanitize_AllowsAPITraffic(t *testing.T) {
	e := newSanitizeEcho(zerolog.Nop())

	for _, p := range []string{
		"/api/patients?name=John",
		"/api/patients/6f1c3a52-7f4e-4a57-9d0a-2f1e0b8c6d11",
		"/api/patients?page=2&limit=20",
		"/api/chat/6f1c3a52-7f4e-4a57-9d0a-2f1e0b8c6d11",
		"/health/db",
		"/ws?access_token=abc.def.ghi",
	} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		req.Header.Set("Authorization", "Bearer some-token")
		if rec := serve(e, req); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", p, rec.Code)
		}
	}
}

func TestSanitize_SQLLikeValuesAreLoggedNotBlocked(t *testing.T) {
	var buf bytes.Buffer
	e := newSanitizeEcho(zerolog.New(&buf))

	for _, v := range []string{
		"'; DROP TABLE patient;--",
		"1 UNION SELECT * FROM chat_message",
		"' OR 1=1--",
		"1=1",
	} {
		buf.Reset()
		rec := serve(e, withQuery("/api/patients", "name", v))
		if rec.Code != http.StatusOK {
			t.Errorf("%q: expected 200, got %d", v, rec.Code)
		}
		if !strings.Contains(buf.String(), "suspicious query parameter") {
			t.Errorf("%q: expected a warning in the log", v)
		}
	}
}

func assertJSONMessage(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body["message"] == "" {
		t.Error("expected a message in the error body")
	}
}

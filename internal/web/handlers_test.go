package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mailwarden/mailwarden/internal/rules"
)

func newTestServer() *Server {
	status, table := rules.NewEngine(nil, &rules.Config{}, nil, nil).Status(), []rules.Rule{
		{Name: "work", Query: `(FROM "boss@corp.example")`},
	}
	return NewServer("0", "127.0.0.1", "admin", "secret", status, table)
}

func login(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {"admin"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handleLogin(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestDashboardRequiresAuth(t *testing.T) {
	s := newTestServer()
	handler := s.auth.RequireAuth(http.HandlerFunc(s.handleDashboard))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unauthenticated status = %d, want redirect", rec.Code)
	}

	cookie := login(t, s)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "work") {
		t.Errorf("dashboard missing rule table: %s", body)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer()
	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handleLogin(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Invalid username or password") {
		t.Fatalf("bad password: status=%d body=%s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" && c.Value != "" {
			t.Fatal("session cookie set on failed login")
		}
	}
}

func TestStatusJSON(t *testing.T) {
	s := newTestServer()
	cookie := login(t, s)

	req := httptest.NewRequest(http.MethodGet, "/status.json", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.auth.RequireAuth(http.HandlerFunc(s.handleStatus)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		State string `json:"state"`
		Rules []struct {
			Name string `json:"name"`
		} `json:"rules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.State == "" || len(payload.Rules) != 1 || payload.Rules[0].Name != "work" {
		t.Errorf("payload = %+v", payload)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &fields); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"wakeups", "sends", "rejections", "proxied_urls"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("payload missing %q: %v", key, fields)
		}
	}
}

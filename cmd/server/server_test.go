package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codr1/oche/internal/config"
	"github.com/codr1/oche/internal/live"
	"github.com/codr1/oche/internal/notify"
	"github.com/codr1/oche/internal/testutil"
)

const testConfig = `app:
  name: oche
  port: 8080
  base_url: http://localhost:8080
database:
  driver: sqlite
  filename: unused.db
`

func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.App.SecretKey = "0123456789abcdef0123456789abcdef"

	database := testutil.NewTestDB(t)
	server := newServer(cfg, database, deps{
		hub:    live.NewHub(cfg.App.BaseURL),
		pusher: notify.NewPusher(database.Queries, notify.Config{}),
	})
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthAndRequestID(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestRoutesEnforceAuthAndContentType(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/leagues", "application/json", strings.NewReader(`{"name":"Monday"}`))
	if err != nil {
		t.Fatalf("post league: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/v1/auth/register", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("post register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/seasons/unknown")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRegisterThenMe(t *testing.T) {
	ts := startServer(t)

	body, _ := json.Marshal(map[string]string{
		"email":    "luke@example.com",
		"name":     "Luke",
		"password": "bullseye-2026",
	})
	resp, err := http.Post(ts.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var session struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil || session.Token == "" {
		t.Fatalf("expected a token, got %+v (%v)", session, err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	me, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer me.Body.Close()
	if me.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", me.StatusCode)
	}

	for path, want := range map[string]int{
		"/api/v1/users/me/leagues": http.StatusOK,
		"/api/v1/admin/users":      http.StatusForbidden,
		"/api/v1/stats/players/0":  http.StatusBadRequest,
	} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
	}

	types, err := http.Get(ts.URL + "/api/v1/competition-types")
	if err != nil {
		t.Fatalf("competition types: %v", err)
	}
	defer types.Body.Close()
	if types.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", types.StatusCode)
	}
}

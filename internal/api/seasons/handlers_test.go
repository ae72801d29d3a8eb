package seasons

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codr1/oche/internal/api/authz"
	"github.com/codr1/oche/internal/store"
	"github.com/codr1/oche/internal/testutil"
)

func post(t *testing.T, body any, user *authz.AuthUser) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/seasons", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(authz.ContextWithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	HandleSeasonCreate(rec, req)
	return rec
}

func TestSeasonCreateAndList(t *testing.T) {
	database := testutil.NewTestDB(t)
	InitHandlers(database.Queries)
	admin := &authz.AuthUser{ID: 1, Role: authz.RoleAdmin}

	if rec := post(t, map[string]any{"name": "Spring 2026"}, &authz.AuthUser{ID: 2, Role: authz.RolePlayer}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec := post(t, map[string]any{"name": " Spring 2026 ", "startDate": "2026-03-01", "endDate": "2026-05-31"}, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var season store.Season
	if err := json.Unmarshal(rec.Body.Bytes(), &season); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if season.Name != "Spring 2026" || !season.IsActive {
		t.Fatalf("unexpected season %+v", season)
	}

	if rec := post(t, map[string]any{"name": "Spring 2026", "startDate": "2026-03-01", "endDate": "2026-05-31"}, admin); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seasons", nil)
	list := httptest.NewRecorder()
	HandleSeasonsList(list, req)
	var body struct {
		Seasons []store.Season `json:"seasons"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(body.Seasons) != 1 || body.Seasons[0].ID != season.ID {
		t.Fatalf("expected the created season, got %+v", body.Seasons)
	}
}

func TestSeasonValidation(t *testing.T) {
	database := testutil.NewTestDB(t)
	InitHandlers(database.Queries)
	admin := &authz.AuthUser{ID: 1, Role: authz.RoleAdmin}

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"startDate": "2026-01-01", "endDate": "2026-02-01"}},
		{"bad start", map[string]any{"name": "Winter", "startDate": "January", "endDate": "2026-02-01"}},
		{"end before start", map[string]any{"name": "Winter", "startDate": "2026-02-01", "endDate": "2026-01-01"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := post(t, tc.body, admin); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

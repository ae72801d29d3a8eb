package competitiontypes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codr1/oche/internal/api/authz"
	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/testutil"
)

func create(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/competition-types", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: 1, Role: authz.RoleAdmin}))
	rec := httptest.NewRecorder()
	HandleCompetitionTypeCreate(rec, req)
	return rec
}

func list(t *testing.T) []competitionTypeResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	HandleCompetitionTypesList(rec, httptest.NewRequest(http.MethodGet, "/api/v1/competition-types", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		CompetitionTypes []competitionTypeResponse `json:"competitionTypes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.CompetitionTypes
}

func TestSeededCompetitionTypes(t *testing.T) {
	database := testutil.NewTestDB(t)
	InitHandlers(database.Queries)

	types := list(t)
	if len(types) != 2 || types[0].Name != "501-double-out" || types[1].Name != "cricket" {
		t.Fatalf("expected seeded presets, got %+v", types)
	}
	if types[1].ScoringConfig.PointsWin != 2 || types[1].ScoringConfig.TiebreakerRules[0] != leaguesvc.RuleHeadToHead {
		t.Fatalf("unexpected cricket config %+v", types[1].ScoringConfig)
	}
}

func TestCompetitionTypeCreate(t *testing.T) {
	database := testutil.NewTestDB(t)
	InitHandlers(database.Queries)

	rec := create(t, `{"name":"killer","description":"Last player standing","scoringConfig":{"points_win":4,"tiebreaker_rules":["points_for"]}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created competitionTypeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ScoringConfig.PointsWin != 4 || created.ScoringConfig.PointsDraw != 1 {
		t.Fatalf("expected partial config merged with defaults, got %+v", created.ScoringConfig)
	}

	rec = create(t, `{"name":"round the clock"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 without config, got %d", rec.Code)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate", `{"name":"killer"}`, http.StatusConflict},
		{"blank name", `{"name":"  "}`, http.StatusBadRequest},
		{"unknown rule", `{"name":"shanghai","scoringConfig":{"tiebreaker_rules":["coin_toss"]}}`, http.StatusBadRequest},
		{"inverted points", `{"name":"shanghai","scoringConfig":{"points_win":0,"points_draw":1}}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := create(t, tc.body); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	if got := len(list(t)); got != 4 {
		t.Fatalf("expected 4 competition types, got %d", got)
	}
}

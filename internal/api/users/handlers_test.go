package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/codr1/oche/internal/api/authz"
	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/store"
	"github.com/codr1/oche/internal/testutil"
)

func serve(t *testing.T, handler http.HandlerFunc, method, target string, body any, caller *authz.AuthUser, path map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range path {
		req.SetPathValue(k, v)
	}
	if caller != nil {
		req = req.WithContext(authz.ContextWithUser(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func joinLink(t *testing.T, q *store.Queries, leagueID, ownerID int64, code string) {
	t.Helper()
	if _, err := q.CreateJoinLink(context.Background(), store.CreateJoinLinkParams{LeagueID: leagueID, Code: code, CreatedBy: ownerID}); err != nil {
		t.Fatalf("create join link: %v", err)
	}
}

type myLeaguesBody struct {
	Leagues      []myLeagueView `json:"leagues"`
	TotalLeagues int            `json:"totalLeagues"`
}

func TestMyLeagues(t *testing.T) {
	database := testutil.NewTestDB(t)
	InitHandlers(database.Queries)
	ctx := context.Background()

	admin := testutil.CreateUser(t, database, "Admin", "admin")
	player := testutil.CreateUser(t, database, "Player", "player")
	partner := testutil.CreateUser(t, database, "Partner", "player")

	singles := testutil.CreateLeague(t, database, admin.ID, "Singles", testutil.LeagueOptions{AutoApprove: true})
	pairs := testutil.CreateLeague(t, database, admin.ID, "Pairs", testutil.LeagueOptions{GameMode: leaguesvc.GameModePairs, AutoApprove: true})
	pending := testutil.CreateLeague(t, database, admin.ID, "Pending", testutil.LeagueOptions{})
	joinLink(t, database.Queries, singles.ID, admin.ID, "SINGLES")
	joinLink(t, database.Queries, pairs.ID, admin.ID, "PAIRS")
	joinLink(t, database.Queries, pending.ID, admin.ID, "PENDING")

	for _, in := range []leaguesvc.JoinInput{
		{Code: "SINGLES", UserID: player.ID},
		{Code: "PAIRS", UserID: partner.ID, PartnerEmail: player.Email},
		{Code: "PENDING", UserID: player.ID},
	} {
		if _, err := leaguesvc.Join(ctx, database, in); err != nil {
			t.Fatalf("join %s: %v", in.Code, err)
		}
	}

	me := &authz.AuthUser{ID: player.ID, Role: authz.RolePlayer}
	if rec := serve(t, HandleMyLeagues, http.MethodGet, "/api/v1/users/me/leagues", nil, nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec := serve(t, HandleMyLeagues, http.MethodGet, "/api/v1/users/me/leagues", nil, me, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body myLeaguesBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalLeagues != 3 || len(body.Leagues) != 3 {
		t.Fatalf("expected 3 registrations, got %+v", body)
	}
	byLeague := map[int64]myLeagueView{}
	for _, l := range body.Leagues {
		byLeague[l.League.ID] = l
	}
	if got := byLeague[singles.ID]; got.Status != "approved" || got.Role != "registrant" || got.Team == nil {
		t.Fatalf("unexpected singles registration %+v", got)
	}
	if got := byLeague[pairs.ID]; got.Role != "partner" || got.Team == nil {
		t.Fatalf("unexpected pairs registration %+v", got)
	}
	if got := byLeague[pending.ID]; got.Status != "pending" || got.Team != nil {
		t.Fatalf("unexpected pending registration %+v", got)
	}

	rec = serve(t, HandleMyLeagues, http.MethodGet, "/api/v1/users/me/leagues?status=approved", nil, me, nil)
	body = myLeaguesBody{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalLeagues != 2 {
		t.Fatalf("expected 2 approved registrations, got %+v", body)
	}

	if rec := serve(t, HandleMyLeagues, http.MethodGet, "/api/v1/users/me/leagues?status=maybe", nil, me, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}

	stranger := testutil.CreateUser(t, database, "Stranger", "player")
	rec = serve(t, HandleMyLeagues, http.MethodGet, "/api/v1/users/me/leagues", nil, &authz.AuthUser{ID: stranger.ID, Role: authz.RolePlayer}, nil)
	body = myLeaguesBody{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalLeagues != 0 || body.Leagues == nil {
		t.Fatalf("expected an empty list, got %+v", body)
	}
}

func TestAdminUsersListAndRole(t *testing.T) {
	database := testutil.NewTestDB(t)
	InitHandlers(database.Queries)

	admin := testutil.CreateUser(t, database, "Admin", "admin")
	player := testutil.CreateUser(t, database, "Player", "player")
	testutil.CreateLeague(t, database, admin.ID, "Owned", testutil.LeagueOptions{})
	adminCaller := &authz.AuthUser{ID: admin.ID, Role: authz.RoleAdmin}
	playerCaller := &authz.AuthUser{ID: player.ID, Role: authz.RolePlayer}

	if rec := serve(t, HandleUsersList, http.MethodGet, "/api/v1/admin/users", nil, playerCaller, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec := serve(t, HandleUsersList, http.MethodGet, "/api/v1/admin/users", nil, adminCaller, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("not-a-real-hash")) {
		t.Fatal("user listing leaked a password hash")
	}
	var list struct {
		Users []userView `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Users) != 2 {
		t.Fatalf("expected 2 users, got %+v", list.Users)
	}
	for _, u := range list.Users {
		if u.ID == admin.ID && u.TotalLeaguesCreated != 1 {
			t.Fatalf("expected admin to own one league, got %+v", u)
		}
	}

	playerPath := map[string]string{"id": strconv.FormatInt(player.ID, 10)}
	tests := []struct {
		name   string
		caller *authz.AuthUser
		path   map[string]string
		body   any
		want   int
	}{
		{"player caller", playerCaller, playerPath, map[string]string{"role": "admin"}, http.StatusForbidden},
		{"unknown role", adminCaller, playerPath, map[string]string{"role": "owner"}, http.StatusBadRequest},
		{"unknown field", adminCaller, playerPath, map[string]string{"rank": "admin"}, http.StatusBadRequest},
		{"missing user", adminCaller, map[string]string{"id": "9999"}, map[string]string{"role": "admin"}, http.StatusNotFound},
		{"self demotion", adminCaller, map[string]string{"id": strconv.FormatInt(admin.ID, 10)}, map[string]string{"role": "player"}, http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, HandleUserRole, http.MethodPatch, "/api/v1/admin/users/x/role", tc.body, tc.caller, tc.path)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec = serve(t, HandleUserRole, http.MethodPatch, "/api/v1/admin/users/x/role", map[string]string{"role": " Admin "}, adminCaller, playerPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	promoted, err := database.Queries.GetUserByID(context.Background(), player.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if promoted.Role != authz.RoleAdmin {
		t.Fatalf("expected admin role, got %s", promoted.Role)
	}
}

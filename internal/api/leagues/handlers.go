// internal/api/leagues/handlers.go
package leagues

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	appdb "github.com/codr1/oche/internal/db"
	"github.com/codr1/oche/internal/email"
	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/notify"
	"github.com/codr1/oche/internal/store"
)

const (
	leagueQueryTimeout = 5 * time.Second
	leagueIDPathKey    = "id"
	teamIDPathKey      = "teamId"
	matchIDPathKey     = "id"
)

// LiveHub is the part of live.Hub the handlers need.
type LiveHub interface {
	Publish(leagueID int64, eventType string, payload any)
	Serve(w http.ResponseWriter, r *http.Request, leagueID int64)
}

type Deps struct {
	Live   LiveHub
	Pusher *notify.Pusher
	Email  email.EmailSender
}

var (
	database *appdb.DB
	queries  *store.Queries
	deps     Deps
)

type leagueRequest struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	SeasonID          *int64  `json:"seasonId"`
	CompetitionTypeID *int64  `json:"competitionTypeId"`
	GameMode          string  `json:"gameMode"`
	TournamentFormat  string  `json:"tournamentFormat"`
	MaxParticipants   *int64  `json:"maxParticipants"`
	AutoApprove       bool    `json:"autoApprove"`
	ScoringConfig     *string `json:"scoringConfig"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(db *appdb.DB, d Deps) {
	if db == nil {
		return
	}
	database = db
	queries = db.Queries
	deps = d
}

func loadQueries() *store.Queries {
	return queries
}

func queriesOrFail(w http.ResponseWriter, r *http.Request) *store.Queries {
	q := loadQueries()
	if q == nil || database == nil {
		log.Ctx(r.Context()).Error().Msg("Database queries not initialized")
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return nil
	}
	return q
}

// GET /api/v1/leagues
func HandleLeaguesList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	leagues, err := q.ListLeagues(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list leagues")
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	out := make([]leagueResponse, 0, len(leagues))
	for _, l := range leagues {
		if status != "" && l.Status != status {
			continue
		}
		out = append(out, leagueView(l))
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"leagues": out}); err != nil {
		logger.Error().Err(err).Msg("Failed to write leagues response")
	}
}

// POST /api/v1/leagues
func HandleLeagueCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}

	var req leagueRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	input := leaguesvc.CreateInput{
		Name:              req.Name,
		Description:       req.Description,
		SeasonID:          req.SeasonID,
		CompetitionTypeID: req.CompetitionTypeID,
		GameMode:          req.GameMode,
		Format:            req.TournamentFormat,
		MaxParticipants:   req.MaxParticipants,
		AutoApprove:       req.AutoApprove,
		CreatedBy:         user.ID,
	}
	if req.ScoringConfig != nil {
		input.ScoringConfig = *req.ScoringConfig
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	league, err := leaguesvc.CreateLeague(ctx, q, input)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to create league")
		return
	}

	logger.Info().Int64("league_id", league.ID).Str("format", league.TournamentFormat).Msg("League created")
	if err := apiutil.WriteJSON(w, http.StatusCreated, leagueView(league)); err != nil {
		logger.Error().Err(err).Int64("league_id", league.ID).Msg("Failed to write league response")
	}
}

// GET /api/v1/leagues/{id}
func HandleLeagueDetail(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	league, err := getLeague(ctx, q, leagueID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to fetch league")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, leagueView(league)); err != nil {
		logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to write league response")
	}
}

// PATCH /api/v1/leagues/{id}/status
func HandleLeagueStatus(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}
	var req statusRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	var league store.League
	err = database.RunInTx(ctx, func(tx *appdb.DB) error {
		var txErr error
		league, txErr = leaguesvc.ChangeStatus(ctx, tx.Queries, leagueID, req.Status)
		return txErr
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to update league status")
		return
	}

	logger.Info().Int64("league_id", leagueID).Str("status", league.Status).Msg("League status changed")
	if err := apiutil.WriteJSON(w, http.StatusOK, leagueView(league)); err != nil {
		logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to write league response")
	}
}

// GET /api/v1/leagues/{id}/teams?q=
func HandleTeamsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	if _, err := getLeague(ctx, q, leagueID); err != nil {
		apiutil.WriteError(w, r, err, "Failed to fetch league")
		return
	}
	teams, err := q.ListTeams(ctx, leagueID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list teams")
		return
	}
	teams = leaguesvc.SearchTeams(teams, r.URL.Query().Get("q"))

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"teams": teamViews(teams)}); err != nil {
		logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to write teams response")
	}
}

// DELETE /api/v1/leagues/{id}/teams/{teamId}
func HandleTeamRemove(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	if queriesOrFail(w, r) == nil {
		return
	}
	leagueID, teamID, ok := leagueAndTeamIDs(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	if err := leaguesvc.RemoveTeam(ctx, database, leagueID, teamID); err != nil {
		apiutil.WriteError(w, r, err, "Failed to remove team")
		return
	}
	logger.Info().Int64("league_id", leagueID).Int64("team_id", teamID).Msg("Team removed")
	w.WriteHeader(http.StatusNoContent)
}

// PATCH /api/v1/leagues/{id}/teams/{teamId}/deactivate
func HandleTeamDeactivate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	leagueID, teamID, ok := leagueAndTeamIDs(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	if err := leaguesvc.DeactivateTeam(ctx, database, leagueID, teamID); err != nil {
		apiutil.WriteError(w, r, err, "Failed to deactivate team")
		return
	}
	team, err := q.GetTeam(ctx, teamID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to fetch team")
		return
	}

	logger.Info().Int64("league_id", leagueID).Int64("team_id", teamID).Msg("Team deactivated")
	if err := apiutil.WriteJSON(w, http.StatusOK, teamView(team)); err != nil {
		logger.Error().Err(err).Int64("team_id", teamID).Msg("Failed to write team response")
	}
}

func leagueAndTeamIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return 0, 0, false
	}
	teamID, err := apiutil.PathID(r, teamIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid team ID")
		return 0, 0, false
	}
	return leagueID, teamID, true
}

func getLeague(ctx context.Context, q *store.Queries, leagueID int64) (store.League, error) {
	league, err := q.GetLeague(ctx, leagueID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.League{}, leaguesvc.ErrLeagueNotFound
	}
	return league, err
}

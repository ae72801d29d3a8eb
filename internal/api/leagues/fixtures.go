package leagues

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/live"
	"github.com/codr1/oche/internal/store"
)

type resultRequest struct {
	Team1Score *int64 `json:"team1Score"`
	Team2Score *int64 `json:"team2Score"`
}

type scheduleRequest struct {
	ScheduledAt *string `json:"scheduledAt"`
}

// POST /api/v1/leagues/{id}/fixtures
func HandleGenerateFixtures(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}
	if queriesOrFail(w, r) == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	result, err := leaguesvc.GenerateFixtures(ctx, database, leagueID, user.ID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to generate fixtures")
		return
	}

	logger.Info().
		Int64("league_id", leagueID).
		Int("matches", len(result.Matches)).
		Int("byes", len(result.Byes)).
		Msg("Fixtures generated")

	publish(leagueID, live.EventFixturesGenerated, result)
	notifyFixtures(r.Context(), leagueID)

	if err := apiutil.WriteJSON(w, http.StatusCreated, result); err != nil {
		logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to write fixtures response")
	}
}

// GET /api/v1/leagues/{id}/matches
func HandleMatchesList(w http.ResponseWriter, r *http.Request) {
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

	matches, err := leaguesvc.LeagueMatches(ctx, q, leagueID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list matches")
		return
	}
	byes, err := q.ListByes(ctx, leagueID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list byes")
		return
	}
	byeViews := make([]byeResponse, 0, len(byes))
	for _, b := range byes {
		byeViews = append(byeViews, byeResponse{Round: b.Round, TeamID: b.TeamID})
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"matches": matches, "byes": byeViews}); err != nil {
		logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to write matches response")
	}
}

// PATCH /api/v1/matches/{id}/result
func HandleRecordResult(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}
	if queriesOrFail(w, r) == nil {
		return
	}
	matchID, err := apiutil.PathID(r, matchIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid match ID")
		return
	}
	var req resultRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Scores must be integers")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	outcome, err := leaguesvc.RecordResult(ctx, database, leaguesvc.ResultInput{
		MatchID:    matchID,
		Team1Score: req.Team1Score,
		Team2Score: req.Team2Score,
		RecordedBy: user.ID,
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to record result")
		return
	}

	match := outcome.Match
	logger.Info().
		Int64("league_id", match.LeagueID).
		Int64("match_id", match.ID).
		Bool("league_completed", outcome.LeagueCompleted).
		Msg("Result recorded")

	publishOutcome(outcome)
	notifyResult(r.Context(), outcome)

	resp := resultResponse{
		Status:        match.Status,
		WinnerTeamID:  match.WinnerTeamID,
		Team1Score:    match.Team1Score,
		Team2Score:    match.Team2Score,
		ResultOutcome: outcome,
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("match_id", matchID).Msg("Failed to write result response")
	}
}

// PATCH /api/v1/matches/{id}/schedule
func HandleScheduleMatch(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	matchID, err := apiutil.PathID(r, matchIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid match ID")
		return
	}
	var req scheduleRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	at, err := apiutil.ParseOptionalTime(req.ScheduledAt, "scheduledAt")
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	match, err := q.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = leaguesvc.ErrMatchNotFound
		}
		apiutil.WriteError(w, r, err, "Failed to fetch match")
		return
	}
	if match.Status != leaguesvc.StatusScheduled {
		apiutil.WriteError(w, r, leaguesvc.ErrMatchAlreadyCompleted, "Failed to schedule match")
		return
	}

	params := store.ScheduleMatchParams{ID: matchID}
	if at != nil {
		params.ScheduledAt = sql.NullTime{Time: *at, Valid: true}
	}
	rows, err := q.ScheduleMatch(ctx, params)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to schedule match")
		return
	}
	if rows == 0 {
		// Completed between the read and the update.
		apiutil.WriteError(w, r, leaguesvc.ErrMatchAlreadyCompleted, "Failed to schedule match")
		return
	}
	match, err = q.GetMatch(ctx, matchID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to fetch match")
		return
	}

	view := leaguesvc.MatchFromRow(match)
	publish(match.LeagueID, live.EventMatchScheduled, view)
	logger.Info().Int64("match_id", matchID).Bool("scheduled", at != nil).Msg("Match schedule updated")
	if err := apiutil.WriteJSON(w, http.StatusOK, view); err != nil {
		logger.Error().Err(err).Int64("match_id", matchID).Msg("Failed to write match response")
	}
}

// GET /api/v1/leagues/{id}/standings
func HandleStandings(w http.ResponseWriter, r *http.Request) {
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

	standings, err := leaguesvc.LeagueStandings(ctx, q, leagueID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load standings")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"standings": standings}); err != nil {
		logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to write standings response")
	}
}

// POST /api/v1/leagues/{id}/standings/recalculate
func HandleRecalculateStandings(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	if queriesOrFail(w, r) == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	standings, err := leaguesvc.RecalculatePositions(ctx, database, leagueID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to recalculate standings")
		return
	}

	publish(leagueID, live.EventStandingsUpdated, standings)
	logger.Info().Int64("league_id", leagueID).Msg("Standings recalculated")
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"standings": standings}); err != nil {
		logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to write standings response")
	}
}

// internal/api/registrations/handlers.go
package registrations

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	"github.com/codr1/oche/internal/api/authz"
	appdb "github.com/codr1/oche/internal/db"
	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/store"
)

const (
	registrationQueryTimeout = 5 * time.Second
	joinCodeLength           = 8
	maxJoinCodeLength        = 32
	maxNotesLength           = 500
)

var (
	database *appdb.DB
	queries  *store.Queries
)

type joinLinkRequest struct {
	Code      string  `json:"code"`
	MaxUses   *int64  `json:"maxUses"`
	ExpiresAt *string `json:"expiresAt"`
}

type joinRequest struct {
	PartnerEmail string `json:"partnerEmail"`
	Notes        string `json:"notes"`
}

type reviewRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(db *appdb.DB) {
	if db == nil {
		return
	}
	database = db
	queries = db.Queries
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

// POST /api/v1/leagues/{id}/join-links
func HandleJoinLinkCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}

	var req joinLinkRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	params, err := parseJoinLinkRequest(req, leagueID, user.ID)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), registrationQueryTimeout)
	defer cancel()

	if _, err := getLeague(ctx, q, leagueID); err != nil {
		apiutil.WriteError(w, r, err, "Failed to fetch league")
		return
	}
	link, err := q.CreateJoinLink(ctx, params)
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			apiutil.WriteErrorMessage(w, http.StatusConflict, "join code already in use")
			return
		}
		apiutil.WriteError(w, r, err, "Failed to create join link")
		return
	}

	logger.Info().Int64("league_id", leagueID).Int64("join_link_id", link.ID).Msg("Join link created")
	if err := apiutil.WriteJSON(w, http.StatusCreated, joinLinkView(link, time.Now())); err != nil {
		logger.Error().Err(err).Int64("join_link_id", link.ID).Msg("Failed to write join link response")
	}
}

// GET /api/v1/leagues/{id}/join-links
func HandleJoinLinksList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), registrationQueryTimeout)
	defer cancel()

	links, err := q.ListJoinLinks(ctx, leagueID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list join links")
		return
	}
	now := time.Now()
	out := make([]joinLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, joinLinkView(l, now))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"joinLinks": out}); err != nil {
		logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to write join links response")
	}
}

// DELETE /api/v1/join-links/{id}
func HandleJoinLinkDeactivate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	linkID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid join link ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), registrationQueryTimeout)
	defer cancel()

	rows, err := q.DeactivateJoinLink(ctx, linkID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to deactivate join link")
		return
	}
	if rows == 0 {
		apiutil.WriteErrorMessage(w, http.StatusNotFound, "join link not found")
		return
	}
	logger.Info().Int64("join_link_id", linkID).Msg("Join link deactivated")
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/join/{code}
func HandleJoinPreview(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	code := strings.TrimSpace(r.PathValue("code"))

	ctx, cancel := context.WithTimeout(r.Context(), registrationQueryTimeout)
	defer cancel()

	link, err := q.GetJoinLinkByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteErrorMessage(w, http.StatusNotFound, "join link not found")
			return
		}
		apiutil.WriteError(w, r, err, "Failed to fetch join link")
		return
	}
	league, err := getLeague(ctx, q, link.LeagueID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to fetch league")
		return
	}
	count, err := q.CountActiveParticipants(ctx, league.ID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to count participants")
		return
	}

	preview := joinPreview{
		LeagueID:         league.ID,
		LeagueName:       league.Name,
		Description:      league.Description,
		GameMode:         league.GameMode,
		TournamentFormat: league.TournamentFormat,
		Participants:     count,
		RegistrationOpen: league.RegistrationOpen,
		LinkUsable:       leaguesvc.JoinLinkUsable(link, time.Now()),
		RequiresPartner:  league.GameMode == leaguesvc.GameModePairs,
	}
	if league.MaxParticipants.Valid {
		preview.MaxParticipants = &league.MaxParticipants.Int64
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, preview); err != nil {
		logger.Error().Err(err).Msg("Failed to write join preview")
	}
}

// POST /api/v1/join/{code}
func HandleJoin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if queriesOrFail(w, r) == nil {
		return
	}

	var req joinRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Notes) > maxNotesLength {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "notes are too long")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), registrationQueryTimeout)
	defer cancel()

	reg, err := leaguesvc.Join(ctx, database, leaguesvc.JoinInput{
		Code:         r.PathValue("code"),
		UserID:       user.ID,
		PartnerEmail: req.PartnerEmail,
		Notes:        req.Notes,
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to join league")
		return
	}

	logger.Info().
		Int64("league_id", reg.Participant.LeagueID).
		Int64("participant_id", reg.Participant.ID).
		Str("status", reg.Participant.Status).
		Msg("League registration created")
	if err := apiutil.WriteJSON(w, http.StatusCreated, registrationView(reg)); err != nil {
		logger.Error().Err(err).Msg("Failed to write registration response")
	}
}

// GET /api/v1/leagues/{id}/participants
func HandleParticipantsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), registrationQueryTimeout)
	defer cancel()

	if _, err := getLeague(ctx, q, leagueID); err != nil {
		apiutil.WriteError(w, r, err, "Failed to fetch league")
		return
	}
	rows, err := q.ListParticipants(ctx, leagueID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list participants")
		return
	}

	out := make([]participantResponse, 0, len(rows))
	for _, row := range rows {
		var partnerID *int64
		if row.PartnerUserID.Valid {
			partnerID = &row.PartnerUserID.Int64
		}
		if !authz.CanViewRegistration(user, row.UserID, partnerID) {
			continue
		}
		out = append(out, participantRowView(row))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"participants": out}); err != nil {
		logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to write participants response")
	}
}

// PATCH /api/v1/leagues/{id}/participants/{participantId}
func HandleParticipantReview(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}
	if queriesOrFail(w, r) == nil {
		return
	}
	leagueID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}
	participantID, err := apiutil.PathID(r, "participantId")
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid participant ID")
		return
	}
	var req reviewRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), registrationQueryTimeout)
	defer cancel()

	action := leaguesvc.ReviewAction(strings.ToLower(strings.TrimSpace(req.Action)))
	reg, err := leaguesvc.ReviewRegistration(ctx, database, leagueID, participantID, action, req.Reason, user.ID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to review registration")
		return
	}

	logger.Info().
		Int64("league_id", leagueID).
		Int64("participant_id", participantID).
		Str("action", string(action)).
		Msg("Registration reviewed")
	if err := apiutil.WriteJSON(w, http.StatusOK, registrationView(reg)); err != nil {
		logger.Error().Err(err).Msg("Failed to write registration response")
	}
}

func parseJoinLinkRequest(req joinLinkRequest, leagueID, userID int64) (store.CreateJoinLinkParams, error) {
	params := store.CreateJoinLinkParams{LeagueID: leagueID, CreatedBy: userID}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		code = newJoinCode()
	}
	if len(code) > maxJoinCodeLength {
		return params, errors.New("code is too long")
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '-' {
			return params, errors.New("code may only contain letters, digits and dashes")
		}
	}
	params.Code = code

	if req.MaxUses != nil {
		if *req.MaxUses <= 0 {
			return params, errors.New("maxUses must be greater than 0")
		}
		params.MaxUses = sql.NullInt64{Int64: *req.MaxUses, Valid: true}
	}
	expires, err := apiutil.ParseOptionalTime(req.ExpiresAt, "expiresAt")
	if err != nil {
		return params, err
	}
	if expires != nil {
		params.ExpiresAt = sql.NullTime{Time: *expires, Valid: true}
	}
	return params, nil
}

func newJoinCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:joinCodeLength])
}

func getLeague(ctx context.Context, q *store.Queries, leagueID int64) (store.League, error) {
	league, err := q.GetLeague(ctx, leagueID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.League{}, leaguesvc.ErrLeagueNotFound
	}
	return league, err
}

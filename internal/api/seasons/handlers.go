// internal/api/seasons/handlers.go
package seasons

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	"github.com/codr1/oche/internal/store"
)

const (
	seasonQueryTimeout = 5 * time.Second
	maxSeasonNameLen   = 80
)

var queries *store.Queries

type createSeasonRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	IsActive  *bool  `json:"isActive"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *store.Queries) {
	queries = q
}

// GET /api/v1/seasons
func HandleSeasonsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), seasonQueryTimeout)
	defer cancel()

	seasons, err := queries.ListSeasons(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list seasons")
		return
	}
	if seasons == nil {
		seasons = []store.Season{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"seasons": seasons}); err != nil {
		logger.Error().Err(err).Msg("Failed to write seasons response")
	}
}

// POST /api/v1/seasons
func HandleSeasonCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	if queries == nil {
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req createSeasonRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	params, err := validateSeason(req)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), seasonQueryTimeout)
	defer cancel()

	season, err := queries.CreateSeason(ctx, params)
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			apiutil.WriteErrorMessage(w, http.StatusConflict, "season name already exists")
			return
		}
		apiutil.WriteError(w, r, err, "Failed to create season")
		return
	}

	logger.Info().Int64("season_id", season.ID).Str("name", season.Name).Msg("Season created")
	if err := apiutil.WriteJSON(w, http.StatusCreated, season); err != nil {
		logger.Error().Err(err).Int64("season_id", season.ID).Msg("Failed to write season response")
	}
}

func validateSeason(req createSeasonRequest) (store.CreateSeasonParams, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return store.CreateSeasonParams{}, apiutil.FieldError{Field: "name", Reason: "is required"}
	}
	if len(name) > maxSeasonNameLen {
		return store.CreateSeasonParams{}, apiutil.FieldError{Field: "name", Reason: "is too long"}
	}
	start, err := apiutil.ParseDate(req.StartDate, "startDate")
	if err != nil {
		return store.CreateSeasonParams{}, err
	}
	end, err := apiutil.ParseDate(req.EndDate, "endDate")
	if err != nil {
		return store.CreateSeasonParams{}, err
	}
	if end.Before(start) {
		return store.CreateSeasonParams{}, apiutil.FieldError{Field: "endDate", Reason: "must not be before startDate"}
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return store.CreateSeasonParams{Name: name, StartDate: start, EndDate: end, IsActive: active}, nil
}

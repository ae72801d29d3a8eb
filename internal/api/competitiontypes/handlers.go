// internal/api/competitiontypes/handlers.go
package competitiontypes

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/store"
)

const (
	competitionTypeQueryTimeout = 5 * time.Second
	maxNameLen                  = 60
	maxDescriptionLen           = 500
)

var queries *store.Queries

type createRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	ScoringConfig json.RawMessage `json:"scoringConfig"`
}

type competitionTypeResponse struct {
	ID            int64                   `json:"id"`
	Name          string                  `json:"name"`
	Description   string                  `json:"description"`
	ScoringConfig leaguesvc.ScoringConfig `json:"scoringConfig"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *store.Queries) {
	queries = q
}

// GET /api/v1/competition-types
func HandleCompetitionTypesList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), competitionTypeQueryTimeout)
	defer cancel()

	types, err := queries.ListCompetitionTypes(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list competition types")
		return
	}
	out := make([]competitionTypeResponse, 0, len(types))
	for _, ct := range types {
		resp, err := view(ct)
		if err != nil {
			logger.Error().Err(err).Int64("competition_type_id", ct.ID).Msg("Stored scoring config is invalid")
			apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to list competition types")
			return
		}
		out = append(out, resp)
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"competitionTypes": out}); err != nil {
		logger.Error().Err(err).Msg("Failed to write competition types response")
	}
}

// POST /api/v1/competition-types
func HandleCompetitionTypeCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	if queries == nil {
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req createRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "name is required")
		return
	case len(name) > maxNameLen:
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "name is too long")
		return
	case len(req.Description) > maxDescriptionLen:
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "description is too long")
		return
	}

	cfg := leaguesvc.DefaultScoringConfig()
	if len(req.ScoringConfig) > 0 && string(req.ScoringConfig) != "null" {
		parsed, err := leaguesvc.ParseScoringConfig(string(req.ScoringConfig))
		if err != nil {
			apiutil.WriteError(w, r, err, "Invalid scoring config")
			return
		}
		cfg = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), competitionTypeQueryTimeout)
	defer cancel()

	ct, err := queries.CreateCompetitionType(ctx, store.CreateCompetitionTypeParams{
		Name:                 name,
		Description:          strings.TrimSpace(req.Description),
		DefaultScoringConfig: cfg.JSON(),
	})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			apiutil.WriteErrorMessage(w, http.StatusConflict, "competition type already exists")
			return
		}
		apiutil.WriteError(w, r, err, "Failed to create competition type")
		return
	}

	logger.Info().Int64("competition_type_id", ct.ID).Str("name", ct.Name).Msg("Competition type created")
	if err := apiutil.WriteJSON(w, http.StatusCreated, competitionTypeResponse{
		ID:            ct.ID,
		Name:          ct.Name,
		Description:   ct.Description,
		ScoringConfig: cfg,
		CreatedAt:     ct.CreatedAt,
	}); err != nil {
		logger.Error().Err(err).Int64("competition_type_id", ct.ID).Msg("Failed to write competition type response")
	}
}

func view(ct store.CompetitionType) (competitionTypeResponse, error) {
	cfg, err := leaguesvc.ParseScoringConfig(ct.DefaultScoringConfig)
	if err != nil {
		return competitionTypeResponse{}, err
	}
	return competitionTypeResponse{
		ID:            ct.ID,
		Name:          ct.Name,
		Description:   ct.Description,
		ScoringConfig: cfg,
		CreatedAt:     ct.CreatedAt,
	}, nil
}

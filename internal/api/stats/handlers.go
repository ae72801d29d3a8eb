// internal/api/stats/handlers.go
package stats

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	"github.com/codr1/oche/internal/api/authz"
	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/store"
)

const statsQueryTimeout = 5 * time.Second

var queries *store.Queries

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *store.Queries) {
	queries = q
}

// GET /api/v1/stats/players/{userId}
//
// Players may read their own numbers; admins may read anyone's.
func HandlePlayerStats(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	caller, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if queries == nil {
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	userID, err := apiutil.PathID(r, "userId")
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if caller.ID != userID && !authz.IsAdmin(caller) {
		logger.Warn().Int64("user_id", caller.ID).Int64("target_user_id", userID).Msg("Player stats denied")
		apiutil.WriteErrorMessage(w, http.StatusForbidden, "Forbidden")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsQueryTimeout)
	defer cancel()

	stats, err := leaguesvc.StatsForPlayer(ctx, queries, userID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load player stats")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"stats": stats}); err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to write player stats response")
	}
}

// internal/api/users/handlers.go
package users

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	"github.com/codr1/oche/internal/api/authz"
	"github.com/codr1/oche/internal/store"
)

const userQueryTimeout = 5 * time.Second

var queries *store.Queries

type roleRequest struct {
	Role string `json:"role"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *store.Queries) {
	queries = q
}

// GET /api/v1/users/me/leagues
//
// An optional status query narrows the list, e.g. ?status=approved.
func HandleMyLeagues(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if queries == nil {
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	switch status {
	case "", "pending", "approved", "rejected", "withdrawn":
	default:
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "status must be one of pending, approved, rejected, withdrawn")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), userQueryTimeout)
	defer cancel()

	rows, err := queries.ListUserRegistrations(ctx, user.ID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list leagues")
		return
	}
	items := make([]myLeagueView, 0, len(rows))
	for _, row := range rows {
		if status != "" && row.Status != status {
			continue
		}
		items = append(items, newMyLeagueView(row, user.ID))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"leagues": items, "totalLeagues": len(items)}); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to write leagues response")
	}
}

// GET /api/v1/admin/users
func HandleUsersList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}
	if queries == nil {
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), userQueryTimeout)
	defer cancel()

	rows, err := queries.ListUsersWithCounts(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to list users")
		return
	}
	items := make([]userView, 0, len(rows))
	for _, row := range rows {
		items = append(items, newUserView(row))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"users": items}); err != nil {
		logger.Error().Err(err).Msg("Failed to write users response")
	}
}

// PATCH /api/v1/admin/users/{id}/role
func HandleUserRole(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	admin, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}
	if queries == nil {
		apiutil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	userID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	var req roleRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != authz.RoleAdmin && role != authz.RolePlayer {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, apiutil.FieldError{Field: "role", Reason: "must be admin or player"}.Error())
		return
	}
	// Keeps at least the caller able to administer.
	if userID == admin.ID && role != authz.RoleAdmin {
		apiutil.WriteErrorMessage(w, http.StatusConflict, "admins cannot remove their own admin role")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), userQueryTimeout)
	defer cancel()

	affected, err := queries.SetUserRole(ctx, userID, role)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to update role")
		return
	}
	if affected == 0 {
		apiutil.WriteErrorMessage(w, http.StatusNotFound, "user not found")
		return
	}
	user, err := queries.GetUserByID(ctx, userID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load user")
		return
	}

	logger.Info().Int64("user_id", userID).Int64("admin_id", admin.ID).Str("role", role).Msg("User role changed")
	if err := apiutil.WriteJSON(w, http.StatusOK, user); err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to write user response")
	}
}

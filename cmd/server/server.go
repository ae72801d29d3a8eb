// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api"
	"github.com/codr1/oche/internal/api/auth"
	"github.com/codr1/oche/internal/api/competitiontypes"
	"github.com/codr1/oche/internal/api/leagues"
	"github.com/codr1/oche/internal/api/notifications"
	"github.com/codr1/oche/internal/api/registrations"
	"github.com/codr1/oche/internal/api/seasons"
	"github.com/codr1/oche/internal/api/stats"
	"github.com/codr1/oche/internal/api/users"
	"github.com/codr1/oche/internal/config"
	"github.com/codr1/oche/internal/db"
	"github.com/codr1/oche/internal/email"
	"github.com/codr1/oche/internal/live"
	"github.com/codr1/oche/internal/notify"
)

type deps struct {
	hub    *live.Hub
	pusher *notify.Pusher
	mailer email.EmailSender
}

func newServer(cfg *config.Config, database *db.DB, d deps) *http.Server {
	router := http.NewServeMux()

	auth.InitHandlers(database.Queries, cfg)
	leagues.InitHandlers(database, leagues.Deps{Live: d.hub, Pusher: d.pusher, Email: d.mailer})
	registrations.InitHandlers(database)
	seasons.InitHandlers(database.Queries)
	competitiontypes.InitHandlers(database.Queries)
	notifications.InitHandlers(database.Queries, d.pusher)
	stats.InitHandlers(database.Queries)
	users.InitHandlers(database.Queries)

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithAuth,
		api.WithContentType,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	registerRoutes(router)

	return &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write health response")
		}
	})

	// Auth
	mux.HandleFunc("POST /api/v1/auth/register", auth.HandleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.HandleLogout)
	mux.HandleFunc("GET /api/v1/auth/me", auth.HandleMe)

	// Users and player stats
	mux.HandleFunc("GET /api/v1/users/me/leagues", users.HandleMyLeagues)
	mux.HandleFunc("GET /api/v1/admin/users", users.HandleUsersList)
	mux.HandleFunc("PATCH /api/v1/admin/users/{id}/role", users.HandleUserRole)
	mux.HandleFunc("GET /api/v1/stats/players/{userId}", stats.HandlePlayerStats)

	// Seasons and competition types
	mux.HandleFunc("GET /api/v1/seasons", seasons.HandleSeasonsList)
	mux.HandleFunc("POST /api/v1/seasons", seasons.HandleSeasonCreate)
	mux.HandleFunc("GET /api/v1/competition-types", competitiontypes.HandleCompetitionTypesList)
	mux.HandleFunc("POST /api/v1/competition-types", competitiontypes.HandleCompetitionTypeCreate)

	// Leagues and teams
	mux.HandleFunc("GET /api/v1/leagues", leagues.HandleLeaguesList)
	mux.HandleFunc("POST /api/v1/leagues", leagues.HandleLeagueCreate)
	mux.HandleFunc("GET /api/v1/leagues/{id}", leagues.HandleLeagueDetail)
	mux.HandleFunc("PATCH /api/v1/leagues/{id}/status", leagues.HandleLeagueStatus)
	mux.HandleFunc("GET /api/v1/leagues/{id}/teams", leagues.HandleTeamsList)
	mux.HandleFunc("DELETE /api/v1/leagues/{id}/teams/{teamId}", leagues.HandleTeamRemove)
	mux.HandleFunc("PATCH /api/v1/leagues/{id}/teams/{teamId}/deactivate", leagues.HandleTeamDeactivate)

	// Join links and registrations
	mux.HandleFunc("POST /api/v1/leagues/{id}/join-links", registrations.HandleJoinLinkCreate)
	mux.HandleFunc("GET /api/v1/leagues/{id}/join-links", registrations.HandleJoinLinksList)
	mux.HandleFunc("DELETE /api/v1/join-links/{id}", registrations.HandleJoinLinkDeactivate)
	mux.HandleFunc("GET /api/v1/join/{code}", registrations.HandleJoinPreview)
	mux.HandleFunc("POST /api/v1/join/{code}", registrations.HandleJoin)
	mux.HandleFunc("GET /api/v1/leagues/{id}/participants", registrations.HandleParticipantsList)
	mux.HandleFunc("PATCH /api/v1/leagues/{id}/participants/{participantId}", registrations.HandleParticipantReview)

	// Fixtures, results and standings
	mux.HandleFunc("POST /api/v1/leagues/{id}/fixtures", leagues.HandleGenerateFixtures)
	mux.HandleFunc("GET /api/v1/leagues/{id}/matches", leagues.HandleMatchesList)
	mux.HandleFunc("PATCH /api/v1/matches/{id}/result", leagues.HandleRecordResult)
	mux.HandleFunc("PATCH /api/v1/matches/{id}/schedule", leagues.HandleScheduleMatch)
	mux.HandleFunc("GET /api/v1/leagues/{id}/standings", leagues.HandleStandings)
	mux.HandleFunc("POST /api/v1/leagues/{id}/standings/recalculate", leagues.HandleRecalculateStandings)

	// Notifications
	mux.HandleFunc("GET /api/v1/notifications/vapid", notifications.HandleVAPIDKey)
	mux.HandleFunc("POST /api/v1/notifications/subscribe", notifications.HandleSubscribe)
	mux.HandleFunc("DELETE /api/v1/notifications/subscribe", notifications.HandleUnsubscribe)
	mux.HandleFunc("POST /api/v1/notifications/send", notifications.HandleSend)

	// Live league events
	mux.HandleFunc("GET /ws/leagues/{id}", leagues.HandleLeagueSocket)
}

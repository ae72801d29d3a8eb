package leagues

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/apiutil"
	"github.com/codr1/oche/internal/email"
	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/live"
	"github.com/codr1/oche/internal/notify"
	"github.com/codr1/oche/internal/store"
)

const notifyTimeout = 15 * time.Second

// GET /ws/leagues/{id}
func HandleLeagueSocket(w http.ResponseWriter, r *http.Request) {
	q := queriesOrFail(w, r)
	if q == nil {
		return
	}
	if deps.Live == nil {
		apiutil.WriteErrorMessage(w, http.StatusServiceUnavailable, "Live updates are not available")
		return
	}
	leagueID, err := apiutil.PathID(r, leagueIDPathKey)
	if err != nil {
		apiutil.WriteErrorMessage(w, http.StatusBadRequest, "Invalid league ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	_, err = getLeague(ctx, q, leagueID)
	cancel()
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to fetch league")
		return
	}

	deps.Live.Serve(w, r, leagueID)
}

func publish(leagueID int64, eventType string, payload any) {
	if deps.Live == nil {
		return
	}
	deps.Live.Publish(leagueID, eventType, payload)
}

func publishOutcome(outcome *leaguesvc.ResultOutcome) {
	leagueID := outcome.Match.LeagueID
	publish(leagueID, live.EventMatchCompleted, outcome.Match)
	if len(outcome.Standings) > 0 {
		publish(leagueID, live.EventStandingsUpdated, outcome.Standings)
	}
	if len(outcome.NextRound) > 0 {
		publish(leagueID, live.EventFixturesGenerated, map[string]any{"matches": outcome.NextRound})
	}
	if outcome.LeagueCompleted {
		publish(leagueID, live.EventLeagueCompleted, map[string]any{"championTeamId": outcome.ChampionTeamID})
	}
}

// background runs fn detached from the request with its logger attached.
func background(ctx context.Context, fn func(context.Context, *zerolog.Logger)) {
	logger := log.Ctx(ctx).With().Logger()
	go func() {
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		fn(logger.WithContext(bgCtx), &logger)
	}()
}

func notifyFixtures(ctx context.Context, leagueID int64) {
	if !deps.Pusher.Enabled() {
		return
	}
	q := loadQueries()
	background(ctx, func(ctx context.Context, logger *zerolog.Logger) {
		league, err := q.GetLeague(ctx, leagueID)
		if err != nil {
			logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to load league for fixture notification")
			return
		}
		teams, err := q.ListActiveTeams(ctx, leagueID)
		if err != nil {
			logger.Error().Err(err).Int64("league_id", leagueID).Msg("Failed to load teams for fixture notification")
			return
		}
		_, err = deps.Pusher.NotifyUsers(ctx, notify.TeamUserIDs(teams...), notify.Notification{
			Title: "Fixtures published",
			Body:  fmt.Sprintf("The fixtures for %s are out.", league.Name),
			URL:   fmt.Sprintf("/leagues/%d", leagueID),
			Tag:   fmt.Sprintf("fixtures-%d", leagueID),
		})
		if err != nil {
			logger.Warn().Err(err).Int64("league_id", leagueID).Msg("Failed to push fixture notification")
		}
	})
}

// notifyResult tells both teams' players about a recorded result by email
// and push. It never affects the stored result.
func notifyResult(ctx context.Context, outcome *leaguesvc.ResultOutcome) {
	if deps.Email == nil && !deps.Pusher.Enabled() {
		return
	}
	q := loadQueries()
	match := outcome.Match
	background(ctx, func(ctx context.Context, logger *zerolog.Logger) {
		league, err := q.GetLeague(ctx, match.LeagueID)
		if err != nil {
			logger.Error().Err(err).Int64("league_id", match.LeagueID).Msg("Failed to load league for result notification")
			return
		}
		home, err := q.GetTeam(ctx, match.Team1ID)
		if err != nil {
			logger.Error().Err(err).Int64("team_id", match.Team1ID).Msg("Failed to load team for result notification")
			return
		}
		away, err := q.GetTeam(ctx, match.Team2ID)
		if err != nil {
			logger.Error().Err(err).Int64("team_id", match.Team2ID).Msg("Failed to load team for result notification")
			return
		}

		details := resultDetails(league, match, home, away)
		if deps.Email != nil {
			for _, team := range []store.Team{home, away} {
				teamDetails := details
				if s, ok := standingOf(outcome.Standings, team.ID); ok {
					teamDetails.Position = int64(s.Position)
					teamDetails.Points = s.Points
				}
				msg := email.BuildResultEmail(teamDetails)
				for _, userID := range notify.TeamUserIDs(team) {
					email.SendToUser(ctx, q, deps.Email, userID, msg, logger)
				}
			}
		}

		if deps.Pusher.Enabled() {
			_, err := deps.Pusher.NotifyUsers(ctx, notify.TeamUserIDs(home, away), notify.Notification{
				Title: fmt.Sprintf("Result - %s", league.Name),
				Body:  fmt.Sprintf("%s %d - %d %s", home.Name, details.HomeScore, details.AwayScore, away.Name),
				URL:   fmt.Sprintf("/leagues/%d", league.ID),
				Tag:   fmt.Sprintf("match-%d", match.ID),
			})
			if err != nil {
				logger.Warn().Err(err).Int64("match_id", match.ID).Msg("Failed to push result notification")
			}
		}
	})
}

func resultDetails(league store.League, match leaguesvc.Match, home, away store.Team) email.ResultDetails {
	d := email.ResultDetails{
		LeagueName: league.Name,
		Round:      int64(match.Round),
		HomeTeam:   home.Name,
		AwayTeam:   away.Name,
	}
	if match.Team1Score != nil {
		d.HomeScore = *match.Team1Score
	}
	if match.Team2Score != nil {
		d.AwayScore = *match.Team2Score
	}
	if match.WinnerTeamID != nil {
		switch *match.WinnerTeamID {
		case home.ID:
			d.Winner = home.Name
		case away.ID:
			d.Winner = away.Name
		}
	}
	return d
}

func standingOf(standings []leaguesvc.Standing, teamID int64) (leaguesvc.Standing, bool) {
	for _, s := range standings {
		if s.TeamID == teamID {
			return s, true
		}
	}
	return leaguesvc.Standing{}, false
}

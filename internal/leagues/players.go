package leagues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codr1/oche/internal/store"
)

const (
	recentMatchLimit      = 10
	unassignedCompetition = "unassigned"
)

type PlayerProfile struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	MemberSince time.Time `json:"memberSince"`
}

type PlayerOverview struct {
	MatchesPlayed int64   `json:"matchesPlayed"`
	Wins          int64   `json:"wins"`
	Draws         int64   `json:"draws"`
	Losses        int64   `json:"losses"`
	WinRate       float64 `json:"winRate"`
	TotalScore    int64   `json:"totalScore"`
	HighestScore  int64   `json:"highestScore"`
	TotalLeagues  int64   `json:"totalLeagues"`
	ActiveLeagues int64   `json:"activeLeagues"`
	CurrentStreak int     `json:"currentStreak"`
	StreakType    string  `json:"streakType"`
}

type CompetitionStats struct {
	Matches      int64 `json:"matches"`
	Wins         int64 `json:"wins"`
	TotalScore   int64 `json:"totalScore"`
	HighestScore int64 `json:"highestScore"`
}

type PlayerMatch struct {
	MatchID         int64      `json:"matchId"`
	LeagueID        int64      `json:"leagueId"`
	League          string     `json:"league"`
	CompetitionType string     `json:"competitionType"`
	Opponent        string     `json:"opponent"`
	Score           int64      `json:"score"`
	OpponentScore   int64      `json:"opponentScore"`
	Result          string     `json:"result"`
	PlayedAt        *time.Time `json:"playedAt,omitempty"`
}

type PlayerStats struct {
	User          PlayerProfile               `json:"user"`
	Overview      PlayerOverview              `json:"overview"`
	ByCompetition map[string]CompetitionStats `json:"byCompetition"`
	RecentMatches []PlayerMatch               `json:"recentMatches"`
}

// StatsForPlayer summarises every completed match the user has played in any
// league. A team's score counts as the score of each of its players.
func StatsForPlayer(ctx context.Context, q *store.Queries, userID int64) (*PlayerStats, error) {
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	results, err := q.ListPlayerResults(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list player results: %w", err)
	}
	total, active, err := q.CountPlayerLeagues(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count player leagues: %w", err)
	}

	stats := SummarisePlayer(results)
	stats.User = PlayerProfile{ID: user.ID, Name: user.Name, Email: user.Email, MemberSince: user.CreatedAt}
	stats.Overview.TotalLeagues = total
	stats.Overview.ActiveLeagues = active
	return stats, nil
}

// SummarisePlayer folds results, newest first, into totals. The streak runs
// from the newest match back to the first different outcome.
func SummarisePlayer(results []store.PlayerResultRow) *PlayerStats {
	stats := &PlayerStats{
		ByCompetition: map[string]CompetitionStats{},
		RecentMatches: []PlayerMatch{},
	}
	o := &stats.Overview
	o.StreakType = "none"
	streakOpen := true

	for i, r := range results {
		outcome := Classify(r.TeamScore, r.OpponentScore)
		o.MatchesPlayed++
		switch outcome {
		case OutcomeWin:
			o.Wins++
		case OutcomeDraw:
			o.Draws++
		default:
			o.Losses++
		}
		o.TotalScore += r.TeamScore
		if r.TeamScore > o.HighestScore {
			o.HighestScore = r.TeamScore
		}

		if streakOpen {
			switch {
			case o.CurrentStreak == 0:
				o.CurrentStreak, o.StreakType = 1, outcome.String()
			case o.StreakType == outcome.String():
				o.CurrentStreak++
			default:
				streakOpen = false
			}
		}

		key := unassignedCompetition
		if r.CompetitionType.Valid {
			key = r.CompetitionType.String
		}
		cs := stats.ByCompetition[key]
		cs.Matches++
		if outcome == OutcomeWin {
			cs.Wins++
		}
		cs.TotalScore += r.TeamScore
		if r.TeamScore > cs.HighestScore {
			cs.HighestScore = r.TeamScore
		}
		stats.ByCompetition[key] = cs

		if i < recentMatchLimit {
			stats.RecentMatches = append(stats.RecentMatches, PlayerMatch{
				MatchID:         r.MatchID,
				LeagueID:        r.LeagueID,
				League:          r.LeagueName,
				CompetitionType: key,
				Opponent:        r.OpponentName,
				Score:           r.TeamScore,
				OpponentScore:   r.OpponentScore,
				Result:          outcome.String(),
				PlayedAt:        nullTimePtr(r.PlayedAt),
			})
		}
	}

	if o.MatchesPlayed > 0 {
		o.WinRate = float64(o.Wins) * 100 / float64(o.MatchesPlayed)
	}
	return stats
}

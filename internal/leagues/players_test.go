package leagues

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/codr1/oche/internal/store"
	"github.com/codr1/oche/internal/testutil"
)

func TestSummarisePlayerStreakAndCompetitions(t *testing.T) {
	row := func(own, opp int64, competition string) store.PlayerResultRow {
		r := store.PlayerResultRow{TeamScore: own, OpponentScore: opp, OpponentName: "X", LeagueName: "L"}
		if competition != "" {
			r.CompetitionType = sql.NullString{String: competition, Valid: true}
		}
		return r
	}
	results := []store.PlayerResultRow{
		row(3, 0, "501"),
		row(3, 2, "501"),
		row(1, 3, ""),
		row(4, 1, "Cricket"),
	}

	stats := SummarisePlayer(results)
	o := stats.Overview
	if o.MatchesPlayed != 4 || o.Wins != 3 || o.Losses != 1 || o.Draws != 0 {
		t.Fatalf("unexpected record %+v", o)
	}
	if o.TotalScore != 11 || o.HighestScore != 4 || o.WinRate != 75 {
		t.Fatalf("unexpected scores %+v", o)
	}
	if o.CurrentStreak != 2 || o.StreakType != "win" {
		t.Fatalf("expected a two match win streak, got %d %s", o.CurrentStreak, o.StreakType)
	}
	if cs := stats.ByCompetition["501"]; cs.Matches != 2 || cs.Wins != 2 || cs.TotalScore != 6 || cs.HighestScore != 3 {
		t.Fatalf("unexpected 501 stats %+v", cs)
	}
	if cs := stats.ByCompetition[unassignedCompetition]; cs.Matches != 1 || cs.Wins != 0 {
		t.Fatalf("unexpected unassigned stats %+v", cs)
	}
	if len(stats.RecentMatches) != 4 || stats.RecentMatches[2].Result != "loss" {
		t.Fatalf("unexpected recent matches %+v", stats.RecentMatches)
	}
}

func TestSummarisePlayerEmptyAndCapped(t *testing.T) {
	empty := SummarisePlayer(nil)
	if empty.Overview.StreakType != "none" || empty.Overview.WinRate != 0 || len(empty.RecentMatches) != 0 {
		t.Fatalf("unexpected empty summary %+v", empty)
	}

	many := make([]store.PlayerResultRow, recentMatchLimit+2)
	for i := range many {
		many[i] = store.PlayerResultRow{MatchID: int64(i + 1), TeamScore: 2, OpponentScore: 2}
	}
	stats := SummarisePlayer(many)
	if len(stats.RecentMatches) != recentMatchLimit || stats.RecentMatches[0].MatchID != 1 {
		t.Fatalf("expected the %d newest matches, got %d", recentMatchLimit, len(stats.RecentMatches))
	}
	if stats.Overview.Draws != int64(len(many)) || stats.Overview.CurrentStreak != len(many) || stats.Overview.StreakType != "draw" {
		t.Fatalf("unexpected draw summary %+v", stats.Overview)
	}
}

func TestStatsForPlayerFromRecordedResults(t *testing.T) {
	database, league, teams, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B", "C")
	ctx := context.Background()
	a, b, c := teams[0], teams[1], teams[2]

	generated, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	record := func(m Match, teamID, own, opp int64) {
		t.Helper()
		s1, s2 := own, opp
		if m.Team1ID != teamID {
			s1, s2 = opp, own
		}
		if _, err := RecordResult(ctx, database, ResultInput{MatchID: m.ID, Team1Score: score(s1), Team2Score: score(s2), RecordedBy: admin.ID}); err != nil {
			t.Fatalf("record match %d: %v", m.ID, err)
		}
	}
	record(matchBetween(t, generated.Matches, a.ID, b.ID), a.ID, 3, 1)
	record(matchBetween(t, generated.Matches, a.ID, c.ID), a.ID, 2, 2)

	stats, err := StatsForPlayer(ctx, database.Queries, a.Player1ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	o := stats.Overview
	if o.MatchesPlayed != 2 || o.Wins != 1 || o.Draws != 1 || o.Losses != 0 {
		t.Fatalf("unexpected record %+v", o)
	}
	if o.TotalScore != 5 || o.HighestScore != 3 {
		t.Fatalf("unexpected scores %+v", o)
	}
	if stats.User.ID != a.Player1ID || stats.ByCompetition[unassignedCompetition].Matches != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	other, err := StatsForPlayer(ctx, database.Queries, b.Player1ID)
	if err != nil {
		t.Fatalf("stats for B: %v", err)
	}
	if other.Overview.MatchesPlayed != 1 || other.Overview.Losses != 1 || other.RecentMatches[0].Opponent != "A" {
		t.Fatalf("unexpected stats for B %+v", other)
	}

	if _, err := StatsForPlayer(ctx, database.Queries, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

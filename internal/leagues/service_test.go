package leagues

import (
	"context"
	"errors"
	"testing"

	appdb "github.com/codr1/oche/internal/db"
	"github.com/codr1/oche/internal/store"
	"github.com/codr1/oche/internal/testutil"
)

func score(v int64) *int64 {
	return &v
}

func setupLeague(t *testing.T, opts testutil.LeagueOptions, names ...string) (*appdb.DB, store.League, []store.Team, store.User) {
	t.Helper()

	database := testutil.NewTestDB(t)
	admin := testutil.CreateUser(t, database, "Admin", "admin")
	league := testutil.CreateLeague(t, database, admin.ID, "Tuesday Night", opts)
	teams := testutil.CreateTeams(t, database, league.ID, names...)
	return database, league, teams, admin
}

func matchBetween(t *testing.T, matches []Match, team1, team2 int64) Match {
	t.Helper()
	for _, m := range matches {
		if (m.Team1ID == team1 && m.Team2ID == team2) || (m.Team1ID == team2 && m.Team2ID == team1) {
			return m
		}
	}
	t.Fatalf("no match between %d and %d", team1, team2)
	return Match{}
}

func standingFor(t *testing.T, standings []Standing, teamID int64) Standing {
	t.Helper()
	for _, s := range standings {
		if s.TeamID == teamID {
			return s
		}
	}
	t.Fatalf("no standing for team %d", teamID)
	return Standing{}
}

func TestGenerateFixturesConcreteScenario(t *testing.T) {
	database, league, teams, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B", "C", "D")
	ctx := context.Background()
	a, b, c, d := teams[0].ID, teams[1].ID, teams[2].ID, teams[3].ID

	generated, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	if len(generated.Matches) != 6 {
		t.Fatalf("expected 6 matches, got %d", len(generated.Matches))
	}
	wantPairs := [][3]int64{{1, a, d}, {1, b, c}, {2, a, c}, {2, d, b}, {3, a, b}, {3, c, d}}
	for i, w := range wantPairs {
		m := generated.Matches[i]
		if int64(m.Round) != w[0] || m.Team1ID != w[1] || m.Team2ID != w[2] || m.Status != StatusScheduled {
			t.Fatalf("match %d: expected round %d %d-%d, got %+v", i, w[0], w[1], w[2], m)
		}
	}
	if len(generated.Standings) != 4 {
		t.Fatalf("expected 4 seeded standings, got %d", len(generated.Standings))
	}

	ad := matchBetween(t, generated.Matches, a, d)
	if _, err := RecordResult(ctx, database, ResultInput{MatchID: ad.ID, Team1Score: score(3), Team2Score: score(1), RecordedBy: admin.ID}); err != nil {
		t.Fatalf("record A-D: %v", err)
	}
	bc := matchBetween(t, generated.Matches, b, c)
	outcome, err := RecordResult(ctx, database, ResultInput{MatchID: bc.ID, Team1Score: score(2), Team2Score: score(2), RecordedBy: admin.ID})
	if err != nil {
		t.Fatalf("record B-C: %v", err)
	}
	if outcome.Match.WinnerTeamID != nil {
		t.Fatalf("expected draw with no winner, got %d", *outcome.Match.WinnerTeamID)
	}

	standings := outcome.Standings
	sa := standingFor(t, standings, a)
	if sa.MatchesPlayed != 1 || sa.MatchesWon != 1 || sa.Points != 3 || sa.PointsFor != 3 || sa.PointsAgainst != 1 || sa.PointDifference != 2 || sa.Position != 1 {
		t.Fatalf("unexpected standing for A: %+v", sa)
	}
	for _, id := range []int64{b, c} {
		s := standingFor(t, standings, id)
		if s.MatchesPlayed != 1 || s.MatchesDrawn != 1 || s.Points != 1 || s.PointsFor != 2 || s.PointsAgainst != 2 || s.PointDifference != 0 {
			t.Fatalf("unexpected standing for team %d: %+v", id, s)
		}
	}
	sd := standingFor(t, standings, d)
	if sd.MatchesPlayed != 1 || sd.MatchesLost != 1 || sd.Points != 0 || sd.PointsFor != 1 || sd.PointsAgainst != 3 || sd.PointDifference != -2 || sd.Position != 4 {
		t.Fatalf("unexpected standing for D: %+v", sd)
	}

	stored, err := LeagueStandings(ctx, database.Queries, league.ID)
	if err != nil {
		t.Fatalf("load standings: %v", err)
	}
	var played int64
	for _, s := range stored {
		played += s.MatchesPlayed
	}
	completed, err := database.Queries.CountCompletedMatches(ctx, league.ID)
	if err != nil {
		t.Fatalf("count completed: %v", err)
	}
	if played != 2*completed {
		t.Fatalf("expected matches played %d to be twice completed %d", played, completed)
	}
}

func TestGenerateFixturesIsOneShot(t *testing.T) {
	database, league, _, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B", "C")
	ctx := context.Background()

	first, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	if len(first.Byes) != 3 {
		t.Fatalf("expected 3 byes for 3 teams, got %d", len(first.Byes))
	}

	_, err = GenerateFixtures(ctx, database, league.ID, admin.ID)
	if !errors.Is(err, ErrMatchesAlreadyGenerated) || !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrMatchesAlreadyGenerated, got %v", err)
	}

	count, err := database.Queries.CountMatches(ctx, league.ID)
	if err != nil {
		t.Fatalf("count matches: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 matches after the rejected retry, got %d", count)
	}
}

func TestGenerateFixturesPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("league not found", func(t *testing.T) {
		database := testutil.NewTestDB(t)
		_, err := GenerateFixtures(ctx, database, 999, 1)
		if !errors.Is(err, ErrLeagueNotFound) || !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrLeagueNotFound, got %v", err)
		}
	})

	t.Run("insufficient teams", func(t *testing.T) {
		database, league, _, admin := setupLeague(t, testutil.LeagueOptions{}, "Solo")
		_, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
		if !errors.Is(err, ErrInsufficientTeams) {
			t.Fatalf("expected ErrInsufficientTeams, got %v", err)
		}
	})

	t.Run("inactive teams do not count", func(t *testing.T) {
		database, league, teams, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B")
		if err := DeactivateTeam(ctx, database, league.ID, teams[1].ID); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		_, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
		if !errors.Is(err, ErrInsufficientTeams) {
			t.Fatalf("expected ErrInsufficientTeams, got %v", err)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		database, league, _, admin := setupLeague(t, testutil.LeagueOptions{Format: "hybrid"}, "A", "B")
		_, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
		}
	})
}

func TestRecordResultRejectsRescoring(t *testing.T) {
	database, league, _, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B")
	ctx := context.Background()

	generated, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	matchID := generated.Matches[0].ID

	if _, err := RecordResult(ctx, database, ResultInput{MatchID: matchID, Team1Score: score(4), Team2Score: score(2), RecordedBy: admin.ID}); err != nil {
		t.Fatalf("record result: %v", err)
	}
	_, err = RecordResult(ctx, database, ResultInput{MatchID: matchID, Team1Score: score(0), Team2Score: score(5), RecordedBy: admin.ID})
	if !errors.Is(err, ErrMatchAlreadyCompleted) || !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrMatchAlreadyCompleted, got %v", err)
	}

	stored, err := database.Queries.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if stored.Team1Score.Int64 != 4 || stored.Team2Score.Int64 != 2 {
		t.Fatalf("expected stored scores 4-2, got %d-%d", stored.Team1Score.Int64, stored.Team2Score.Int64)
	}

	standings, err := LeagueStandings(ctx, database.Queries, league.ID)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	for _, s := range standings {
		if s.MatchesPlayed != 1 {
			t.Fatalf("expected one match played for team %d, got %d", s.TeamID, s.MatchesPlayed)
		}
	}

	updated, err := database.Queries.GetLeague(ctx, league.ID)
	if err != nil {
		t.Fatalf("get league: %v", err)
	}
	if updated.Status != LeagueStatusCompleted {
		t.Fatalf("expected league completed after its only match, got %s", updated.Status)
	}
}

func TestRecordResultValidation(t *testing.T) {
	database, league, _, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B")
	ctx := context.Background()

	generated, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	matchID := generated.Matches[0].ID

	tests := []struct {
		name  string
		input ResultInput
		want  error
	}{
		{"negative", ResultInput{MatchID: matchID, Team1Score: score(-1), Team2Score: score(2)}, ErrNegativeScore},
		{"missing", ResultInput{MatchID: matchID, Team1Score: score(1)}, ErrMissingScore},
		{"unknown match", ResultInput{MatchID: 12345, Team1Score: score(1), Team2Score: score(0)}, ErrMatchNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RecordResult(ctx, database, tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	stored, err := database.Queries.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if stored.Status != StatusScheduled {
		t.Fatalf("expected match to stay scheduled, got %s", stored.Status)
	}
}

func TestRecordResultMissingStandingRollsBack(t *testing.T) {
	database, league, teams, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B")
	ctx := context.Background()

	generated, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	if _, err := database.ExecContext(ctx, "DELETE FROM standings WHERE team_id = ?", teams[1].ID); err != nil {
		t.Fatalf("delete standing: %v", err)
	}

	matchID := generated.Matches[0].ID
	_, err = RecordResult(ctx, database, ResultInput{MatchID: matchID, Team1Score: score(3), Team2Score: score(0), RecordedBy: admin.ID})
	if !errors.Is(err, ErrMissingStanding) || !errors.Is(err, ErrInconsistency) {
		t.Fatalf("expected ErrMissingStanding, got %v", err)
	}

	stored, err := database.Queries.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if stored.Status != StatusScheduled || stored.Team1Score.Valid {
		t.Fatalf("expected the result to be rolled back, got %+v", stored)
	}
	remaining, err := LeagueStandings(ctx, database.Queries, league.ID)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(remaining) != 1 || remaining[0].MatchesPlayed != 0 {
		t.Fatalf("expected untouched standing for A, got %+v", remaining)
	}
}

func TestRecalculatePositionsIsStable(t *testing.T) {
	database, league, teams, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B", "C", "D")
	ctx := context.Background()

	generated, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	for i, m := range generated.Matches[:4] {
		if _, err := RecordResult(ctx, database, ResultInput{MatchID: m.ID, Team1Score: score(int64(i % 3)), Team2Score: score(1), RecordedBy: admin.ID}); err != nil {
			t.Fatalf("record result %d: %v", i, err)
		}
	}

	first, err := RecalculatePositions(ctx, database, league.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	second, err := RecalculatePositions(ctx, database, league.ID)
	if err != nil {
		t.Fatalf("recalculate again: %v", err)
	}
	if len(first) != len(teams) || len(second) != len(teams) {
		t.Fatalf("expected %d rows, got %d and %d", len(teams), len(first), len(second))
	}
	for i := range first {
		if first[i].TeamID != second[i].TeamID || first[i].Position != second[i].Position {
			t.Fatalf("position %d changed between runs: %+v vs %+v", i+1, first[i], second[i])
		}
	}
}

func TestKnockoutAdvancesFromRecordedWinners(t *testing.T) {
	database, league, teams, admin := setupLeague(t, testutil.LeagueOptions{Format: "knockout"}, "S1", "S2", "S3", "S4", "S5")
	ctx := context.Background()

	generated, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	if len(generated.Byes) != 3 || len(generated.Matches) != 1 {
		t.Fatalf("expected 3 byes and 1 match, got %d and %d", len(generated.Byes), len(generated.Matches))
	}
	if generated.Standings != nil {
		t.Fatal("expected no standings for knockout")
	}
	if _, err := LeagueStandings(ctx, database.Queries, league.ID); !errors.Is(err, ErrNoStandings) {
		t.Fatalf("expected ErrNoStandings, got %v", err)
	}

	opener := generated.Matches[0]
	if _, err := RecordResult(ctx, database, ResultInput{MatchID: opener.ID, Team1Score: score(2), Team2Score: score(2), RecordedBy: admin.ID}); !errors.Is(err, ErrKnockoutDraw) {
		t.Fatalf("expected ErrKnockoutDraw, got %v", err)
	}

	// S5 upsets S4 and must meet the top seed.
	outcome, err := RecordResult(ctx, database, ResultInput{MatchID: opener.ID, Team1Score: score(1), Team2Score: score(3), RecordedBy: admin.ID})
	if err != nil {
		t.Fatalf("record opener: %v", err)
	}
	if len(outcome.NextRound) != 2 {
		t.Fatalf("expected 2 second round matches, got %d", len(outcome.NextRound))
	}
	first := outcome.NextRound[0]
	if first.Round != 2 || first.MatchNumber != 2 || first.Team1ID != teams[0].ID || first.Team2ID != teams[4].ID {
		t.Fatalf("expected S1 v S5 as match 2, got %+v", first)
	}
	second := outcome.NextRound[1]
	if second.Team1ID != teams[1].ID || second.Team2ID != teams[2].ID {
		t.Fatalf("expected S2 v S3, got %+v", second)
	}

	out1, err := RecordResult(ctx, database, ResultInput{MatchID: first.ID, Team1Score: score(3), Team2Score: score(0), RecordedBy: admin.ID})
	if err != nil {
		t.Fatalf("record semi 1: %v", err)
	}
	if len(out1.NextRound) != 0 {
		t.Fatal("expected no final until both semis are done")
	}
	out2, err := RecordResult(ctx, database, ResultInput{MatchID: second.ID, Team1Score: score(0), Team2Score: score(3), RecordedBy: admin.ID})
	if err != nil {
		t.Fatalf("record semi 2: %v", err)
	}
	if len(out2.NextRound) != 1 {
		t.Fatalf("expected the final, got %d matches", len(out2.NextRound))
	}
	final := out2.NextRound[0]
	if final.Team1ID != teams[0].ID || final.Team2ID != teams[2].ID || final.Round != 3 {
		t.Fatalf("expected final S1 v S3 in round 3, got %+v", final)
	}

	done, err := RecordResult(ctx, database, ResultInput{MatchID: final.ID, Team1Score: score(2), Team2Score: score(3), RecordedBy: admin.ID})
	if err != nil {
		t.Fatalf("record final: %v", err)
	}
	if !done.LeagueCompleted || done.ChampionTeamID == nil || *done.ChampionTeamID != teams[2].ID {
		t.Fatalf("expected S3 champion, got %+v", done)
	}
}

func TestRemoveTeamWithMatchesIsRejected(t *testing.T) {
	database, league, teams, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B", "C")
	ctx := context.Background()

	if err := RemoveTeam(ctx, database, league.ID, teams[2].ID); err != nil {
		t.Fatalf("remove unscheduled team: %v", err)
	}
	if _, err := GenerateFixtures(ctx, database, league.ID, admin.ID); err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	if err := RemoveTeam(ctx, database, league.ID, teams[0].ID); !errors.Is(err, ErrTeamHasMatches) {
		t.Fatalf("expected ErrTeamHasMatches, got %v", err)
	}
	if err := RemoveTeam(ctx, database, league.ID+1, teams[0].ID); !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestRemoveTeamHoldingKnockoutBye(t *testing.T) {
	database, league, _, admin := setupLeague(t, testutil.LeagueOptions{Format: string(FormatKnockout)}, "S1", "S2", "S3")
	ctx := context.Background()

	generated, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	if len(generated.Byes) != 1 {
		t.Fatalf("expected one bye, got %+v", generated.Byes)
	}
	holder := generated.Byes[0].Team.ID

	err = RemoveTeam(ctx, database, league.ID, holder)
	if !errors.Is(err, ErrTeamHasMatches) || !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrTeamHasMatches for the bye holder, got %v", err)
	}
	if _, err := database.Queries.GetTeam(ctx, holder); err != nil {
		t.Fatalf("expected bye holder to survive, got %v", err)
	}
}

func TestGenerateFixturesRequiresOpenLeague(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		status string
		want   error
	}{
		{LeagueStatusDraft, nil},
		{LeagueStatusRegistration, nil},
		{LeagueStatusCancelled, ErrLeagueNotSchedulable},
		{LeagueStatusCompleted, ErrLeagueNotSchedulable},
		{LeagueStatusActive, ErrLeagueNotSchedulable},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			database, league, _, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B")
			if _, err := database.Queries.UpdateLeagueStatus(ctx, store.UpdateLeagueStatusParams{ID: league.ID, Status: tc.status}); err != nil {
				t.Fatalf("set status: %v", err)
			}

			_, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected fixtures, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) || !errors.Is(err, ErrPreconditionFailed) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			count, err := database.Queries.CountMatches(ctx, league.ID)
			if err != nil {
				t.Fatalf("count matches: %v", err)
			}
			reloaded, err := database.Queries.GetLeague(ctx, league.ID)
			if err != nil {
				t.Fatalf("get league: %v", err)
			}
			if count != 0 || reloaded.Status != tc.status {
				t.Fatalf("expected no writes, got %d matches and status %s", count, reloaded.Status)
			}
		})
	}
}

func TestRecordResultRequiresActiveLeague(t *testing.T) {
	database, league, _, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B", "C", "D")
	ctx := context.Background()

	generated, err := GenerateFixtures(ctx, database, league.ID, admin.ID)
	if err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	if _, err := ChangeStatus(ctx, database.Queries, league.ID, LeagueStatusCancelled); err != nil {
		t.Fatalf("cancel league: %v", err)
	}

	matchID := generated.Matches[0].ID
	_, err = RecordResult(ctx, database, ResultInput{MatchID: matchID, Team1Score: score(3), Team2Score: score(1), RecordedBy: admin.ID})
	if !errors.Is(err, ErrLeagueNotActive) || !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrLeagueNotActive, got %v", err)
	}

	row, err := database.Queries.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if row.Status != StatusScheduled || row.Team1Score.Valid {
		t.Fatalf("expected match untouched, got %+v", row)
	}
	reloaded, err := database.Queries.GetLeague(ctx, league.ID)
	if err != nil {
		t.Fatalf("get league: %v", err)
	}
	if reloaded.Status != LeagueStatusCancelled {
		t.Fatalf("expected league to stay cancelled, got %s", reloaded.Status)
	}
}

func TestDeactivatedTeamKeepsStandingRow(t *testing.T) {
	database, league, teams, admin := setupLeague(t, testutil.LeagueOptions{}, "A", "B", "C", "D")
	ctx := context.Background()

	if _, err := GenerateFixtures(ctx, database, league.ID, admin.ID); err != nil {
		t.Fatalf("generate fixtures: %v", err)
	}
	if err := DeactivateTeam(ctx, database, league.ID, teams[3].ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	team, err := database.Queries.GetTeam(ctx, teams[3].ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if team.IsActive {
		t.Fatal("expected team to be inactive")
	}
	standings, err := LeagueStandings(ctx, database.Queries, league.ID)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(standings) != 4 {
		t.Fatalf("expected 4 standing rows after deactivation, got %d", len(standings))
	}
	standingFor(t, standings, teams[3].ID)
}

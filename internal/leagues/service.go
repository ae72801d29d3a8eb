package leagues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appdb "github.com/codr1/oche/internal/db"
	"github.com/codr1/oche/internal/store"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	LeagueStatusDraft        = "draft"
	LeagueStatusRegistration = "registration"
	LeagueStatusActive       = "active"
	LeagueStatusCompleted    = "completed"
	LeagueStatusCancelled    = "cancelled"
)

var now = func() time.Time { return time.Now().UTC() }

type Match struct {
	ID              int64      `json:"id"`
	LeagueID        int64      `json:"leagueId"`
	Round           int        `json:"round"`
	MatchNumber     int        `json:"matchNumber"`
	Team1ID         int64      `json:"team1Id"`
	Team2ID         int64      `json:"team2Id"`
	Status          string     `json:"status"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	PlayedAt        *time.Time `json:"playedAt,omitempty"`
	Team1Score      *int64     `json:"team1Score"`
	Team2Score      *int64     `json:"team2Score"`
	WinnerTeamID    *int64     `json:"winnerTeamId"`
	ResultEnteredBy *int64     `json:"resultEnteredBy,omitempty"`
	ResultEnteredAt *time.Time `json:"resultEnteredAt,omitempty"`
}

func MatchFromRow(row store.LeagueMatch) Match {
	return Match{
		ID:              row.ID,
		LeagueID:        row.LeagueID,
		Round:           int(row.Round),
		MatchNumber:     int(row.MatchNumber),
		Team1ID:         row.Team1ID,
		Team2ID:         row.Team2ID,
		Status:          row.Status,
		ScheduledAt:     nullTimePtr(row.ScheduledAt),
		PlayedAt:        nullTimePtr(row.PlayedAt),
		Team1Score:      nullInt64Ptr(row.Team1Score),
		Team2Score:      nullInt64Ptr(row.Team2Score),
		WinnerTeamID:    nullInt64Ptr(row.WinnerTeamID),
		ResultEnteredBy: nullInt64Ptr(row.ResultEnteredBy),
		ResultEnteredAt: nullTimePtr(row.ResultEnteredAt),
	}
}

type GenerationResult struct {
	LeagueID  int64      `json:"leagueId"`
	Format    Format     `json:"format"`
	Matches   []Match    `json:"matches"`
	Byes      []Bye      `json:"byes"`
	Standings []Standing `json:"standings,omitempty"`
}

// GenerateFixtures creates the league's fixtures exactly once. All
// preconditions are checked before the first write and everything is
// written in one transaction.
func GenerateFixtures(ctx context.Context, database *appdb.DB, leagueID, actorID int64) (*GenerationResult, error) {
	var result *GenerationResult
	err := database.RunInTx(ctx, func(tx *appdb.DB) error {
		var err error
		result, err = generateFixtures(ctx, tx.Queries, leagueID, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func generateFixtures(ctx context.Context, q *store.Queries, leagueID, actorID int64) (*GenerationResult, error) {
	league, err := loadLeague(ctx, q, leagueID)
	if err != nil {
		return nil, err
	}

	existing, err := q.CountMatches(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("count matches: %w", err)
	}
	if existing > 0 {
		return nil, ErrMatchesAlreadyGenerated
	}
	switch league.Status {
	case LeagueStatusDraft, LeagueStatusRegistration:
	default:
		return nil, ErrLeagueNotSchedulable
	}

	rows, err := q.ListActiveTeams(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list active teams: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrInsufficientTeams
	}
	teams := make([]Team, len(rows))
	for i, row := range rows {
		teams[i] = Team{ID: row.ID, Name: row.Name}
	}

	format := Format(league.TournamentFormat)
	var fixtures Fixtures
	switch format {
	case FormatRoundRobin:
		fixtures, err = GenerateRoundRobin(teams)
	case FormatKnockout:
		fixtures, err = GenerateKnockout(teams)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{
		LeagueID: leagueID,
		Format:   format,
		Byes:     fixtures.Byes,
		Matches:  make([]Match, 0, len(fixtures.Matches)),
	}
	if result.Byes == nil {
		result.Byes = []Bye{}
	}

	for _, pairing := range fixtures.Matches {
		row, err := q.CreateMatch(ctx, store.CreateMatchParams{
			LeagueID:    leagueID,
			Round:       int64(pairing.Round),
			MatchNumber: int64(pairing.MatchNumber),
			Team1ID:     pairing.Team1.ID,
			Team2ID:     pairing.Team2.ID,
			CreatedBy:   actorID,
		})
		if err != nil {
			return nil, fmt.Errorf("create match %d: %w", pairing.MatchNumber, err)
		}
		result.Matches = append(result.Matches, MatchFromRow(row))
	}

	for _, bye := range fixtures.Byes {
		if err := q.CreateBye(ctx, store.CreateByeParams{
			LeagueID: leagueID,
			Round:    int64(bye.Round),
			TeamID:   bye.Team.ID,
		}); err != nil {
			return nil, fmt.Errorf("create bye: %w", err)
		}
	}

	for _, seed := range fixtures.Standings {
		if err := q.CreateStanding(ctx, store.CreateStandingParams{
			LeagueID: leagueID,
			TeamID:   seed.TeamID,
			Position: int64(seed.Position),
		}); err != nil {
			return nil, fmt.Errorf("seed standing: %w", err)
		}
	}

	if _, err := q.UpdateLeagueStatus(ctx, store.UpdateLeagueStatusParams{ID: leagueID, Status: LeagueStatusActive}); err != nil {
		return nil, fmt.Errorf("activate league: %w", err)
	}
	if err := q.SetLeagueRegistration(ctx, store.SetLeagueRegistrationParams{ID: leagueID, RegistrationOpen: false}); err != nil {
		return nil, fmt.Errorf("close registration: %w", err)
	}

	if format == FormatRoundRobin {
		result.Standings, err = listStandings(ctx, q, leagueID)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

type ResultInput struct {
	MatchID    int64
	Team1Score *int64
	Team2Score *int64
	RecordedBy int64
}

type ResultOutcome struct {
	Match           Match      `json:"match"`
	Format          Format     `json:"format"`
	Standings       []Standing `json:"standings,omitempty"`
	NextRound       []Match    `json:"nextRound,omitempty"`
	LeagueCompleted bool       `json:"leagueCompleted"`
	ChampionTeamID  *int64     `json:"championTeamId,omitempty"`
}

// RecordResult finalises a scheduled match. Round robin standings are
// updated and re-ranked, and knockout brackets advance, in the same
// transaction as the score.
func RecordResult(ctx context.Context, database *appdb.DB, input ResultInput) (*ResultOutcome, error) {
	if input.Team1Score == nil || input.Team2Score == nil {
		return nil, ErrMissingScore
	}
	if *input.Team1Score < 0 || *input.Team2Score < 0 {
		return nil, ErrNegativeScore
	}

	var outcome *ResultOutcome
	err := database.RunInTx(ctx, func(tx *appdb.DB) error {
		var err error
		outcome, err = recordResult(ctx, tx.Queries, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func recordResult(ctx context.Context, q *store.Queries, input ResultInput) (*ResultOutcome, error) {
	match, err := q.GetMatch(ctx, input.MatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("load match: %w", err)
	}
	switch match.Status {
	case StatusCompleted:
		return nil, ErrMatchAlreadyCompleted
	case StatusCancelled:
		return nil, ErrMatchCancelled
	}

	league, err := loadLeague(ctx, q, match.LeagueID)
	if err != nil {
		return nil, err
	}
	if league.Status != LeagueStatusActive {
		return nil, ErrLeagueNotActive
	}
	format := Format(league.TournamentFormat)

	s1, s2 := *input.Team1Score, *input.Team2Score
	if format == FormatKnockout && s1 == s2 {
		return nil, ErrKnockoutDraw
	}

	var winner sql.NullInt64
	switch Classify(s1, s2) {
	case OutcomeWin:
		winner = sql.NullInt64{Int64: match.Team1ID, Valid: true}
	case OutcomeLoss:
		winner = sql.NullInt64{Int64: match.Team2ID, Valid: true}
	}

	recordedAt := now()
	affected, err := q.CompleteMatch(ctx, store.CompleteMatchParams{
		ID:              match.ID,
		Team1Score:      s1,
		Team2Score:      s2,
		WinnerTeamID:    winner,
		PlayedAt:        recordedAt,
		ResultEnteredBy: input.RecordedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("complete match: %w", err)
	}
	if affected == 0 {
		return nil, ErrMatchAlreadyCompleted
	}

	updated, err := q.GetMatch(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("reload match: %w", err)
	}
	outcome := &ResultOutcome{Match: MatchFromRow(updated), Format: format}

	switch format {
	case FormatRoundRobin:
		cfg, err := ParseScoringConfig(league.ScoringConfig)
		if err != nil {
			return nil, err
		}
		standings, err := applyResult(ctx, q, league.ID, updated, cfg, recordedAt)
		if err != nil {
			return nil, err
		}
		outcome.Standings = standings

		remaining, err := q.CountScheduledMatches(ctx, league.ID)
		if err != nil {
			return nil, fmt.Errorf("count scheduled matches: %w", err)
		}
		if remaining == 0 {
			if err := completeLeague(ctx, q, league.ID); err != nil {
				return nil, err
			}
			outcome.LeagueCompleted = true
		}
	case FormatKnockout:
		next, champion, err := advanceKnockout(ctx, q, league.ID, updated.Round, input.RecordedBy)
		if err != nil {
			return nil, err
		}
		outcome.NextRound = next
		if champion != nil {
			if err := completeLeague(ctx, q, league.ID); err != nil {
				return nil, err
			}
			outcome.LeagueCompleted = true
			outcome.ChampionTeamID = champion
		}
	}

	return outcome, nil
}

// applyResult is the standings aggregator: one atomic increment per team,
// then a full re-rank.
func applyResult(ctx context.Context, q *store.Queries, leagueID int64, match store.LeagueMatch, cfg ScoringConfig, at time.Time) ([]Standing, error) {
	d1, d2 := ResultDeltas(match.Team1Score.Int64, match.Team2Score.Int64, cfg)
	for _, side := range []struct {
		teamID int64
		delta  StandingDelta
	}{
		{match.Team1ID, d1},
		{match.Team2ID, d2},
	} {
		affected, err := q.ApplyStandingResult(ctx, store.ApplyStandingResultParams{
			LeagueID:        leagueID,
			TeamID:          side.teamID,
			Won:             side.delta.Won,
			Drawn:           side.delta.Drawn,
			Lost:            side.delta.Lost,
			Points:          side.delta.Points,
			PointsFor:       side.delta.PointsFor,
			PointsAgainst:   side.delta.PointsAgainst,
			PointDifference: side.delta.PointDifference,
			UpdatedAt:       at,
		})
		if err != nil {
			return nil, fmt.Errorf("update standing for team %d: %w", side.teamID, err)
		}
		if affected == 0 {
			return nil, fmt.Errorf("league %d team %d: %w", leagueID, side.teamID, ErrMissingStanding)
		}
	}
	return rerank(ctx, q, leagueID, cfg)
}

// RecalculatePositions re-derives every position from the stored totals.
func RecalculatePositions(ctx context.Context, database *appdb.DB, leagueID int64) ([]Standing, error) {
	var standings []Standing
	err := database.RunInTx(ctx, func(tx *appdb.DB) error {
		league, err := loadLeague(ctx, tx.Queries, leagueID)
		if err != nil {
			return err
		}
		if Format(league.TournamentFormat) != FormatRoundRobin {
			return ErrNoStandings
		}
		cfg, err := ParseScoringConfig(league.ScoringConfig)
		if err != nil {
			return err
		}
		standings, err = rerank(ctx, tx.Queries, leagueID, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return standings, nil
}

func rerank(ctx context.Context, q *store.Queries, leagueID int64, cfg ScoringConfig) ([]Standing, error) {
	current, err := listStandings(ctx, q, leagueID)
	if err != nil {
		return nil, err
	}

	var results []MatchResult
	if usesHeadToHead(cfg) {
		completed, err := q.ListCompletedMatches(ctx, leagueID)
		if err != nil {
			return nil, fmt.Errorf("list completed matches: %w", err)
		}
		results = make([]MatchResult, 0, len(completed))
		for _, m := range completed {
			results = append(results, MatchResult{
				Team1ID:    m.Team1ID,
				Team2ID:    m.Team2ID,
				Team1Score: m.Team1Score.Int64,
				Team2Score: m.Team2Score.Int64,
			})
		}
	}

	previous := make(map[int64]int, len(current))
	for _, s := range current {
		previous[s.TeamID] = s.Position
	}

	ranked := RankStandings(current, results, cfg)
	for _, s := range ranked {
		if previous[s.TeamID] == s.Position {
			continue
		}
		if err := q.UpdateStandingPosition(ctx, store.UpdateStandingPositionParams{
			LeagueID: leagueID,
			TeamID:   s.TeamID,
			Position: int64(s.Position),
		}); err != nil {
			return nil, fmt.Errorf("update position for team %d: %w", s.TeamID, err)
		}
	}
	return ranked, nil
}

func usesHeadToHead(cfg ScoringConfig) bool {
	for _, rule := range cfg.TiebreakerRules {
		if rule == RuleHeadToHead {
			return true
		}
	}
	return false
}

// advanceKnockout creates the next round once every match in round is
// completed. It returns the champion when round was the final.
func advanceKnockout(ctx context.Context, q *store.Queries, leagueID, round, actorID int64) ([]Match, *int64, error) {
	roundMatches, err := q.ListRoundMatches(ctx, store.ListRoundMatchesParams{LeagueID: leagueID, Round: round})
	if err != nil {
		return nil, nil, fmt.Errorf("list round matches: %w", err)
	}
	for _, m := range roundMatches {
		if m.Status == StatusScheduled {
			return nil, nil, nil
		}
	}

	teamRows, err := q.ListTeams(ctx, leagueID)
	if err != nil {
		return nil, nil, fmt.Errorf("list teams: %w", err)
	}
	teams := make(map[int64]Team, len(teamRows))
	for _, t := range teamRows {
		teams[t.ID] = Team{ID: t.ID, Name: t.Name}
	}

	winners := make([]Team, 0, len(roundMatches))
	for _, m := range roundMatches {
		if m.Status != StatusCompleted || !m.WinnerTeamID.Valid {
			return nil, nil, fmt.Errorf("knockout match %d has no winner: %w", m.ID, ErrInconsistency)
		}
		winners = append(winners, teams[m.WinnerTeamID.Int64])
	}

	var byes []Team
	if round == 1 {
		byeRows, err := q.ListByes(ctx, leagueID)
		if err != nil {
			return nil, nil, fmt.Errorf("list byes: %w", err)
		}
		for _, b := range byeRows {
			if b.Round == 1 {
				byes = append(byes, teams[b.TeamID])
			}
		}
	}

	maxNumber, err := q.MaxMatchNumber(ctx, leagueID)
	if err != nil {
		return nil, nil, fmt.Errorf("max match number: %w", err)
	}
	pairings, err := NextKnockoutRound(int(round), byes, winners, int(maxNumber)+1)
	if err != nil {
		return nil, nil, err
	}
	if len(pairings) == 0 {
		if len(winners) != 1 {
			return nil, nil, fmt.Errorf("knockout final produced %d winners: %w", len(winners), ErrInconsistency)
		}
		champion := winners[0].ID
		return nil, &champion, nil
	}

	next := make([]Match, 0, len(pairings))
	for _, p := range pairings {
		row, err := q.CreateMatch(ctx, store.CreateMatchParams{
			LeagueID:    leagueID,
			Round:       int64(p.Round),
			MatchNumber: int64(p.MatchNumber),
			Team1ID:     p.Team1.ID,
			Team2ID:     p.Team2.ID,
			CreatedBy:   actorID,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create knockout match: %w", err)
		}
		next = append(next, MatchFromRow(row))
	}
	return next, nil, nil
}

func completeLeague(ctx context.Context, q *store.Queries, leagueID int64) error {
	if _, err := q.UpdateLeagueStatus(ctx, store.UpdateLeagueStatusParams{ID: leagueID, Status: LeagueStatusCompleted}); err != nil {
		return fmt.Errorf("complete league: %w", err)
	}
	return nil
}

// LeagueStandings returns the stored table in position order.
func LeagueStandings(ctx context.Context, q *store.Queries, leagueID int64) ([]Standing, error) {
	league, err := loadLeague(ctx, q, leagueID)
	if err != nil {
		return nil, err
	}
	if Format(league.TournamentFormat) != FormatRoundRobin {
		return nil, ErrNoStandings
	}
	return listStandings(ctx, q, leagueID)
}

// LeagueMatches lists fixtures in round and match number order.
func LeagueMatches(ctx context.Context, q *store.Queries, leagueID int64) ([]Match, error) {
	if _, err := loadLeague(ctx, q, leagueID); err != nil {
		return nil, err
	}
	rows, err := q.ListMatches(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, MatchFromRow(row))
	}
	return matches, nil
}

func listStandings(ctx context.Context, q *store.Queries, leagueID int64) ([]Standing, error) {
	rows, err := q.ListStandings(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	standings := make([]Standing, 0, len(rows))
	for _, row := range rows {
		s := Standing{
			TeamID:          row.TeamID,
			TeamName:        row.TeamName,
			Position:        int(row.Position),
			MatchesPlayed:   row.MatchesPlayed,
			MatchesWon:      row.MatchesWon,
			MatchesDrawn:    row.MatchesDrawn,
			MatchesLost:     row.MatchesLost,
			Points:          row.Points,
			PointsFor:       row.PointsFor,
			PointsAgainst:   row.PointsAgainst,
			PointDifference: row.PointDifference,
			LastUpdated:     row.LastUpdated,
		}
		s.WinPercentage = winPercentage(s)
		standings = append(standings, s)
	}
	return standings, nil
}

func loadLeague(ctx context.Context, q *store.Queries, leagueID int64) (store.League, error) {
	league, err := q.GetLeague(ctx, leagueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.League{}, ErrLeagueNotFound
		}
		return store.League{}, fmt.Errorf("load league: %w", err)
	}
	return league, nil
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	value := v.Int64
	return &value
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	value := v.Time
	return &value
}

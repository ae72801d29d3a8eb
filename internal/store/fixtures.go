package store

import (
	"context"
	"database/sql"
	"time"
)

const teamColumns = `id, league_id, name, player1_id, player2_id, is_active, created_at`

func scanTeam(row interface{ Scan(...interface{}) error }) (Team, error) {
	var t Team
	err := row.Scan(&t.ID, &t.LeagueID, &t.Name, &t.Player1ID, &t.Player2ID, &t.IsActive, &t.CreatedAt)
	return t, err
}

type CreateTeamParams struct {
	LeagueID  int64
	Name      string
	Player1ID int64
	Player2ID sql.NullInt64
}

func (q *Queries) CreateTeam(ctx context.Context, arg CreateTeamParams) (Team, error) {
	id, err := q.insert(ctx, `
INSERT INTO teams (league_id, name, player1_id, player2_id) VALUES (?, ?, ?, ?)`,
		arg.LeagueID, arg.Name, arg.Player1ID, arg.Player2ID,
	)
	if err != nil {
		return Team{}, err
	}
	return q.GetTeam(ctx, id)
}

func (q *Queries) GetTeam(ctx context.Context, id int64) (Team, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id)
	return scanTeam(row)
}

func (q *Queries) listTeams(ctx context.Context, query string, args ...interface{}) ([]Team, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListTeams returns every team in registration order.
func (q *Queries) ListTeams(ctx context.Context, leagueID int64) ([]Team, error) {
	return q.listTeams(ctx, `SELECT `+teamColumns+` FROM teams WHERE league_id = ? ORDER BY id`, leagueID)
}

// ListActiveTeams returns active teams in registration order, which is the
// seed order used for fixture generation.
func (q *Queries) ListActiveTeams(ctx context.Context, leagueID int64) ([]Team, error) {
	return q.listTeams(ctx, `SELECT `+teamColumns+` FROM teams WHERE league_id = ? AND is_active = 1 ORDER BY id`, leagueID)
}

func (q *Queries) DeactivateTeam(ctx context.Context, id int64) (int64, error) {
	return q.execRows(ctx, `UPDATE teams SET is_active = 0 WHERE id = ?`, id)
}

func (q *Queries) DeleteTeam(ctx context.Context, id int64) (int64, error) {
	return q.execRows(ctx, `DELETE FROM teams WHERE id = ?`, id)
}

// CountTeamFixtureRefs counts the matches, byes and standing rows that
// reference the team. Any of them pins the team in place.
func (q *Queries) CountTeamFixtureRefs(ctx context.Context, teamID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM league_matches WHERE team1_id = ? OR team2_id = ?)
     + (SELECT COUNT(*) FROM league_byes WHERE team_id = ?)
     + (SELECT COUNT(*) FROM standings WHERE team_id = ?)`, teamID, teamID, teamID, teamID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const matchColumns = `id, league_id, round, match_number, team1_id, team2_id, status, scheduled_at,
	played_at, team1_score, team2_score, winner_team_id, result_entered_by, result_entered_at,
	reminder_sent_at, created_by, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (LeagueMatch, error) {
	var m LeagueMatch
	err := row.Scan(
		&m.ID, &m.LeagueID, &m.Round, &m.MatchNumber, &m.Team1ID, &m.Team2ID, &m.Status, &m.ScheduledAt,
		&m.PlayedAt, &m.Team1Score, &m.Team2Score, &m.WinnerTeamID, &m.ResultEnteredBy, &m.ResultEnteredAt,
		&m.ReminderSentAt, &m.CreatedBy, &m.CreatedAt,
	)
	return m, err
}

func (q *Queries) listMatches(ctx context.Context, query string, args ...interface{}) ([]LeagueMatch, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LeagueMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type CreateMatchParams struct {
	LeagueID    int64
	Round       int64
	MatchNumber int64
	Team1ID     int64
	Team2ID     int64
	ScheduledAt sql.NullTime
	CreatedBy   int64
}

func (q *Queries) CreateMatch(ctx context.Context, arg CreateMatchParams) (LeagueMatch, error) {
	id, err := q.insert(ctx, `
INSERT INTO league_matches (league_id, round, match_number, team1_id, team2_id, scheduled_at, created_by)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.LeagueID, arg.Round, arg.MatchNumber, arg.Team1ID, arg.Team2ID, arg.ScheduledAt, arg.CreatedBy,
	)
	if err != nil {
		return LeagueMatch{}, err
	}
	return q.GetMatch(ctx, id)
}

func (q *Queries) GetMatch(ctx context.Context, id int64) (LeagueMatch, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM league_matches WHERE id = ?`, id)
	return scanMatch(row)
}

func (q *Queries) ListMatches(ctx context.Context, leagueID int64) ([]LeagueMatch, error) {
	return q.listMatches(ctx, `
SELECT `+matchColumns+` FROM league_matches WHERE league_id = ? ORDER BY round, match_number`, leagueID)
}

type ListRoundMatchesParams struct {
	LeagueID int64
	Round    int64
}

func (q *Queries) ListRoundMatches(ctx context.Context, arg ListRoundMatchesParams) ([]LeagueMatch, error) {
	return q.listMatches(ctx, `
SELECT `+matchColumns+` FROM league_matches WHERE league_id = ? AND round = ? ORDER BY match_number`,
		arg.LeagueID, arg.Round,
	)
}

// ListCompletedMatches feeds head-to-head tie breaking.
func (q *Queries) ListCompletedMatches(ctx context.Context, leagueID int64) ([]LeagueMatch, error) {
	return q.listMatches(ctx, `
SELECT `+matchColumns+` FROM league_matches
WHERE league_id = ? AND status = 'completed'
ORDER BY round, match_number`, leagueID)
}

func (q *Queries) CountMatches(ctx context.Context, leagueID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM league_matches WHERE league_id = ?`, leagueID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

func (q *Queries) CountScheduledMatches(ctx context.Context, leagueID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM league_matches WHERE league_id = ? AND status = 'scheduled'`, leagueID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

func (q *Queries) CountCompletedMatches(ctx context.Context, leagueID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM league_matches WHERE league_id = ? AND status = 'completed'`, leagueID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

func (q *Queries) MaxMatchNumber(ctx context.Context, leagueID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT COALESCE(MAX(match_number), 0) FROM league_matches WHERE league_id = ?`, leagueID)
	var maxNumber int64
	err := row.Scan(&maxNumber)
	return maxNumber, err
}

type CompleteMatchParams struct {
	ID              int64
	Team1Score      int64
	Team2Score      int64
	WinnerTeamID    sql.NullInt64
	PlayedAt        time.Time
	ResultEnteredBy int64
}

// CompleteMatch records the final score only while the match is still
// scheduled. Zero rows affected means the match was already finalised.
func (q *Queries) CompleteMatch(ctx context.Context, arg CompleteMatchParams) (int64, error) {
	return q.execRows(ctx, `
UPDATE league_matches
SET status = 'completed',
    team1_score = ?,
    team2_score = ?,
    winner_team_id = ?,
    played_at = ?,
    result_entered_by = ?,
    result_entered_at = ?
WHERE id = ? AND status = 'scheduled'`,
		arg.Team1Score, arg.Team2Score, arg.WinnerTeamID, arg.PlayedAt,
		arg.ResultEnteredBy, arg.PlayedAt, arg.ID,
	)
}

type ListMatchesForReminderParams struct {
	From time.Time
	To   time.Time
}

func (q *Queries) ListMatchesForReminder(ctx context.Context, arg ListMatchesForReminderParams) ([]LeagueMatch, error) {
	return q.listMatches(ctx, `
SELECT `+matchColumns+` FROM league_matches
WHERE status = 'scheduled'
  AND reminder_sent_at IS NULL
  AND scheduled_at IS NOT NULL
  AND scheduled_at >= ?
  AND scheduled_at < ?
ORDER BY scheduled_at, id`,
		arg.From, arg.To,
	)
}

type MarkReminderSentParams struct {
	ID     int64
	SentAt time.Time
}

func (q *Queries) MarkReminderSent(ctx context.Context, arg MarkReminderSentParams) (int64, error) {
	return q.execRows(ctx, `
UPDATE league_matches SET reminder_sent_at = ? WHERE id = ? AND reminder_sent_at IS NULL`,
		arg.SentAt, arg.ID,
	)
}

type CreateByeParams struct {
	LeagueID int64
	Round    int64
	TeamID   int64
}

func (q *Queries) CreateBye(ctx context.Context, arg CreateByeParams) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO league_byes (league_id, round, team_id) VALUES (?, ?, ?)`,
		arg.LeagueID, arg.Round, arg.TeamID,
	)
	return err
}

func (q *Queries) ListByes(ctx context.Context, leagueID int64) ([]LeagueBye, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, league_id, round, team_id FROM league_byes WHERE league_id = ? ORDER BY round, id`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LeagueBye
	for rows.Next() {
		var b LeagueBye
		if err := rows.Scan(&b.ID, &b.LeagueID, &b.Round, &b.TeamID); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type CreateStandingParams struct {
	LeagueID int64
	TeamID   int64
	Position int64
}

func (q *Queries) CreateStanding(ctx context.Context, arg CreateStandingParams) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO standings (league_id, team_id, position) VALUES (?, ?, ?)`,
		arg.LeagueID, arg.TeamID, arg.Position,
	)
	return err
}

type ApplyStandingResultParams struct {
	LeagueID        int64
	TeamID          int64
	Won             int64
	Drawn           int64
	Lost            int64
	Points          int64
	PointsFor       int64
	PointsAgainst   int64
	PointDifference int64
	UpdatedAt       time.Time
}

// ApplyStandingResult adds one match worth of deltas in a single statement.
// Zero rows affected means the team has no standing row in the league.
func (q *Queries) ApplyStandingResult(ctx context.Context, arg ApplyStandingResultParams) (int64, error) {
	return q.execRows(ctx, `
UPDATE standings
SET matches_played = matches_played + 1,
    matches_won = matches_won + ?,
    matches_drawn = matches_drawn + ?,
    matches_lost = matches_lost + ?,
    points = points + ?,
    points_for = points_for + ?,
    points_against = points_against + ?,
    point_difference = point_difference + ?,
    last_updated = ?
WHERE league_id = ? AND team_id = ?`,
		arg.Won, arg.Drawn, arg.Lost, arg.Points, arg.PointsFor, arg.PointsAgainst,
		arg.PointDifference, arg.UpdatedAt, arg.LeagueID, arg.TeamID,
	)
}

type StandingRow struct {
	Standing
	TeamName string
}

func (q *Queries) ListStandings(ctx context.Context, leagueID int64) ([]StandingRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT s.id, s.league_id, s.team_id, s.position, s.matches_played, s.matches_won, s.matches_drawn,
       s.matches_lost, s.points, s.points_for, s.points_against, s.point_difference, s.last_updated,
       t.name
FROM standings s
JOIN teams t ON t.id = s.team_id
WHERE s.league_id = ?
ORDER BY s.position, s.team_id`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StandingRow
	for rows.Next() {
		var r StandingRow
		s := &r.Standing
		if err := rows.Scan(
			&s.ID, &s.LeagueID, &s.TeamID, &s.Position, &s.MatchesPlayed, &s.MatchesWon, &s.MatchesDrawn,
			&s.MatchesLost, &s.Points, &s.PointsFor, &s.PointsAgainst, &s.PointDifference, &s.LastUpdated,
			&r.TeamName,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type UpdateStandingPositionParams struct {
	LeagueID int64
	TeamID   int64
	Position int64
}

func (q *Queries) UpdateStandingPosition(ctx context.Context, arg UpdateStandingPositionParams) error {
	_, err := q.db.ExecContext(ctx, `
UPDATE standings SET position = ? WHERE league_id = ? AND team_id = ?`,
		arg.Position, arg.LeagueID, arg.TeamID,
	)
	return err
}

type ScheduleMatchParams struct {
	ID          int64
	ScheduledAt sql.NullTime
}

// ScheduleMatch sets or clears the start time of a scheduled match. A new time
// re-arms the reminder.
func (q *Queries) ScheduleMatch(ctx context.Context, arg ScheduleMatchParams) (int64, error) {
	return q.execRows(ctx, `
UPDATE league_matches SET scheduled_at = ?, reminder_sent_at = NULL
WHERE id = ? AND status = 'scheduled'`,
		arg.ScheduledAt, arg.ID,
	)
}

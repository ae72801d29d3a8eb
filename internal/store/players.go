package store

import (
	"context"
	"database/sql"
	"time"
)

// PlayerResultRow is one completed match seen from the side of a team the
// player belongs to.
type PlayerResultRow struct {
	MatchID         int64
	LeagueID        int64
	LeagueName      string
	CompetitionType sql.NullString
	TeamID          int64
	OpponentTeamID  int64
	OpponentName    string
	TeamScore       int64
	OpponentScore   int64
	WinnerTeamID    sql.NullInt64
	PlayedAt        sql.NullTime
}

// ListPlayerResults returns the completed matches of every team the user
// plays in, newest first.
func (q *Queries) ListPlayerResults(ctx context.Context, userID int64) ([]PlayerResultRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT m.id, m.league_id, l.name, ct.name,
       ut.id, ot.id, ot.name,
       CASE WHEN m.team1_id = ut.id THEN COALESCE(m.team1_score, 0) ELSE COALESCE(m.team2_score, 0) END,
       CASE WHEN m.team1_id = ut.id THEN COALESCE(m.team2_score, 0) ELSE COALESCE(m.team1_score, 0) END,
       m.winner_team_id, m.played_at
FROM league_matches m
JOIN teams ut ON ut.id IN (m.team1_id, m.team2_id) AND (ut.player1_id = ? OR ut.player2_id = ?)
JOIN teams ot ON ot.id = CASE WHEN m.team1_id = ut.id THEN m.team2_id ELSE m.team1_id END
JOIN leagues l ON l.id = m.league_id
LEFT JOIN competition_types ct ON ct.id = l.competition_type_id
WHERE m.status = 'completed'
ORDER BY COALESCE(m.played_at, m.result_entered_at, m.created_at) DESC, m.id DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PlayerResultRow
	for rows.Next() {
		var r PlayerResultRow
		if err := rows.Scan(
			&r.MatchID, &r.LeagueID, &r.LeagueName, &r.CompetitionType,
			&r.TeamID, &r.OpponentTeamID, &r.OpponentName,
			&r.TeamScore, &r.OpponentScore,
			&r.WinnerTeamID, &r.PlayedAt,
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

// CountPlayerLeagues counts the approved registrations a user holds, either
// as the registrant or as the named partner.
func (q *Queries) CountPlayerLeagues(ctx context.Context, userID int64) (total, active int64, err error) {
	row := q.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(CASE WHEN l.status = 'active' THEN 1 ELSE 0 END), 0)
FROM league_participants p
JOIN leagues l ON l.id = p.league_id
WHERE (p.user_id = ? OR p.partner_user_id = ?) AND p.status = 'approved'`, userID, userID)
	err = row.Scan(&total, &active)
	return total, active, err
}

type UserRegistrationRow struct {
	ParticipantID       int64
	Status              string
	PartnerUserID       sql.NullInt64
	PartnerName         sql.NullString
	JoinedAt            time.Time
	LeagueID            int64
	LeagueName          string
	LeagueStatus        string
	GameMode            string
	TournamentFormat    string
	RegistrationOpen    bool
	SeasonName          sql.NullString
	CompetitionTypeName sql.NullString
	TeamID              sql.NullInt64
	TeamName            sql.NullString
}

// ListUserRegistrations returns every registration naming the user, newest first.
func (q *Queries) ListUserRegistrations(ctx context.Context, userID int64) ([]UserRegistrationRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT p.id, p.status, p.partner_user_id, partner.name, p.created_at,
       l.id, l.name, l.status, l.game_mode, l.tournament_format, l.registration_open,
       s.name, ct.name, t.id, t.name
FROM league_participants p
JOIN leagues l ON l.id = p.league_id
LEFT JOIN users partner ON partner.id = p.partner_user_id
LEFT JOIN seasons s ON s.id = l.season_id
LEFT JOIN competition_types ct ON ct.id = l.competition_type_id
LEFT JOIN teams t ON t.id = p.team_id
WHERE p.user_id = ? OR p.partner_user_id = ?
ORDER BY p.created_at DESC, p.id DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UserRegistrationRow
	for rows.Next() {
		var r UserRegistrationRow
		if err := rows.Scan(
			&r.ParticipantID, &r.Status, &r.PartnerUserID, &r.PartnerName, &r.JoinedAt,
			&r.LeagueID, &r.LeagueName, &r.LeagueStatus, &r.GameMode, &r.TournamentFormat, &r.RegistrationOpen,
			&r.SeasonName, &r.CompetitionTypeName, &r.TeamID, &r.TeamName,
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

type UserSummaryRow struct {
	User
	Participations int64
	LeaguesCreated int64
}

// ListUsersWithCounts backs the admin user listing, newest accounts first.
func (q *Queries) ListUsersWithCounts(ctx context.Context) ([]UserSummaryRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT u.id, u.email, u.name, u.password_hash, u.role, u.created_at, u.updated_at,
       (SELECT COUNT(*) FROM league_participants p WHERE p.user_id = u.id),
       (SELECT COUNT(*) FROM leagues l WHERE l.created_by = u.id)
FROM users u
ORDER BY u.created_at DESC, u.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UserSummaryRow
	for rows.Next() {
		var r UserSummaryRow
		u := &r.User
		if err := rows.Scan(
			&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
			&r.Participations, &r.LeaguesCreated,
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

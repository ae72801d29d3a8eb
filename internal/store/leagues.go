package store

import (
	"context"
	"database/sql"
	"time"
)

const leagueColumns = `id, name, description, season_id, competition_type_id, game_mode,
	tournament_format, status, max_participants, registration_open, auto_approve,
	scoring_config, created_by, created_at, updated_at`

func scanLeague(row interface{ Scan(...interface{}) error }) (League, error) {
	var l League
	err := row.Scan(
		&l.ID, &l.Name, &l.Description, &l.SeasonID, &l.CompetitionTypeID, &l.GameMode,
		&l.TournamentFormat, &l.Status, &l.MaxParticipants, &l.RegistrationOpen, &l.AutoApprove,
		&l.ScoringConfig, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

type CreateLeagueParams struct {
	Name              string
	Description       string
	SeasonID          sql.NullInt64
	CompetitionTypeID sql.NullInt64
	GameMode          string
	TournamentFormat  string
	Status            string
	MaxParticipants   sql.NullInt64
	RegistrationOpen  bool
	AutoApprove       bool
	ScoringConfig     string
	CreatedBy         int64
}

func (q *Queries) CreateLeague(ctx context.Context, arg CreateLeagueParams) (League, error) {
	id, err := q.insert(ctx, `
INSERT INTO leagues (
    name, description, season_id, competition_type_id, game_mode, tournament_format,
    status, max_participants, registration_open, auto_approve, scoring_config, created_by
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Name, arg.Description, arg.SeasonID, arg.CompetitionTypeID, arg.GameMode, arg.TournamentFormat,
		arg.Status, arg.MaxParticipants, arg.RegistrationOpen, arg.AutoApprove, arg.ScoringConfig, arg.CreatedBy,
	)
	if err != nil {
		return League{}, err
	}
	return q.GetLeague(ctx, id)
}

func (q *Queries) GetLeague(ctx context.Context, id int64) (League, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+leagueColumns+` FROM leagues WHERE id = ?`, id)
	return scanLeague(row)
}

func (q *Queries) ListLeagues(ctx context.Context) ([]League, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+leagueColumns+` FROM leagues ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []League
	for rows.Next() {
		l, err := scanLeague(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type UpdateLeagueStatusParams struct {
	ID     int64
	Status string
}

func (q *Queries) UpdateLeagueStatus(ctx context.Context, arg UpdateLeagueStatusParams) (int64, error) {
	return q.execRows(ctx, `
UPDATE leagues SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		arg.Status, arg.ID,
	)
}

type SetLeagueRegistrationParams struct {
	ID               int64
	RegistrationOpen bool
}

func (q *Queries) SetLeagueRegistration(ctx context.Context, arg SetLeagueRegistrationParams) error {
	_, err := q.db.ExecContext(ctx, `
UPDATE leagues SET registration_open = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		arg.RegistrationOpen, arg.ID,
	)
	return err
}

const joinLinkColumns = `id, league_id, code, max_uses, uses, expires_at, is_active, created_by, created_at`

func scanJoinLink(row interface{ Scan(...interface{}) error }) (JoinLink, error) {
	var j JoinLink
	err := row.Scan(&j.ID, &j.LeagueID, &j.Code, &j.MaxUses, &j.Uses, &j.ExpiresAt, &j.IsActive, &j.CreatedBy, &j.CreatedAt)
	return j, err
}

type CreateJoinLinkParams struct {
	LeagueID  int64
	Code      string
	MaxUses   sql.NullInt64
	ExpiresAt sql.NullTime
	CreatedBy int64
}

func (q *Queries) CreateJoinLink(ctx context.Context, arg CreateJoinLinkParams) (JoinLink, error) {
	id, err := q.insert(ctx, `
INSERT INTO join_links (league_id, code, max_uses, expires_at, created_by)
VALUES (?, ?, ?, ?, ?)`,
		arg.LeagueID, arg.Code, arg.MaxUses, arg.ExpiresAt, arg.CreatedBy,
	)
	if err != nil {
		return JoinLink{}, err
	}
	row := q.db.QueryRowContext(ctx, `SELECT `+joinLinkColumns+` FROM join_links WHERE id = ?`, id)
	return scanJoinLink(row)
}

func (q *Queries) GetJoinLink(ctx context.Context, id int64) (JoinLink, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+joinLinkColumns+` FROM join_links WHERE id = ?`, id)
	return scanJoinLink(row)
}

func (q *Queries) GetJoinLinkByCode(ctx context.Context, code string) (JoinLink, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+joinLinkColumns+` FROM join_links WHERE code = ?`, code)
	return scanJoinLink(row)
}

func (q *Queries) ListJoinLinks(ctx context.Context, leagueID int64) ([]JoinLink, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT `+joinLinkColumns+` FROM join_links WHERE league_id = ? ORDER BY created_at DESC, id DESC`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []JoinLink
	for rows.Next() {
		j, err := scanJoinLink(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, j)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) DeactivateJoinLink(ctx context.Context, id int64) (int64, error) {
	return q.execRows(ctx, `UPDATE join_links SET is_active = 0 WHERE id = ?`, id)
}

type ConsumeJoinLinkParams struct {
	ID  int64
	Now time.Time
}

// ConsumeJoinLink increments the use counter only while the link is active,
// unexpired and under its use limit. Zero rows affected means it was not usable.
func (q *Queries) ConsumeJoinLink(ctx context.Context, arg ConsumeJoinLinkParams) (int64, error) {
	return q.execRows(ctx, `
UPDATE join_links
SET uses = uses + 1
WHERE id = ?
  AND is_active = 1
  AND (expires_at IS NULL OR expires_at > ?)
  AND (max_uses IS NULL OR uses < max_uses)`,
		arg.ID, arg.Now,
	)
}

const participantColumns = `id, league_id, user_id, partner_user_id, join_link_id, status, team_id,
	reason, notes, reviewed_by, reviewed_at, created_at, updated_at`

func scanParticipant(row interface{ Scan(...interface{}) error }) (LeagueParticipant, error) {
	var p LeagueParticipant
	err := row.Scan(
		&p.ID, &p.LeagueID, &p.UserID, &p.PartnerUserID, &p.JoinLinkID, &p.Status, &p.TeamID,
		&p.Reason, &p.Notes, &p.ReviewedBy, &p.ReviewedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

type CreateParticipantParams struct {
	LeagueID      int64
	UserID        int64
	PartnerUserID sql.NullInt64
	JoinLinkID    sql.NullInt64
	Notes         string
}

func (q *Queries) CreateParticipant(ctx context.Context, arg CreateParticipantParams) (LeagueParticipant, error) {
	id, err := q.insert(ctx, `
INSERT INTO league_participants (league_id, user_id, partner_user_id, join_link_id, notes)
VALUES (?, ?, ?, ?, ?)`,
		arg.LeagueID, arg.UserID, arg.PartnerUserID, arg.JoinLinkID, arg.Notes,
	)
	if err != nil {
		return LeagueParticipant{}, err
	}
	return q.GetParticipant(ctx, id)
}

func (q *Queries) GetParticipant(ctx context.Context, id int64) (LeagueParticipant, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM league_participants WHERE id = ?`, id)
	return scanParticipant(row)
}

func (q *Queries) GetParticipantByUser(ctx context.Context, leagueID, userID int64) (LeagueParticipant, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT `+participantColumns+` FROM league_participants WHERE league_id = ? AND user_id = ?`,
		leagueID, userID,
	)
	return scanParticipant(row)
}

type ParticipantRow struct {
	LeagueParticipant
	UserName    string
	UserEmail   string
	PartnerName sql.NullString
}

func (q *Queries) ListParticipants(ctx context.Context, leagueID int64) ([]ParticipantRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT p.id, p.league_id, p.user_id, p.partner_user_id, p.join_link_id, p.status, p.team_id,
       p.reason, p.notes, p.reviewed_by, p.reviewed_at, p.created_at, p.updated_at,
       u.name, u.email, partner.name
FROM league_participants p
JOIN users u ON u.id = p.user_id
LEFT JOIN users partner ON partner.id = p.partner_user_id
WHERE p.league_id = ?
ORDER BY p.created_at, p.id`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ParticipantRow
	for rows.Next() {
		var r ParticipantRow
		p := &r.LeagueParticipant
		if err := rows.Scan(
			&p.ID, &p.LeagueID, &p.UserID, &p.PartnerUserID, &p.JoinLinkID, &p.Status, &p.TeamID,
			&p.Reason, &p.Notes, &p.ReviewedBy, &p.ReviewedAt, &p.CreatedAt, &p.UpdatedAt,
			&r.UserName, &r.UserEmail, &r.PartnerName,
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

func (q *Queries) CountActiveParticipants(ctx context.Context, leagueID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM league_participants
WHERE league_id = ? AND status IN ('pending', 'approved')`, leagueID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

type ReviewParticipantParams struct {
	ID         int64
	FromStatus string
	Status     string
	Reason     string
	ReviewedBy int64
	ReviewedAt time.Time
}

// ReviewParticipant moves a registration out of FromStatus. Zero rows affected
// means another review got there first.
func (q *Queries) ReviewParticipant(ctx context.Context, arg ReviewParticipantParams) (int64, error) {
	return q.execRows(ctx, `
UPDATE league_participants
SET status = ?, reason = ?, reviewed_by = ?, reviewed_at = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND status = ?`,
		arg.Status, arg.Reason, arg.ReviewedBy, arg.ReviewedAt, arg.ID, arg.FromStatus,
	)
}

// DetachTeamParticipants clears the team link on every registration for the
// team and marks approved ones withdrawn.
func (q *Queries) DetachTeamParticipants(ctx context.Context, teamID int64, reason string) (int64, error) {
	return q.execRows(ctx, `
UPDATE league_participants
SET team_id = NULL,
    status = CASE WHEN status = 'approved' THEN 'withdrawn' ELSE status END,
    reason = CASE WHEN status = 'approved' THEN ? ELSE reason END,
    updated_at = CURRENT_TIMESTAMP
WHERE team_id = ?`,
		reason, teamID,
	)
}

type SetParticipantTeamParams struct {
	ID     int64
	TeamID int64
}

func (q *Queries) SetParticipantTeam(ctx context.Context, arg SetParticipantTeamParams) error {
	_, err := q.db.ExecContext(ctx, `
UPDATE league_participants SET team_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		arg.TeamID, arg.ID,
	)
	return err
}

package store

import (
	"context"
	"strings"
	"time"
)

const userColumns = `id, email, name, password_hash, role, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

type CreateUserParams struct {
	Email        string
	Name         string
	PasswordHash string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	id, err := q.insert(ctx, `
INSERT INTO users (email, name, password_hash, role)
VALUES (?, ?, ?, ?)`,
		arg.Email, arg.Name, arg.PasswordHash, arg.Role,
	)
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	return scanUser(row)
}

// SetUserRole changes a user's role and reports the affected row count.
func (q *Queries) SetUserRole(ctx context.Context, id int64, role string) (int64, error) {
	return q.execRows(ctx, `UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, role, id)
}

// ListUsersByIDs returns the users in ids ordered by id. Unknown ids are skipped.
func (q *Queries) ListUsersByIDs(ctx context.Context, ids []int64) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type CreateSeasonParams struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
}

func (q *Queries) CreateSeason(ctx context.Context, arg CreateSeasonParams) (Season, error) {
	id, err := q.insert(ctx, `
INSERT INTO seasons (name, start_date, end_date, is_active)
VALUES (?, ?, ?, ?)`,
		arg.Name, arg.StartDate, arg.EndDate, arg.IsActive,
	)
	if err != nil {
		return Season{}, err
	}
	return q.GetSeason(ctx, id)
}

func (q *Queries) GetSeason(ctx context.Context, id int64) (Season, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT id, name, start_date, end_date, is_active, created_at
FROM seasons WHERE id = ?`, id)
	var s Season
	err := row.Scan(&s.ID, &s.Name, &s.StartDate, &s.EndDate, &s.IsActive, &s.CreatedAt)
	return s, err
}

func (q *Queries) ListSeasons(ctx context.Context) ([]Season, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, name, start_date, end_date, is_active, created_at
FROM seasons ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Season
	for rows.Next() {
		var s Season
		if err := rows.Scan(&s.ID, &s.Name, &s.StartDate, &s.EndDate, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type CreateCompetitionTypeParams struct {
	Name                 string
	Description          string
	DefaultScoringConfig string
}

func (q *Queries) CreateCompetitionType(ctx context.Context, arg CreateCompetitionTypeParams) (CompetitionType, error) {
	id, err := q.insert(ctx, `
INSERT INTO competition_types (name, description, default_scoring_config)
VALUES (?, ?, ?)`,
		arg.Name, arg.Description, arg.DefaultScoringConfig,
	)
	if err != nil {
		return CompetitionType{}, err
	}
	return q.GetCompetitionType(ctx, id)
}

func (q *Queries) GetCompetitionType(ctx context.Context, id int64) (CompetitionType, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT id, name, description, default_scoring_config, created_at
FROM competition_types WHERE id = ?`, id)
	var c CompetitionType
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.DefaultScoringConfig, &c.CreatedAt)
	return c, err
}

func (q *Queries) ListCompetitionTypes(ctx context.Context) ([]CompetitionType, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, name, description, default_scoring_config, created_at
FROM competition_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CompetitionType
	for rows.Next() {
		var c CompetitionType
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.DefaultScoringConfig, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

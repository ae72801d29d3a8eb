package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/codr1/oche/internal/db"
	"github.com/codr1/oche/internal/store"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t *testing.T, database *db.DB, name, role string) store.User {
	t.Helper()

	user, err := database.Queries.CreateUser(context.Background(), store.CreateUserParams{
		Email:        fmt.Sprintf("%s@example.com", sanitize(name)),
		Name:         name,
		PasswordHash: "not-a-real-hash",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

// LeagueOptions tweaks CreateLeague. Zero values pick round robin
// individual play with the default scoring config.
type LeagueOptions struct {
	Format        string
	GameMode      string
	ScoringConfig string
	AutoApprove   bool
	Max           int64
}

func CreateLeague(t *testing.T, database *db.DB, ownerID int64, name string, opts LeagueOptions) store.League {
	t.Helper()

	if opts.Format == "" {
		opts.Format = "round_robin"
	}
	if opts.GameMode == "" {
		opts.GameMode = "individual"
	}
	if opts.ScoringConfig == "" {
		opts.ScoringConfig = "{}"
	}
	var maxParticipants sql.NullInt64
	if opts.Max > 0 {
		maxParticipants = sql.NullInt64{Int64: opts.Max, Valid: true}
	}

	league, err := database.Queries.CreateLeague(context.Background(), store.CreateLeagueParams{
		Name:             name,
		GameMode:         opts.GameMode,
		TournamentFormat: opts.Format,
		Status:           "registration",
		MaxParticipants:  maxParticipants,
		RegistrationOpen: true,
		AutoApprove:      opts.AutoApprove,
		ScoringConfig:    opts.ScoringConfig,
		CreatedBy:        ownerID,
	})
	if err != nil {
		t.Fatalf("create league %s: %v", name, err)
	}
	return league
}

// CreateTeams adds one single-player team per name, in order.
func CreateTeams(t *testing.T, database *db.DB, leagueID int64, names ...string) []store.Team {
	t.Helper()

	teams := make([]store.Team, 0, len(names))
	for _, name := range names {
		player := CreateUser(t, database, fmt.Sprintf("%s-%d", name, leagueID), "player")
		team, err := database.Queries.CreateTeam(context.Background(), store.CreateTeamParams{
			LeagueID:  leagueID,
			Name:      name,
			Player1ID: player.ID,
		})
		if err != nil {
			t.Fatalf("create team %s: %v", name, err)
		}
		teams = append(teams, team)
	}
	return teams
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '.')
		}
	}
	return string(out)
}

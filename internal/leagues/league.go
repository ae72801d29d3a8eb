package leagues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/codr1/oche/internal/store"
)

const maxLeagueNameLength = 120

type CreateInput struct {
	Name              string
	Description       string
	SeasonID          *int64
	CompetitionTypeID *int64
	GameMode          string
	Format            string
	MaxParticipants   *int64
	AutoApprove       bool
	// ScoringConfig overrides the competition type default when non-empty.
	ScoringConfig string
	CreatedBy     int64
}

// CreateLeague validates input and stores a league in registration status.
// Without an explicit scoring config the competition type's default is
// copied, and without either the built-in default is used.
func CreateLeague(ctx context.Context, q *store.Queries, input CreateInput) (store.League, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.League{}, Validationf("name is required")
	}
	if len(name) > maxLeagueNameLength {
		return store.League{}, Validationf("name must be at most %d characters", maxLeagueNameLength)
	}

	mode := strings.TrimSpace(input.GameMode)
	if mode == "" {
		mode = GameModeIndividual
	}
	if mode != GameModeIndividual && mode != GameModePairs {
		return store.League{}, Validationf("game mode must be %s or %s", GameModeIndividual, GameModePairs)
	}

	rawFormat := strings.TrimSpace(input.Format)
	if rawFormat == "" {
		rawFormat = string(FormatRoundRobin)
	}
	format, err := ParseFormat(rawFormat)
	if err != nil {
		return store.League{}, err
	}

	var maxParticipants sql.NullInt64
	if input.MaxParticipants != nil {
		if *input.MaxParticipants < 2 {
			return store.League{}, Validationf("max participants must be at least 2")
		}
		maxParticipants = sql.NullInt64{Int64: *input.MaxParticipants, Valid: true}
	}

	var seasonID sql.NullInt64
	if input.SeasonID != nil {
		if _, err := q.GetSeason(ctx, *input.SeasonID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.League{}, Validationf("season %d does not exist", *input.SeasonID)
			}
			return store.League{}, fmt.Errorf("load season: %w", err)
		}
		seasonID = sql.NullInt64{Int64: *input.SeasonID, Valid: true}
	}

	scoring := strings.TrimSpace(input.ScoringConfig)
	var competitionTypeID sql.NullInt64
	if input.CompetitionTypeID != nil {
		ct, err := q.GetCompetitionType(ctx, *input.CompetitionTypeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.League{}, Validationf("competition type %d does not exist", *input.CompetitionTypeID)
			}
			return store.League{}, fmt.Errorf("load competition type: %w", err)
		}
		competitionTypeID = sql.NullInt64{Int64: ct.ID, Valid: true}
		if scoring == "" {
			scoring = ct.DefaultScoringConfig
		}
	}
	cfg, err := ParseScoringConfig(scoring)
	if err != nil {
		return store.League{}, err
	}
	if err := cfg.Validate(); err != nil {
		return store.League{}, err
	}

	league, err := q.CreateLeague(ctx, store.CreateLeagueParams{
		Name:              name,
		Description:       strings.TrimSpace(input.Description),
		SeasonID:          seasonID,
		CompetitionTypeID: competitionTypeID,
		GameMode:          mode,
		TournamentFormat:  string(format),
		Status:            LeagueStatusRegistration,
		MaxParticipants:   maxParticipants,
		RegistrationOpen:  true,
		AutoApprove:       input.AutoApprove,
		ScoringConfig:     cfg.JSON(),
		CreatedBy:         input.CreatedBy,
	})
	if err != nil {
		return store.League{}, fmt.Errorf("create league: %w", err)
	}
	return league, nil
}

// statusTransitions lists the manual moves an admin may make. A league becomes
// active by generating fixtures and completed by its last result.
var statusTransitions = map[string][]string{
	LeagueStatusDraft:        {LeagueStatusRegistration, LeagueStatusCancelled},
	LeagueStatusRegistration: {LeagueStatusDraft, LeagueStatusCancelled},
	LeagueStatusActive:       {LeagueStatusCancelled},
}

// ChangeStatus applies a manual status change. Registration stays open only
// while the league is in registration.
func ChangeStatus(ctx context.Context, q *store.Queries, leagueID int64, status string) (store.League, error) {
	league, err := loadLeague(ctx, q, leagueID)
	if err != nil {
		return store.League{}, err
	}
	status = strings.TrimSpace(status)
	if status == league.Status {
		return league, nil
	}

	allowed := false
	for _, next := range statusTransitions[league.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		if _, known := statusTransitions[status]; !known && status != LeagueStatusCompleted {
			return store.League{}, Validationf("unknown league status %q", status)
		}
		return store.League{}, Preconditionf("cannot move league from %s to %s", league.Status, status)
	}

	if _, err := q.UpdateLeagueStatus(ctx, store.UpdateLeagueStatusParams{ID: leagueID, Status: status}); err != nil {
		return store.League{}, fmt.Errorf("update league status: %w", err)
	}
	if err := q.SetLeagueRegistration(ctx, store.SetLeagueRegistrationParams{
		ID:               leagueID,
		RegistrationOpen: status == LeagueStatusRegistration,
	}); err != nil {
		return store.League{}, fmt.Errorf("update league registration: %w", err)
	}
	return loadLeague(ctx, q, leagueID)
}

package leagues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	appdb "github.com/codr1/oche/internal/db"
	"github.com/codr1/oche/internal/store"
)

const (
	RegistrationPending   = "pending"
	RegistrationApproved  = "approved"
	RegistrationRejected  = "rejected"
	RegistrationWithdrawn = "withdrawn"

	GameModeIndividual = "individual"
	GameModePairs      = "pairs"

	// typoSimilarity is the Levenshtein similarity a team name needs to match
	// a query that is not a subsequence of it.
	typoSimilarity = 0.6
)

type ReviewAction string

const (
	ActionApprove  ReviewAction = "approve"
	ActionReject   ReviewAction = "reject"
	ActionWithdraw ReviewAction = "withdraw"
)

type JoinInput struct {
	Code         string
	UserID       int64
	PartnerEmail string
	Notes        string
}

type Registration struct {
	Participant store.LeagueParticipant
	Team        *store.Team
}

// Join registers a user through a join link. Leagues with auto approval
// create the team in the same transaction.
func Join(ctx context.Context, database *appdb.DB, input JoinInput) (*Registration, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, Validationf("join code is required")
	}

	var reg *Registration
	err := database.RunInTx(ctx, func(tx *appdb.DB) error {
		q := tx.Queries
		link, err := q.GetJoinLinkByCode(ctx, code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return kindError(ErrNotFound, "join link not found")
			}
			return fmt.Errorf("load join link: %w", err)
		}
		league, err := loadLeague(ctx, q, link.LeagueID)
		if err != nil {
			return err
		}
		if !league.RegistrationOpen || (league.Status != LeagueStatusDraft && league.Status != LeagueStatusRegistration) {
			return Preconditionf("registration is closed")
		}

		if _, err := q.GetParticipantByUser(ctx, league.ID, input.UserID); err == nil {
			return Preconditionf("already registered for this league")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("load registration: %w", err)
		}

		if league.MaxParticipants.Valid {
			count, err := q.CountActiveParticipants(ctx, league.ID)
			if err != nil {
				return fmt.Errorf("count participants: %w", err)
			}
			if count >= league.MaxParticipants.Int64 {
				return Preconditionf("league is full")
			}
		}

		var partner sql.NullInt64
		if league.GameMode == GameModePairs {
			email := strings.TrimSpace(input.PartnerEmail)
			if email == "" {
				return Validationf("partner email is required for pairs leagues")
			}
			user, err := q.GetUserByEmail(ctx, email)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return Validationf("partner must have an account")
				}
				return fmt.Errorf("load partner: %w", err)
			}
			if user.ID == input.UserID {
				return Validationf("partner must be a different player")
			}
			partner = sql.NullInt64{Int64: user.ID, Valid: true}
		}

		affected, err := q.ConsumeJoinLink(ctx, store.ConsumeJoinLinkParams{ID: link.ID, Now: now()})
		if err != nil {
			return fmt.Errorf("consume join link: %w", err)
		}
		if affected == 0 {
			return Preconditionf("join link is no longer valid")
		}

		participant, err := q.CreateParticipant(ctx, store.CreateParticipantParams{
			LeagueID:      league.ID,
			UserID:        input.UserID,
			PartnerUserID: partner,
			JoinLinkID:    sql.NullInt64{Int64: link.ID, Valid: true},
			Notes:         strings.TrimSpace(input.Notes),
		})
		if err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		reg = &Registration{Participant: participant}

		if league.AutoApprove {
			reg, err = reviewRegistration(ctx, q, league, participant, ActionApprove, "", league.CreatedBy)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// ReviewRegistration applies an admin decision. Approving creates the team;
// withdrawing an approved registration deactivates it.
func ReviewRegistration(ctx context.Context, database *appdb.DB, leagueID, participantID int64, action ReviewAction, reason string, actorID int64) (*Registration, error) {
	var reg *Registration
	err := database.RunInTx(ctx, func(tx *appdb.DB) error {
		q := tx.Queries
		league, err := loadLeague(ctx, q, leagueID)
		if err != nil {
			return err
		}
		participant, err := q.GetParticipant(ctx, participantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRegistrationNotFound
			}
			return fmt.Errorf("load registration: %w", err)
		}
		if participant.LeagueID != leagueID {
			return ErrRegistrationNotFound
		}
		reg, err = reviewRegistration(ctx, q, league, participant, action, reason, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func reviewRegistration(ctx context.Context, q *store.Queries, league store.League, participant store.LeagueParticipant, action ReviewAction, reason string, actorID int64) (*Registration, error) {
	var target string
	switch action {
	case ActionApprove:
		if participant.Status != RegistrationPending {
			return nil, ErrRegistrationReviewed
		}
		count, err := q.CountMatches(ctx, league.ID)
		if err != nil {
			return nil, fmt.Errorf("count matches: %w", err)
		}
		if count > 0 {
			return nil, Preconditionf("fixtures already generated; no new teams can join")
		}
		target = RegistrationApproved
	case ActionReject:
		if participant.Status != RegistrationPending {
			return nil, ErrRegistrationReviewed
		}
		target = RegistrationRejected
	case ActionWithdraw:
		if participant.Status != RegistrationPending && participant.Status != RegistrationApproved {
			return nil, ErrRegistrationReviewed
		}
		target = RegistrationWithdrawn
	default:
		return nil, Validationf("unknown action %q", action)
	}

	affected, err := q.ReviewParticipant(ctx, store.ReviewParticipantParams{
		ID:         participant.ID,
		FromStatus: participant.Status,
		Status:     target,
		Reason:     strings.TrimSpace(reason),
		ReviewedBy: actorID,
		ReviewedAt: now(),
	})
	if err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	if affected == 0 {
		return nil, ErrRegistrationReviewed
	}

	reg := &Registration{}
	switch action {
	case ActionApprove:
		team, err := createTeam(ctx, q, league, participant)
		if err != nil {
			return nil, err
		}
		if err := q.SetParticipantTeam(ctx, store.SetParticipantTeamParams{ID: participant.ID, TeamID: team.ID}); err != nil {
			return nil, fmt.Errorf("link team: %w", err)
		}
		reg.Team = &team
	case ActionWithdraw:
		if participant.TeamID.Valid {
			if _, err := q.DeactivateTeam(ctx, participant.TeamID.Int64); err != nil {
				return nil, fmt.Errorf("deactivate team: %w", err)
			}
		}
	}

	reg.Participant, err = q.GetParticipant(ctx, participant.ID)
	if err != nil {
		return nil, fmt.Errorf("reload registration: %w", err)
	}
	return reg, nil
}

// createTeam names individual entries after the player and pairs as
// "Player One & Player Two".
func createTeam(ctx context.Context, q *store.Queries, league store.League, participant store.LeagueParticipant) (store.Team, error) {
	player, err := q.GetUserByID(ctx, participant.UserID)
	if err != nil {
		return store.Team{}, fmt.Errorf("load player: %w", err)
	}
	name := player.Name
	var player2 sql.NullInt64
	if league.GameMode == GameModePairs {
		if !participant.PartnerUserID.Valid {
			return store.Team{}, Validationf("pairs registration has no partner")
		}
		partner, err := q.GetUserByID(ctx, participant.PartnerUserID.Int64)
		if err != nil {
			return store.Team{}, fmt.Errorf("load partner: %w", err)
		}
		name = player.Name + " & " + partner.Name
		player2 = participant.PartnerUserID
	}

	team, err := q.CreateTeam(ctx, store.CreateTeamParams{
		LeagueID:  league.ID,
		Name:      name,
		Player1ID: player.ID,
		Player2ID: player2,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return store.Team{}, Preconditionf("a team named %q already exists in this league", name)
		}
		return store.Team{}, fmt.Errorf("create team: %w", err)
	}
	return team, nil
}

// RemoveTeam deletes a team that fixture generation has not touched. Teams
// with matches, byes or a standing row can only be deactivated. Registrations
// pointing at the team are withdrawn.
func RemoveTeam(ctx context.Context, database *appdb.DB, leagueID, teamID int64) error {
	return database.RunInTx(ctx, func(tx *appdb.DB) error {
		team, err := loadTeam(ctx, tx.Queries, leagueID, teamID)
		if err != nil {
			return err
		}
		refs, err := tx.Queries.CountTeamFixtureRefs(ctx, team.ID)
		if err != nil {
			return fmt.Errorf("count team fixtures: %w", err)
		}
		if refs > 0 {
			return ErrTeamHasMatches
		}
		if _, err := tx.Queries.DetachTeamParticipants(ctx, team.ID, "team removed"); err != nil {
			return fmt.Errorf("detach registrations: %w", err)
		}
		if _, err := tx.Queries.DeleteTeam(ctx, team.ID); err != nil {
			return fmt.Errorf("delete team: %w", err)
		}
		return nil
	})
}

// DeactivateTeam keeps the team and its history but removes it from future
// fixture generation.
func DeactivateTeam(ctx context.Context, database *appdb.DB, leagueID, teamID int64) error {
	return database.RunInTx(ctx, func(tx *appdb.DB) error {
		team, err := loadTeam(ctx, tx.Queries, leagueID, teamID)
		if err != nil {
			return err
		}
		if _, err := tx.Queries.DeactivateTeam(ctx, team.ID); err != nil {
			return fmt.Errorf("deactivate team: %w", err)
		}
		return nil
	})
}

func loadTeam(ctx context.Context, q *store.Queries, leagueID, teamID int64) (store.Team, error) {
	team, err := q.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Team{}, ErrTeamNotFound
		}
		return store.Team{}, fmt.Errorf("load team: %w", err)
	}
	if team.LeagueID != leagueID {
		return store.Team{}, ErrTeamNotFound
	}
	return team, nil
}

// SearchTeams filters teams by name. Subsequence matches rank first by edit
// distance; names within typoSimilarity of the query follow.
func SearchTeams(teams []store.Team, query string) []store.Team {
	query = strings.TrimSpace(query)
	if query == "" {
		return teams
	}

	names := make([]string, len(teams))
	for i, t := range teams {
		names[i] = t.Name
	}

	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Sort(ranks)

	matched := make(map[int]struct{}, len(ranks))
	results := make([]store.Team, 0, len(ranks))
	for _, r := range ranks {
		matched[r.OriginalIndex] = struct{}{}
		results = append(results, teams[r.OriginalIndex])
	}

	lowerQuery := strings.ToLower(query)
	for i, t := range teams {
		if _, ok := matched[i]; ok {
			continue
		}
		name := strings.ToLower(t.Name)
		distance := fuzzy.LevenshteinDistance(lowerQuery, name)
		maxLen := float64(max(len(lowerQuery), len(name)))
		if maxLen == 0 {
			continue
		}
		if 1-float64(distance)/maxLen >= typoSimilarity {
			results = append(results, t)
		}
	}
	return results
}

// JoinLinkUsable reports whether a link can still admit a registration at t.
func JoinLinkUsable(link store.JoinLink, t time.Time) bool {
	if !link.IsActive {
		return false
	}
	if link.ExpiresAt.Valid && !link.ExpiresAt.Time.After(t) {
		return false
	}
	if link.MaxUses.Valid && link.Uses >= link.MaxUses.Int64 {
		return false
	}
	return true
}

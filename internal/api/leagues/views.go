package leagues

import (
	"encoding/json"
	"time"

	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/store"
)

type leagueResponse struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	SeasonID          *int64          `json:"seasonId"`
	CompetitionTypeID *int64          `json:"competitionTypeId"`
	GameMode          string          `json:"gameMode"`
	TournamentFormat  string          `json:"tournamentFormat"`
	Status            string          `json:"status"`
	MaxParticipants   *int64          `json:"maxParticipants"`
	RegistrationOpen  bool            `json:"registrationOpen"`
	AutoApprove       bool            `json:"autoApprove"`
	ScoringConfig     json.RawMessage `json:"scoringConfig"`
	CreatedBy         int64           `json:"createdBy"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func leagueView(l store.League) leagueResponse {
	resp := leagueResponse{
		ID:               l.ID,
		Name:             l.Name,
		Description:      l.Description,
		GameMode:         l.GameMode,
		TournamentFormat: l.TournamentFormat,
		Status:           l.Status,
		RegistrationOpen: l.RegistrationOpen,
		AutoApprove:      l.AutoApprove,
		ScoringConfig:    json.RawMessage(l.ScoringConfig),
		CreatedBy:        l.CreatedBy,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
	if l.SeasonID.Valid {
		resp.SeasonID = &l.SeasonID.Int64
	}
	if l.CompetitionTypeID.Valid {
		resp.CompetitionTypeID = &l.CompetitionTypeID.Int64
	}
	if l.MaxParticipants.Valid {
		resp.MaxParticipants = &l.MaxParticipants.Int64
	}
	if !json.Valid(resp.ScoringConfig) {
		resp.ScoringConfig = json.RawMessage(leaguesvc.DefaultScoringConfig().JSON())
	}
	return resp
}

type teamResponse struct {
	ID        int64     `json:"id"`
	LeagueID  int64     `json:"leagueId"`
	Name      string    `json:"name"`
	Player1ID int64     `json:"player1Id"`
	Player2ID *int64    `json:"player2Id"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func teamView(t store.Team) teamResponse {
	resp := teamResponse{
		ID:        t.ID,
		LeagueID:  t.LeagueID,
		Name:      t.Name,
		Player1ID: t.Player1ID,
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
	}
	if t.Player2ID.Valid {
		resp.Player2ID = &t.Player2ID.Int64
	}
	return resp
}

func teamViews(teams []store.Team) []teamResponse {
	out := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, teamView(t))
	}
	return out
}

type byeResponse struct {
	Round  int64 `json:"round"`
	TeamID int64 `json:"teamId"`
}

// resultResponse leads with the fields clients poll for and carries the
// rest of the outcome alongside.
type resultResponse struct {
	Status       string `json:"status"`
	WinnerTeamID *int64 `json:"winnerTeamId"`
	Team1Score   *int64 `json:"team1Score"`
	Team2Score   *int64 `json:"team2Score"`
	*leaguesvc.ResultOutcome
}

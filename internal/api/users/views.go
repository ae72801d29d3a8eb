package users

import (
	"time"

	"github.com/codr1/oche/internal/store"
)

type leagueRef struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	GameMode         string `json:"gameMode"`
	TournamentFormat string `json:"tournamentFormat"`
	RegistrationOpen bool   `json:"registrationOpen"`
	Season           string `json:"season,omitempty"`
	CompetitionType  string `json:"competitionType,omitempty"`
}

type teamRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type myLeagueView struct {
	ParticipationID int64     `json:"participationId"`
	Status          string    `json:"status"`
	Role            string    `json:"role"`
	Partner         string    `json:"partner,omitempty"`
	JoinedAt        time.Time `json:"joinedAt"`
	League          leagueRef `json:"league"`
	Team            *teamRef  `json:"team,omitempty"`
}

// newMyLeagueView reports whether the user registered or was named as partner.
func newMyLeagueView(row store.UserRegistrationRow, userID int64) myLeagueView {
	v := myLeagueView{
		ParticipationID: row.ParticipantID,
		Status:          row.Status,
		Role:            "registrant",
		JoinedAt:        row.JoinedAt,
		League: leagueRef{
			ID:               row.LeagueID,
			Name:             row.LeagueName,
			Status:           row.LeagueStatus,
			GameMode:         row.GameMode,
			TournamentFormat: row.TournamentFormat,
			RegistrationOpen: row.RegistrationOpen,
			Season:           row.SeasonName.String,
			CompetitionType:  row.CompetitionTypeName.String,
		},
	}
	if row.PartnerUserID.Valid && row.PartnerUserID.Int64 == userID {
		v.Role = "partner"
	} else if row.PartnerName.Valid {
		v.Partner = row.PartnerName.String
	}
	if row.TeamID.Valid {
		v.Team = &teamRef{ID: row.TeamID.Int64, Name: row.TeamName.String}
	}
	return v
}

type userView struct {
	ID                  int64     `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	Role                string    `json:"role"`
	CreatedAt           time.Time `json:"createdAt"`
	TotalParticipations int64     `json:"totalParticipations"`
	TotalLeaguesCreated int64     `json:"totalLeaguesCreated"`
}

func newUserView(row store.UserSummaryRow) userView {
	return userView{
		ID:                  row.ID,
		Email:               row.Email,
		Name:                row.Name,
		Role:                row.Role,
		CreatedAt:           row.CreatedAt,
		TotalParticipations: row.Participations,
		TotalLeaguesCreated: row.LeaguesCreated,
	}
}

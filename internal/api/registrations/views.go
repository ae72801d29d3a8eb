package registrations

import (
	"time"

	leaguesvc "github.com/codr1/oche/internal/leagues"
	"github.com/codr1/oche/internal/store"
)

type joinLinkResponse struct {
	ID        int64      `json:"id"`
	LeagueID  int64      `json:"leagueId"`
	Code      string     `json:"code"`
	MaxUses   *int64     `json:"maxUses"`
	Uses      int64      `json:"uses"`
	ExpiresAt *time.Time `json:"expiresAt"`
	IsActive  bool       `json:"isActive"`
	Usable    bool       `json:"usable"`
	CreatedAt time.Time  `json:"createdAt"`
}

func joinLinkView(l store.JoinLink, now time.Time) joinLinkResponse {
	resp := joinLinkResponse{
		ID:        l.ID,
		LeagueID:  l.LeagueID,
		Code:      l.Code,
		Uses:      l.Uses,
		IsActive:  l.IsActive,
		Usable:    leaguesvc.JoinLinkUsable(l, now),
		CreatedAt: l.CreatedAt,
	}
	if l.MaxUses.Valid {
		resp.MaxUses = &l.MaxUses.Int64
	}
	if l.ExpiresAt.Valid {
		resp.ExpiresAt = &l.ExpiresAt.Time
	}
	return resp
}

type joinPreview struct {
	LeagueID         int64  `json:"leagueId"`
	LeagueName       string `json:"leagueName"`
	Description      string `json:"description"`
	GameMode         string `json:"gameMode"`
	TournamentFormat string `json:"tournamentFormat"`
	Participants     int64  `json:"participants"`
	MaxParticipants  *int64 `json:"maxParticipants"`
	RegistrationOpen bool   `json:"registrationOpen"`
	LinkUsable       bool   `json:"linkUsable"`
	RequiresPartner  bool   `json:"requiresPartner"`
}

type participantResponse struct {
	ID            int64      `json:"id"`
	LeagueID      int64      `json:"leagueId"`
	UserID        int64      `json:"userId"`
	UserName      string     `json:"userName,omitempty"`
	PartnerUserID *int64     `json:"partnerUserId"`
	PartnerName   string     `json:"partnerName,omitempty"`
	Status        string     `json:"status"`
	TeamID        *int64     `json:"teamId"`
	Reason        string     `json:"reason,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	ReviewedBy    *int64     `json:"reviewedBy"`
	ReviewedAt    *time.Time `json:"reviewedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type registrationResponse struct {
	participantResponse
	TeamName string `json:"teamName,omitempty"`
}

func participantView(p store.LeagueParticipant) participantResponse {
	resp := participantResponse{
		ID:        p.ID,
		LeagueID:  p.LeagueID,
		UserID:    p.UserID,
		Status:    p.Status,
		Reason:    p.Reason,
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt,
	}
	if p.PartnerUserID.Valid {
		resp.PartnerUserID = &p.PartnerUserID.Int64
	}
	if p.TeamID.Valid {
		resp.TeamID = &p.TeamID.Int64
	}
	if p.ReviewedBy.Valid {
		resp.ReviewedBy = &p.ReviewedBy.Int64
	}
	if p.ReviewedAt.Valid {
		resp.ReviewedAt = &p.ReviewedAt.Time
	}
	return resp
}

func participantRowView(row store.ParticipantRow) participantResponse {
	resp := participantView(row.LeagueParticipant)
	resp.UserName = row.UserName
	resp.PartnerName = row.PartnerName.String
	return resp
}

func registrationView(reg *leaguesvc.Registration) registrationResponse {
	resp := registrationResponse{participantResponse: participantView(reg.Participant)}
	if reg.Team != nil {
		resp.TeamName = reg.Team.Name
	}
	return resp
}

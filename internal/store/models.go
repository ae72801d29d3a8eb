package store

import (
	"database/sql"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Season struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type CompetitionType struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	DefaultScoringConfig string    `json:"defaultScoringConfig"`
	CreatedAt            time.Time `json:"createdAt"`
}

type League struct {
	ID                int64
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
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type JoinLink struct {
	ID        int64
	LeagueID  int64
	Code      string
	MaxUses   sql.NullInt64
	Uses      int64
	ExpiresAt sql.NullTime
	IsActive  bool
	CreatedBy int64
	CreatedAt time.Time
}

type Team struct {
	ID        int64
	LeagueID  int64
	Name      string
	Player1ID int64
	Player2ID sql.NullInt64
	IsActive  bool
	CreatedAt time.Time
}

type LeagueParticipant struct {
	ID            int64
	LeagueID      int64
	UserID        int64
	PartnerUserID sql.NullInt64
	JoinLinkID    sql.NullInt64
	Status        string
	TeamID        sql.NullInt64
	Reason        string
	Notes         string
	ReviewedBy    sql.NullInt64
	ReviewedAt    sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type LeagueMatch struct {
	ID              int64
	LeagueID        int64
	Round           int64
	MatchNumber     int64
	Team1ID         int64
	Team2ID         int64
	Status          string
	ScheduledAt     sql.NullTime
	PlayedAt        sql.NullTime
	Team1Score      sql.NullInt64
	Team2Score      sql.NullInt64
	WinnerTeamID    sql.NullInt64
	ResultEnteredBy sql.NullInt64
	ResultEnteredAt sql.NullTime
	ReminderSentAt  sql.NullTime
	CreatedBy       int64
	CreatedAt       time.Time
}

type LeagueBye struct {
	ID       int64
	LeagueID int64
	Round    int64
	TeamID   int64
}

type Standing struct {
	ID              int64
	LeagueID        int64
	TeamID          int64
	Position        int64
	MatchesPlayed   int64
	MatchesWon      int64
	MatchesDrawn    int64
	MatchesLost     int64
	Points          int64
	PointsFor       int64
	PointsAgainst   int64
	PointDifference int64
	LastUpdated     time.Time
}

type PushSubscription struct {
	ID        int64
	UserID    int64
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}

package leagues

import (
	"sort"
	"time"
)

type Outcome int

const (
	OutcomeLoss Outcome = iota
	OutcomeDraw
	OutcomeWin
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeDraw:
		return "draw"
	default:
		return "loss"
	}
}

// Classify returns the outcome for the side that scored own.
func Classify(own, opponent int64) Outcome {
	switch {
	case own > opponent:
		return OutcomeWin
	case own < opponent:
		return OutcomeLoss
	default:
		return OutcomeDraw
	}
}

// StandingDelta is what one match adds to one team's record.
type StandingDelta struct {
	Played          int64
	Won             int64
	Drawn           int64
	Lost            int64
	Points          int64
	PointsFor       int64
	PointsAgainst   int64
	PointDifference int64
}

// ResultDeltas returns the additive updates for team1 and team2.
func ResultDeltas(team1Score, team2Score int64, cfg ScoringConfig) (StandingDelta, StandingDelta) {
	return sideDelta(team1Score, team2Score, cfg), sideDelta(team2Score, team1Score, cfg)
}

func sideDelta(own, opponent int64, cfg ScoringConfig) StandingDelta {
	outcome := Classify(own, opponent)
	d := StandingDelta{
		Played:          1,
		Points:          cfg.PointsFor(outcome),
		PointsFor:       own,
		PointsAgainst:   opponent,
		PointDifference: own - opponent,
	}
	switch outcome {
	case OutcomeWin:
		d.Won = 1
	case OutcomeDraw:
		d.Drawn = 1
	default:
		d.Lost = 1
	}
	return d
}

type Standing struct {
	TeamID          int64     `json:"teamId"`
	TeamName        string    `json:"teamName"`
	Position        int       `json:"position"`
	MatchesPlayed   int64     `json:"matchesPlayed"`
	MatchesWon      int64     `json:"matchesWon"`
	MatchesDrawn    int64     `json:"matchesDrawn"`
	MatchesLost     int64     `json:"matchesLost"`
	Points          int64     `json:"points"`
	PointsFor       int64     `json:"pointsFor"`
	PointsAgainst   int64     `json:"pointsAgainst"`
	PointDifference int64     `json:"pointDifference"`
	WinPercentage   float64   `json:"winPercentage"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// MatchResult is a completed match as seen by head-to-head tie breaking.
type MatchResult struct {
	Team1ID    int64
	Team2ID    int64
	Team1Score int64
	Team2Score int64
}

// RankStandings orders rows by points, then by cfg's tie-break rules in
// order, then by team name and id, and rewrites Position as the 1-based rank.
// The order is total, so ranking the same rows twice gives the same table.
// Head-to-head only counts results between teams level on points.
func RankStandings(rows []Standing, results []MatchResult, cfg ScoringConfig) []Standing {
	ranked := make([]Standing, len(rows))
	copy(ranked, rows)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Points > ranked[j].Points
	})

	start := 0
	for start < len(ranked) {
		end := start + 1
		for end < len(ranked) && ranked[end].Points == ranked[start].Points {
			end++
		}
		if end-start > 1 {
			sortTiedGroup(ranked[start:end], results, cfg)
		}
		start = end
	}

	for i := range ranked {
		ranked[i].Position = i + 1
		ranked[i].WinPercentage = winPercentage(ranked[i])
	}
	return ranked
}

func sortTiedGroup(group []Standing, results []MatchResult, cfg ScoringConfig) {
	var headToHead map[int64]int64
	for _, rule := range cfg.TiebreakerRules {
		if rule == RuleHeadToHead {
			headToHead = headToHeadPoints(group, results, cfg)
			break
		}
	}

	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		for _, rule := range cfg.TiebreakerRules {
			var va, vb int64
			switch rule {
			case RuleHeadToHead:
				va, vb = headToHead[a.TeamID], headToHead[b.TeamID]
			case RulePointDifference, RuleGoalDifference:
				va, vb = a.PointDifference, b.PointDifference
			case RulePointsFor, RuleGoalsFor, RuleGamesWon:
				va, vb = a.PointsFor, b.PointsFor
			}
			if va != vb {
				return va > vb
			}
		}
		if a.TeamName != b.TeamName {
			return a.TeamName < b.TeamName
		}
		return a.TeamID < b.TeamID
	})
}

// headToHeadPoints scores only the results where both sides are in group.
func headToHeadPoints(group []Standing, results []MatchResult, cfg ScoringConfig) map[int64]int64 {
	members := make(map[int64]struct{}, len(group))
	for _, s := range group {
		members[s.TeamID] = struct{}{}
	}

	points := make(map[int64]int64, len(group))
	for _, r := range results {
		if _, ok := members[r.Team1ID]; !ok {
			continue
		}
		if _, ok := members[r.Team2ID]; !ok {
			continue
		}
		points[r.Team1ID] += cfg.PointsFor(Classify(r.Team1Score, r.Team2Score))
		points[r.Team2ID] += cfg.PointsFor(Classify(r.Team2Score, r.Team1Score))
	}
	return points
}

func winPercentage(s Standing) float64 {
	if s.MatchesPlayed == 0 {
		return 0
	}
	pct := float64(s.MatchesWon) / float64(s.MatchesPlayed) * 100
	return float64(int64(pct*100+0.5)) / 100
}

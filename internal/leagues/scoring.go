package leagues

import (
	"encoding/json"
	"strings"
)

// Tie-break rule names as stored in scoring configs. The aliases come from
// the competition type presets: darts legs are "goals" in one and "games" in
// the other.
const (
	RuleHeadToHead      = "head_to_head"
	RulePointDifference = "point_difference"
	RuleGoalDifference  = "goal_difference"
	RulePointsFor       = "points_for"
	RuleGoalsFor        = "goals_for"
	RuleGamesWon        = "games_won"
)

type ScoringConfig struct {
	PointsWin       int64    `json:"points_win"`
	PointsDraw      int64    `json:"points_draw"`
	PointsLoss      int64    `json:"points_loss"`
	TiebreakerRules []string `json:"tiebreaker_rules"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		PointsWin:       3,
		PointsDraw:      1,
		PointsLoss:      0,
		TiebreakerRules: []string{RulePointDifference, RulePointsFor},
	}
}

// ParseScoringConfig decodes a stored config. Missing point values fall back
// to the defaults individually; an empty rule list means the default rules.
func ParseScoringConfig(raw string) (ScoringConfig, error) {
	cfg := DefaultScoringConfig()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return cfg, nil
	}

	var decoded struct {
		PointsWin       *int64   `json:"points_win"`
		PointsDraw      *int64   `json:"points_draw"`
		PointsLoss      *int64   `json:"points_loss"`
		TiebreakerRules []string `json:"tiebreaker_rules"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return ScoringConfig{}, Validationf("invalid scoring config: %v", err)
	}
	if decoded.PointsWin != nil {
		cfg.PointsWin = *decoded.PointsWin
	}
	if decoded.PointsDraw != nil {
		cfg.PointsDraw = *decoded.PointsDraw
	}
	if decoded.PointsLoss != nil {
		cfg.PointsLoss = *decoded.PointsLoss
	}
	if len(decoded.TiebreakerRules) > 0 {
		cfg.TiebreakerRules = decoded.TiebreakerRules
	}
	if err := cfg.Validate(); err != nil {
		return ScoringConfig{}, err
	}
	return cfg, nil
}

func (c ScoringConfig) Validate() error {
	if c.PointsWin < 0 || c.PointsDraw < 0 || c.PointsLoss < 0 {
		return Validationf("scoring points must be non-negative")
	}
	if c.PointsWin < c.PointsDraw || c.PointsDraw < c.PointsLoss {
		return Validationf("scoring points must satisfy win >= draw >= loss")
	}
	seen := make(map[string]struct{}, len(c.TiebreakerRules))
	for _, rule := range c.TiebreakerRules {
		switch rule {
		case RuleHeadToHead, RulePointDifference, RuleGoalDifference, RulePointsFor, RuleGoalsFor, RuleGamesWon:
		default:
			return Validationf("unknown tiebreaker rule %q", rule)
		}
		if _, ok := seen[rule]; ok {
			return Validationf("tiebreaker rule %q listed twice", rule)
		}
		seen[rule] = struct{}{}
	}
	return nil
}

func (c ScoringConfig) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (c ScoringConfig) PointsFor(o Outcome) int64 {
	switch o {
	case OutcomeWin:
		return c.PointsWin
	case OutcomeDraw:
		return c.PointsDraw
	default:
		return c.PointsLoss
	}
}

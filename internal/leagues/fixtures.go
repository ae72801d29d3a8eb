package leagues

import (
	"fmt"
	"math/bits"
)

type Format string

const (
	FormatRoundRobin Format = "round_robin"
	FormatKnockout   Format = "knockout"
	FormatHybrid     Format = "hybrid"
)

// ParseFormat accepts every format a league can be created with. Fixture
// generation supports a subset, see SupportsFixtures.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case FormatRoundRobin, FormatKnockout, FormatHybrid:
		return f, nil
	default:
		return "", Validationf("unknown tournament format %q", raw)
	}
}

func (f Format) SupportsFixtures() bool {
	return f == FormatRoundRobin || f == FormatKnockout
}

type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Pairing struct {
	Round       int  `json:"round"`
	MatchNumber int  `json:"matchNumber"`
	Team1       Team `json:"team1"`
	Team2       Team `json:"team2"`
}

// Bye records a team sitting out a round.
type Bye struct {
	Round int  `json:"round"`
	Team  Team `json:"team"`
}

type SeedStanding struct {
	TeamID   int64 `json:"teamId"`
	Position int   `json:"position"`
}

type Fixtures struct {
	Matches   []Pairing      `json:"matches"`
	Byes      []Bye          `json:"byes"`
	Standings []SeedStanding `json:"standingsSeed,omitempty"`
}

// GenerateRoundRobin schedules every team against every other team once
// using the circle method: slot 0 stays fixed and the rest rotate one step
// per round. An odd field gets an empty slot and whoever draws it has a bye.
// Match numbers run from 1 across all rounds.
func GenerateRoundRobin(teams []Team) (Fixtures, error) {
	if len(teams) < 2 {
		return Fixtures{}, ErrInsufficientTeams
	}
	if err := checkDistinct(teams); err != nil {
		return Fixtures{}, err
	}

	working := make([]*Team, 0, len(teams)+1)
	for i := range teams {
		working = append(working, &teams[i])
	}
	if len(working)%2 == 1 {
		working = append(working, nil)
	}

	rounds := len(working) - 1
	half := len(working) / 2
	fixtures := Fixtures{
		Matches: make([]Pairing, 0, rounds*len(teams)/2),
	}
	matchNumber := 0

	for round := 1; round <= rounds; round++ {
		for i := 0; i < half; i++ {
			left := working[i]
			right := working[len(working)-1-i]
			switch {
			case left == nil:
				fixtures.Byes = append(fixtures.Byes, Bye{Round: round, Team: *right})
			case right == nil:
				fixtures.Byes = append(fixtures.Byes, Bye{Round: round, Team: *left})
			default:
				matchNumber++
				fixtures.Matches = append(fixtures.Matches, Pairing{
					Round:       round,
					MatchNumber: matchNumber,
					Team1:       *left,
					Team2:       *right,
				})
			}
		}
		rotateSlots(working)
	}

	fixtures.Standings = make([]SeedStanding, len(teams))
	for i, team := range teams {
		fixtures.Standings[i] = SeedStanding{TeamID: team.ID, Position: i + 1}
	}
	return fixtures, nil
}

// rotateSlots keeps index 0 fixed and moves the last slot to index 1.
func rotateSlots(slots []*Team) {
	if len(slots) <= 2 {
		return
	}
	last := slots[len(slots)-1]
	copy(slots[2:], slots[1:len(slots)-1])
	slots[1] = last
}

// GenerateKnockout builds the first round of a single elimination bracket.
// The field is padded to the next power of two; the padding goes to the top
// seeds (earliest in teams) as first round byes and the remaining seeds
// play highest against lowest. Later rounds come from NextKnockoutRound once
// results are in.
func GenerateKnockout(teams []Team) (Fixtures, error) {
	if len(teams) < 2 {
		return Fixtures{}, ErrInsufficientTeams
	}
	if err := checkDistinct(teams); err != nil {
		return Fixtures{}, err
	}

	byeCount := BracketSize(len(teams)) - len(teams)
	fixtures := Fixtures{}
	for _, team := range teams[:byeCount] {
		fixtures.Byes = append(fixtures.Byes, Bye{Round: 1, Team: team})
	}
	fixtures.Matches = foldPairings(teams[byeCount:], 1, 1)
	return fixtures, nil
}

// NextKnockoutRound pairs the entrants of the round after completedRound.
// Entrants are the previous round's byes in seed order followed by its
// winners in match number order. Round two folds the entrants (top seed
// meets the last qualifier); from round three on neighbouring winners meet.
// It returns no pairings once a single entrant remains.
func NextKnockoutRound(completedRound int, byes, winners []Team, firstMatchNumber int) ([]Pairing, error) {
	if completedRound < 1 {
		return nil, Validationf("completed round must be at least 1")
	}
	if firstMatchNumber < 1 {
		return nil, Validationf("match numbers start at 1")
	}

	entrants := make([]Team, 0, len(byes)+len(winners))
	entrants = append(entrants, byes...)
	entrants = append(entrants, winners...)
	if len(entrants) < 2 {
		return nil, nil
	}
	if len(entrants)&(len(entrants)-1) != 0 {
		return nil, fmt.Errorf("%w: knockout round %d has %d entrants", ErrInconsistency, completedRound+1, len(entrants))
	}

	round := completedRound + 1
	if completedRound == 1 {
		return foldPairings(entrants, round, firstMatchNumber), nil
	}

	pairings := make([]Pairing, 0, len(entrants)/2)
	for i := 0; i+1 < len(entrants); i += 2 {
		pairings = append(pairings, Pairing{
			Round:       round,
			MatchNumber: firstMatchNumber + len(pairings),
			Team1:       entrants[i],
			Team2:       entrants[i+1],
		})
	}
	return pairings, nil
}

func foldPairings(teams []Team, round, firstMatchNumber int) []Pairing {
	pairings := make([]Pairing, 0, len(teams)/2)
	for i := 0; i < len(teams)/2; i++ {
		pairings = append(pairings, Pairing{
			Round:       round,
			MatchNumber: firstMatchNumber + i,
			Team1:       teams[i],
			Team2:       teams[len(teams)-1-i],
		})
	}
	return pairings
}

// BracketSize is the smallest power of two that fits n teams.
func BracketSize(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// KnockoutRounds is the number of rounds needed to leave one team standing.
func KnockoutRounds(n int) int {
	return bits.Len(uint(BracketSize(n))) - 1
}

func checkDistinct(teams []Team) error {
	seen := make(map[int64]struct{}, len(teams))
	for _, team := range teams {
		if _, ok := seen[team.ID]; ok {
			return Validationf("team %d listed more than once", team.ID)
		}
		seen[team.ID] = struct{}{}
	}
	return nil
}

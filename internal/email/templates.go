package email

import (
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

type MatchReminderDetails struct {
	LeagueName  string
	Round       int64
	MatchNumber int64
	HomeTeam    string
	AwayTeam    string
	ScheduledAt time.Time
}

type ResultDetails struct {
	LeagueName string
	Round      int64
	HomeTeam   string
	AwayTeam   string
	HomeScore  int64
	AwayScore  int64
	// Winner is empty for a draw.
	Winner   string
	Position int64
	Points   int64
}

func FormatMatchTime(t time.Time) string {
	return t.Format("Monday, Jan 2, 2006 at 3:04 PM MST")
}

func orTBD(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "TBD"
	}
	return s
}

func leagueLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "your league"
	}
	return name
}

func BuildMatchReminder(d MatchReminderDetails) Message {
	league := leagueLabel(d.LeagueName)
	when := "TBD"
	if !d.ScheduledAt.IsZero() {
		when = FormatMatchTime(d.ScheduledAt)
	}

	lines := []string{
		fmt.Sprintf("You have a %s match coming up.", league),
		"",
		fmt.Sprintf("Round %d, match %d", d.Round, d.MatchNumber),
		fmt.Sprintf("%s vs %s", orTBD(d.HomeTeam), orTBD(d.AwayTeam)),
		fmt.Sprintf("When: %s", when),
		"",
		"Good darts!",
	}
	return Message{
		Subject: fmt.Sprintf("Match reminder - %s", league),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildResultEmail(d ResultDetails) Message {
	league := leagueLabel(d.LeagueName)
	outcome := "The match was drawn."
	if d.Winner != "" {
		outcome = fmt.Sprintf("%s won.", d.Winner)
	}

	lines := []string{
		fmt.Sprintf("A result has been recorded in %s.", league),
		"",
		fmt.Sprintf("Round %d: %s %d - %d %s", d.Round, orTBD(d.HomeTeam), d.HomeScore, d.AwayScore, orTBD(d.AwayTeam)),
		outcome,
	}
	if d.Position > 0 {
		lines = append(lines, fmt.Sprintf("Your team is now in position %d with %d points.", d.Position, d.Points))
	}
	return Message{
		Subject: fmt.Sprintf("Result recorded - %s", league),
		Body:    strings.Join(lines, "\n"),
	}
}

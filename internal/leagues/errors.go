package leagues

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below wraps exactly one of these so
// callers can branch with errors.Is on either level.
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrValidationFailed   = errors.New("validation failed")
	ErrInconsistency      = errors.New("inconsistent league state")
)

var (
	ErrLeagueNotFound          = kindError(ErrNotFound, "league not found")
	ErrMatchNotFound           = kindError(ErrNotFound, "match not found")
	ErrTeamNotFound            = kindError(ErrNotFound, "team not found")
	ErrRegistrationNotFound    = kindError(ErrNotFound, "registration not found")
	ErrUserNotFound            = kindError(ErrNotFound, "user not found")
	ErrMatchesAlreadyGenerated = kindError(ErrPreconditionFailed, "matches already generated")
	ErrInsufficientTeams       = kindError(ErrPreconditionFailed, "insufficient teams")
	ErrUnsupportedFormat       = kindError(ErrPreconditionFailed, "unsupported format")
	ErrMatchAlreadyCompleted   = kindError(ErrPreconditionFailed, "match already completed")
	ErrMatchCancelled          = kindError(ErrPreconditionFailed, "match cancelled")
	ErrNoStandings             = kindError(ErrPreconditionFailed, "standings are only kept for round robin leagues")
	ErrTeamHasMatches          = kindError(ErrPreconditionFailed, "team is part of the generated fixtures and can only be deactivated")
	ErrLeagueNotSchedulable    = kindError(ErrPreconditionFailed, "fixtures can only be generated for a league in draft or registration")
	ErrLeagueNotActive         = kindError(ErrPreconditionFailed, "results can only be recorded while the league is active")
	ErrRegistrationReviewed    = kindError(ErrPreconditionFailed, "registration already reviewed")
	ErrNegativeScore           = kindError(ErrValidationFailed, "scores must be non-negative integers")
	ErrMissingScore            = kindError(ErrValidationFailed, "both scores are required")
	ErrKnockoutDraw            = kindError(ErrValidationFailed, "knockout matches cannot end in a draw")
	ErrMissingStanding         = kindError(ErrInconsistency, "standing row missing for team")
)

type leagueError struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &leagueError{kind: kind, msg: msg}
}

func (e *leagueError) Error() string {
	return e.msg
}

func (e *leagueError) Unwrap() error {
	return e.kind
}

// Validationf builds an ad hoc validation failure.
func Validationf(format string, args ...any) error {
	return kindError(ErrValidationFailed, fmt.Sprintf(format, args...))
}

// Preconditionf builds an ad hoc precondition failure.
func Preconditionf(format string, args ...any) error {
	return kindError(ErrPreconditionFailed, fmt.Sprintf(format, args...))
}

// Reason returns the user facing text of a league error. Wrapped errors keep
// their outermost leagueError message.
func Reason(err error) string {
	var le *leagueError
	if errors.As(err, &le) {
		return le.msg
	}
	return err.Error()
}

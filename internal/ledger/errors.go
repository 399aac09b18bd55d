package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrSameTeam           = errors.New("a team cannot play itself")
	ErrUnscheduledPairing = errors.New("pairing is not in the schedule")
	ErrInvalidSnapshot    = errors.New("invalid snapshot")
)

// UnknownTeamError is returned when a name or id does not resolve to a team
// on the roster.
type UnknownTeamError struct {
	Name string
	ID   int
}

func (e *UnknownTeamError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("unknown team id %d", e.ID)
	}
	return fmt.Sprintf("unknown team %q", e.Name)
}

// InvalidScoreError is returned for a negative score.
type InvalidScoreError struct {
	Team  string
	Score int
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid score %d for %q: scores must be non-negative", e.Score, e.Team)
}

// BatchError reports which entry of a batch failed. Nothing in the batch was
// applied.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch entry %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err is a validation failure of a submission, as
// opposed to an infrastructure error.
func IsRejected(err error) bool {
	var unknown *UnknownTeamError
	var score *InvalidScoreError
	return errors.As(err, &unknown) ||
		errors.As(err, &score) ||
		errors.Is(err, ErrSameTeam) ||
		errors.Is(err, ErrUnscheduledPairing)
}

package services

import (
	"errors"
	"fmt"
)

var (
	ErrHeroNotFound         = errors.New("hero not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrInvalidHero          = errors.New("invalid hero")
	ErrInvalidTeam          = errors.New("invalid team")
	ErrTeamLimitReached     = errors.New("team limit reached")
	ErrDefaultTeamProtected = errors.New("the default team cannot be deleted")
)

// PersistenceError reports that the database failed to commit or read.
// The attempted change has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err wraps a *PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

package search

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/daszybak/market_scanner/internal/filter"
)

var (
	ErrUnknownVenue = errors.New("unknown venue")
	// ErrIncompleteFilters matches the *filter.IncompleteError returned for
	// a user whose required axes are not all set.
	ErrIncompleteFilters = filter.ErrIncomplete
)

// Error is every failure Run reports, tagged with the run it belongs to.
type Error struct {
	RunID uuid.UUID
	Venue string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("search %s on %s: %v", e.RunID, e.Venue, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PanicError carries a panic recovered during a run.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

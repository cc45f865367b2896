package evolution

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced artifact id does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrCadenceNotReached means evolution was requested while dormant.
	ErrCadenceNotReached = errors.New("evolution cadence not reached")
	// ErrInsufficientPopulation means fewer than two artifacts exist to breed from.
	// After genesis this indicates a misconfigured seeding.
	ErrInsufficientPopulation = errors.New("insufficient population to select parents")
	// ErrAlreadySeeded means SeedGenesis ran before.
	ErrAlreadySeeded = errors.New("genesis already seeded")
	// ErrInvalidGenesisCount means the requested genesis size is out of bounds.
	ErrInvalidGenesisCount = errors.New("invalid genesis count")
	// ErrInvalidSnapshot means a snapshot violates the registry invariants.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Error carries the failing operation and artifact alongside a sentinel Kind.
type Error struct {
	Op         string
	ArtifactID uint64
	Kind       error
	Msg        string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	s := e.Op + ": " + e.Kind.Error()
	if e.ArtifactID != 0 {
		s = fmt.Sprintf("%s (artifact %d)", s, e.ArtifactID)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *Error) Unwrap() error { return e.Kind }

func opError(op string, id uint64, kind error, format string, args ...any) error {
	e := &Error{Op: op, ArtifactID: id, Kind: kind}
	if format != "" {
		e.Msg = fmt.Sprintf(format, args...)
	}
	return e
}

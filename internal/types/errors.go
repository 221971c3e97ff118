package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned when no dataset identity can be derived from a URL
	ErrInvalidURL = errors.New("invalid url")
	// ErrRender is a transient fault of the page session (stale handle, stuck render)
	ErrRender = errors.New("render error")
	// ErrExtraction means the page markup no longer matches the extractor
	ErrExtraction = errors.New("extraction error")
	// ErrPersistence is a read or write failure of the dataset store
	ErrPersistence = errors.New("persistence error")
)

// PhaseError records which phase of a run failed and the kind of failure.
// errors.Is matches both the kind sentinel and the underlying cause.
type PhaseError struct {
	Phase string
	Kind  error
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Phase, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Phase, e.Kind, e.Err)
}

func (e *PhaseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RenderError wraps err as an ErrRender failure of phase
func RenderError(phase string, err error) error {
	return &PhaseError{Phase: phase, Kind: ErrRender, Err: err}
}

// ExtractionError wraps err as an ErrExtraction failure of phase
func ExtractionError(phase string, err error) error {
	return &PhaseError{Phase: phase, Kind: ErrExtraction, Err: err}
}

// PersistenceError wraps err as an ErrPersistence failure of phase
func PersistenceError(phase string, err error) error {
	return &PhaseError{Phase: phase, Kind: ErrPersistence, Err: err}
}

// Phase returns the phase recorded in err, or "" when err carries none
func Phase(err error) string {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}

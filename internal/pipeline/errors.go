package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidInput matches any *InvalidInputError.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError rejects a transcript before any work starts.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Reason }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// Error wraps a failure with the phase it happened in. Chunk is the
// zero-based chunk index for extraction failures and -1 otherwise.
type Error struct {
	Phase Phase
	Chunk int
	Err   error
}

func (e *Error) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("pipeline %s chunk %d: %v", e.Phase, e.Chunk, e.Err)
	}
	return fmt.Sprintf("pipeline %s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

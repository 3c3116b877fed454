package clip

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that no live clip exists for a code. Backends return
	// it for absent records; the store also returns it for expired ones.
	ErrNotFound = errors.New("clip not found")

	// ErrAllocationExhausted is returned by Put when every allocation attempt
	// collided with an existing code.
	ErrAllocationExhausted = errors.New("clip: code allocation exhausted")
)

// ValidationError describes rejected input to Put. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err (or anything it wraps) is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Package services defines the business logic for creating, reading and
// deleting clips. This file centralizes service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"

	"github.com/tbourn/quickclip/internal/clip"
)

// Clip-related errors.
var (
	// ErrClipNotFound indicates that no live clip exists for the requested
	// code (never created, deleted, or expired).
	ErrClipNotFound = errors.New("clip not found")

	// ErrCodeSpaceExhausted is returned when no free code could be allocated
	// within the configured number of attempts.
	ErrCodeSpaceExhausted = clip.ErrAllocationExhausted
)

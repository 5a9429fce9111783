package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPollSuperseded ends a poll session that was replaced by a newer one.
	ErrPollSuperseded = errors.New("generation poll superseded by a newer session")
	// ErrTimelineNotLoaded is returned when a trip has no fetched snapshot yet.
	ErrTimelineNotLoaded = errors.New("timeline not loaded")
	// ErrDayOutOfRange is returned for a day index outside the trip's date range.
	ErrDayOutOfRange = errors.New("day index out of range")
	// ErrRowOutOfRange is returned for a section or row outside a day's groups.
	ErrRowOutOfRange = errors.New("row out of range")
)

// ValidationError reports missing or malformed input detected before any
// network call.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, ", ")
}

// TransportError wraps a failure of the timeline repository or route provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// GenerationTimeoutError means the poll budget ran out before generated content
// became visible. The write may still succeed server-side.
type GenerationTimeoutError struct {
	TripHash string
	Attempts int
}

func (e *GenerationTimeoutError) Error() string {
	return fmt.Sprintf("trip %s: generation not ready after %d attempts", e.TripHash, e.Attempts)
}

// IdentityError means a segment index does not exist in the current
// authoritative segment list.
type IdentityError struct {
	TripHash string
	Index    int
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("trip %s: no segment at index %d", e.TripHash, e.Index)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDocument aborts an import before anything is written.
	ErrMalformedDocument = errors.New("malformed schedule document")
	// ErrUpstreamFetch is returned when the schedule source could not be read.
	ErrUpstreamFetch = errors.New("schedule fetch failed")
	// ErrDeliveryEnqueue is returned when a payload could not be queued.
	ErrDeliveryEnqueue = errors.New("delivery enqueue failed")
	// ErrImportInProgress is returned when another instance is importing the same source.
	ErrImportInProgress = errors.New("import already in progress")
	// ErrNotFound is returned by lookups that found nothing.
	ErrNotFound = errors.New("not found")
)

// DocumentError pinpoints the part of a schedule document that failed validation.
type DocumentError struct {
	Field  string // "day.date", "room.name", "event.title", ...
	Detail string
}

func (e *DocumentError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s missing", ErrMalformedDocument, e.Field)
	}
	return fmt.Sprintf("%s: %s missing (%s)", ErrMalformedDocument, e.Field, e.Detail)
}

func (e *DocumentError) Unwrap() error { return ErrMalformedDocument }

package models

import "errors"

var (
	// ErrInvalidInput marks caller mistakes: bad kinds, ids, pages or filter values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamUnavailable wraps failures of the document store, event store or cache.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

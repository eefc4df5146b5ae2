package core

import "errors"

var (
	// ErrMalformedInput is returned when a raw payload is missing the
	// fields required to construct a canonical email. Not retried.
	ErrMalformedInput = errors.New("malformed input")

	// ErrClassifierTimeout is returned by classifier adapters when the
	// call exceeded its deadline. The aggregator recovers fail-open.
	ErrClassifierTimeout = errors.New("classifier timeout")

	// ErrClassifierUnavailable is returned when the classifier
	// capability cannot be reached. The aggregator recovers fail-open.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrInvalidTransition is returned for any quarantine transition
	// attempted from a terminal state toward a different state.
	ErrInvalidTransition = errors.New("invalid quarantine transition")

	// ErrNotFound is returned by stores when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by stores on a create for an entity
	// id that was already created.
	ErrAlreadyExists = errors.New("already exists")
)

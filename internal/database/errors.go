package database

import "errors"

var (
	// ErrNotFound is returned when an update targets a row that does not exist
	// or is no longer in the expected state.
	ErrNotFound = errors.New("message not found")

	// ErrInvalidClassification is returned for categories outside the closed
	// set or confidences outside [0,1].
	ErrInvalidClassification = errors.New("invalid classification")
)

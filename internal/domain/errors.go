package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores,
// controllers and the HTTP layer to communicate domain-specific conditions.
// -----------------------------------------------------------------------------

// Level errors
var (
	ErrLevelNotFound   = errors.New("level not found")
	ErrLevelIncomplete = errors.New("level incomplete")
	ErrLevelLocked     = errors.New("level locked")
)

// Exercise errors
var (
	ErrExerciseNotFound = errors.New("exercise not found")
)

// Catalog errors
var (
	ErrInvalidLevel = errors.New("invalid level definition")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

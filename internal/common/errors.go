// Package common defines shared constants and sentinel errors used across
// pgkit packages. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors. All of them wrap ErrValidation, so callers can
	// match the whole family with a single errors.Is check.
	ErrValidation         = errors.New("validation error")
	ErrEmptySample        = fmt.Errorf("%w: sample record has no fields after exclusion", ErrValidation)
	ErrInvalidChunkSize   = fmt.Errorf("%w: chunk size must be positive", ErrValidation)
	ErrMissingConflictKey = fmt.Errorf("%w: conflict key missing or null", ErrValidation)
	ErrEmptyConflictKey   = fmt.Errorf("%w: conflict key not specified", ErrValidation)

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)

// Package common defines shared constants and sentinel errors used across
// client and server layers of VoteKeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotRegistered     = errors.New("not registered")
	ErrAlreadyRegistered = errors.New("already registered")

	// Validation errors.
	ErrInvalidID = errors.New("invalid identifier")

	// Credential errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrAlreadyVoted = errors.New("already voted")

	// Ballot errors.
	ErrDecryptionFailed = errors.New("ballot decryption failed")

	// Protocol errors.
	ErrUnknownCommand = errors.New("unknown command")

	// Generic/internal flow control.
	ErrInternal = errors.New("internal error")
)

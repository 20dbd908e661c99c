package collab

import "errors"

var (
	// ErrInvalidArgument indicates malformed input, e.g. a participant
	// cap below two.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientTokens indicates the caller's balance cannot
	// cover the session cost and no free trial is available.
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// ErrNotFound indicates no session matches the given id or PIN.
	ErrNotFound = errors.New("session not found")

	// ErrSessionClosed indicates the session no longer accepts joins.
	ErrSessionClosed = errors.New("session is closed")

	// ErrForbidden indicates a non-owner attempted an owner-only action.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a concurrent mutation won the race. Safe
	// for the caller to retry.
	ErrConflict = errors.New("conflicting update")

	// ErrUnavailable indicates the backing store kept failing after a
	// retry.
	ErrUnavailable = errors.New("store unavailable")
)

// Package store defines the persistence boundary for user profiles and
// collaboration sessions. Implementations must support atomic
// conditional mutation so that concurrent joins cannot overflow a
// session's capacity and token debits cannot lose updates.
package store

import (
	"context"
	"errors"

	"github.com/letsmanuel/webnest-sub001/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConditionFailed is returned when a conditional write lost a
	// race with a concurrent mutation. Safe to retry.
	ErrConditionFailed = errors.New("conditional write failed")

	// ErrPinTaken is returned when a session PIN is already reserved
	// by another active session.
	ErrPinTaken = errors.New("pin already in use")
)

// ProfileStore persists user profiles and token balances.
type ProfileStore interface {
	// GetProfile returns the profile, or ErrNotFound.
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)

	// CreateProfile writes a new profile. Fails with ErrConditionFailed
	// if one already exists for the user.
	CreateProfile(ctx context.Context, profile *model.UserProfile) error

	// UpdateProfile applies mutate to the current profile under a
	// conditional write. mutate runs against a copy; returning an error
	// aborts without writing.
	UpdateProfile(ctx context.Context, userID string, mutate func(*model.UserProfile) error) (*model.UserProfile, error)
}

// SessionStore persists collaboration sessions and enforces PIN
// uniqueness among active sessions.
type SessionStore interface {
	// CreateSession atomically debits the owner's profile and writes
	// the session, reserving its PIN. debit runs against a copy of the
	// owner's profile inside the same transaction; returning an error
	// aborts the whole write. Fails with ErrPinTaken when the PIN is
	// reserved by an active session.
	CreateSession(ctx context.Context, session *model.CollabSession, debit func(*model.UserProfile) error) error

	// GetSession returns the session by id, or ErrNotFound.
	GetSession(ctx context.Context, id string) (*model.CollabSession, error)

	// FindByPin returns the active session with the given normalized
	// PIN, or ErrNotFound.
	FindByPin(ctx context.Context, pin string) (*model.CollabSession, error)

	// UpdateSession applies mutate to the current session under a
	// conditional write keyed on the session version. mutate runs
	// against a copy; returning an error aborts without writing.
	// Releases the PIN reservation when mutate closes the session.
	UpdateSession(ctx context.Context, id string, mutate func(*model.CollabSession) error) (*model.CollabSession, error)
}

// Package collab orchestrates collaboration sessions: creation with
// token debit, PIN joins with a capacity-bounded participant set, FIFO
// waitlisting, and owner moderation.
package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/letsmanuel/webnest-sub001/internal/model"
	"github.com/letsmanuel/webnest-sub001/internal/pin"
	"github.com/letsmanuel/webnest-sub001/internal/store"
	"github.com/letsmanuel/webnest-sub001/internal/token"
)

// JoinResult is the outcome of a join attempt.
type JoinResult string

const (
	Admitted JoinResult = "admitted"
	Queued   JoinResult = "queued"
	Denied   JoinResult = "denied"
)

const (
	// pinAttempts bounds PIN regeneration on collision.
	pinAttempts = 5

	// retryBackoff is the pause before the single retry of a transient
	// store failure.
	retryBackoff = 100 * time.Millisecond
)

// errNoMutation aborts a store mutator without treating the operation
// as failed (e.g. a denied user's join attempt writes nothing).
var errNoMutation = errors.New("no mutation")

// Manager implements the session lifecycle against a profile store and
// a session store. All mutations rely on the stores' conditional-write
// guarantees, so two racing joins can never both take the last slot.
type Manager struct {
	profiles store.ProfileStore
	sessions store.SessionStore
	notifier Notifier
}

// NewManager creates a Manager. A nil notifier falls back to logging.
func NewManager(profiles store.ProfileStore, sessions store.SessionStore, notifier Notifier) *Manager {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Manager{profiles: profiles, sessions: sessions, notifier: notifier}
}

// CreateResult reports what a session start actually charged.
type CreateResult struct {
	Session *model.CollabSession
	Cost    int  // computed price
	Charged int  // 0 when the free trial was consumed
	Trial   bool // true when this start consumed the free trial
}

// CreateSession starts a new session owned by ownerID. The first
// session a user ever starts is free and flips their trial flag;
// afterwards the computed cost is debited. Debit, trial flip, session
// write and PIN reservation are atomic: on any failure nothing is
// persisted.
func (m *Manager) CreateSession(ctx context.Context, websiteID, ownerID string, maxParticipants int, style model.PinStyle) (*CreateResult, error) {
	if websiteID == "" || ownerID == "" {
		return nil, fmt.Errorf("%w: website and owner are required", ErrInvalidArgument)
	}
	if maxParticipants > token.MaxParticipants {
		return nil, fmt.Errorf("%w: at most %d participants", ErrInvalidArgument, token.MaxParticipants)
	}
	cost, err := token.SessionCost(maxParticipants)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	result := &CreateResult{Cost: cost}

	for attempt := 0; attempt < pinAttempts; attempt++ {
		code, err := pin.Generate(style)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}

		session := &model.CollabSession{
			ID:                  uuid.NewString(),
			Pin:                 pin.Normalize(code),
			PinStyle:            style,
			WebsiteID:           websiteID,
			OwnerID:             ownerID,
			MaxParticipants:     maxParticipants,
			CurrentParticipants: 1,
			Participants:        []string{ownerID},
			State:               model.SessionActive,
			CreatedAt:           time.Now(),
		}

		err = m.withRetry(ctx, func() error {
			return m.sessions.CreateSession(ctx, session, func(p *model.UserProfile) error {
				if !p.HasUsedFreeCollabTrial {
					p.HasUsedFreeCollabTrial = true
					result.Charged = 0
					result.Trial = true
					return nil
				}
				if p.Tokens < cost {
					return ErrInsufficientTokens
				}
				p.Tokens -= cost
				result.Charged = cost
				result.Trial = false
				return nil
			})
		})
		if errors.Is(err, store.ErrPinTaken) {
			continue // collision with an active session, regenerate
		}
		if err != nil {
			return nil, mapStoreErr(err)
		}

		result.Session = session
		return result, nil
	}
	return nil, fmt.Errorf("%w: could not find a free pin", ErrConflict)
}

// GetSession looks up a session by id, active or closed.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*model.CollabSession, error) {
	session, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return session, nil
}

// JoinSession resolves a PIN (case-insensitively) and either admits the
// caller, queues them, or reports they have been denied. Repeated joins
// by an admitted user are idempotent.
func (m *Manager) JoinSession(ctx context.Context, rawPin, userID, displayName string) (JoinResult, *model.CollabSession, error) {
	if userID == "" {
		return "", nil, fmt.Errorf("%w: user is required", ErrInvalidArgument)
	}
	normalized := pin.Normalize(rawPin)
	if normalized == "" {
		return "", nil, fmt.Errorf("%w: pin is required", ErrInvalidArgument)
	}

	found, err := m.sessions.FindByPin(ctx, normalized)
	if err != nil {
		return "", nil, mapStoreErr(err)
	}
	if found.State == model.SessionClosed {
		return "", nil, ErrSessionClosed
	}

	var result JoinResult
	updated, err := m.updateWithRetry(ctx, found.ID, func(s *model.CollabSession) error {
		if s.State == model.SessionClosed {
			return ErrSessionClosed
		}
		switch {
		case s.IsDenied(userID):
			result = Denied
			return errNoMutation
		case s.HasParticipant(userID):
			result = Admitted
			return errNoMutation
		case !s.IsFull():
			s.Waitlist = remove(s.Waitlist, userID)
			s.Participants = append(s.Participants, userID)
			s.CurrentParticipants = len(s.Participants)
			result = Admitted
			return nil
		case s.IsWaitlisted(userID):
			result = Queued
			return errNoMutation
		default:
			s.Waitlist = append(s.Waitlist, userID)
			result = Queued
			return nil
		}
	})
	if err != nil {
		return "", nil, err
	}

	if result == Admitted && updated.mutated {
		m.notifier.ParticipantAdmitted(ctx, updated.session, userID, displayName)
	}
	if result == Denied {
		return Denied, nil, nil
	}
	return result, updated.session, nil
}

// LeaveSession removes userID from the session. The owner leaving, or
// the last participant leaving, closes the session; otherwise a freed
// slot admits the head of the waitlist.
func (m *Manager) LeaveSession(ctx context.Context, sessionID, userID string) error {
	var promoted string
	updated, err := m.updateWithRetry(ctx, sessionID, func(s *model.CollabSession) error {
		promoted = ""
		if s.State == model.SessionClosed {
			return errNoMutation
		}
		if userID == s.OwnerID {
			s.State = model.SessionClosed
			return nil
		}
		if s.IsWaitlisted(userID) {
			s.Waitlist = remove(s.Waitlist, userID)
			return nil
		}
		if !s.HasParticipant(userID) {
			return errNoMutation
		}
		s.Participants = remove(s.Participants, userID)
		s.CurrentParticipants = len(s.Participants)
		if s.CurrentParticipants == 0 {
			s.State = model.SessionClosed
			return nil
		}
		if len(s.Waitlist) > 0 && !s.IsFull() {
			promoted = s.Waitlist[0]
			s.Waitlist = s.Waitlist[1:]
			s.Participants = append(s.Participants, promoted)
			s.CurrentParticipants = len(s.Participants)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if updated.mutated && updated.session.State == model.SessionClosed {
		m.notifier.SessionClosed(ctx, updated.session)
	}
	if promoted != "" {
		m.notifier.ParticipantAdmitted(ctx, updated.session, promoted, "")
	}
	return nil
}

// DenyUser moves targetUserID out of the waitlist (and participant set,
// if admitted) into the denied set. Owner only.
func (m *Manager) DenyUser(ctx context.Context, sessionID, callerUserID, targetUserID string) error {
	if targetUserID == "" {
		return fmt.Errorf("%w: target user is required", ErrInvalidArgument)
	}
	_, err := m.updateWithRetry(ctx, sessionID, func(s *model.CollabSession) error {
		if callerUserID != s.OwnerID {
			return ErrForbidden
		}
		if targetUserID == s.OwnerID {
			return fmt.Errorf("%w: owner cannot be denied", ErrInvalidArgument)
		}
		if s.IsDenied(targetUserID) {
			return errNoMutation
		}
		s.Waitlist = remove(s.Waitlist, targetUserID)
		if s.HasParticipant(targetUserID) {
			s.Participants = remove(s.Participants, targetUserID)
			s.CurrentParticipants = len(s.Participants)
		}
		s.DeniedUsers = append(s.DeniedUsers, targetUserID)
		return nil
	})
	return err
}

// EndSession closes the session. Owner only; ending an already-closed
// session is a no-op.
func (m *Manager) EndSession(ctx context.Context, sessionID, callerUserID string) error {
	updated, err := m.updateWithRetry(ctx, sessionID, func(s *model.CollabSession) error {
		if callerUserID != s.OwnerID {
			return ErrForbidden
		}
		if s.State == model.SessionClosed {
			return errNoMutation
		}
		s.State = model.SessionClosed
		return nil
	})
	if err != nil {
		return err
	}
	if updated.mutated {
		m.notifier.SessionClosed(ctx, updated.session)
	}
	return nil
}

type updateOutcome struct {
	session *model.CollabSession
	mutated bool
}

// updateWithRetry runs a conditional session update, translating store
// errors into the domain taxonomy and honoring errNoMutation.
func (m *Manager) updateWithRetry(ctx context.Context, sessionID string, mutate func(*model.CollabSession) error) (updateOutcome, error) {
	var out updateOutcome
	err := m.withRetry(ctx, func() error {
		updated, err := m.sessions.UpdateSession(ctx, sessionID, mutate)
		if errors.Is(err, errNoMutation) {
			current, getErr := m.sessions.GetSession(ctx, sessionID)
			if getErr != nil {
				return getErr
			}
			out = updateOutcome{session: current, mutated: false}
			return nil
		}
		if err != nil {
			return err
		}
		out = updateOutcome{session: updated, mutated: true}
		return nil
	})
	if err != nil {
		return updateOutcome{}, mapStoreErr(err)
	}
	return out, nil
}

// withRetry retries transient store failures once with a short backoff.
// Domain and store sentinel errors surface immediately.
func (m *Manager) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || isTerminal(err) {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryBackoff):
	}

	err = fn()
	if err == nil || isTerminal(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isTerminal(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidArgument, ErrInsufficientTokens, ErrNotFound,
		ErrSessionClosed, ErrForbidden, ErrConflict,
		store.ErrNotFound, store.ErrConditionFailed, store.ErrPinTaken,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConditionFailed):
		return ErrConflict
	default:
		return err
	}
}

func remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

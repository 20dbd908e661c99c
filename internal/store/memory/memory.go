// Package memory implements the store interfaces with an in-process
// map. Used in tests and DEV_MODE. A single mutex serializes every
// mutation, which gives the same all-or-nothing semantics the DynamoDB
// implementation gets from conditional writes and transactions.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/letsmanuel/webnest-sub001/internal/model"
	"github.com/letsmanuel/webnest-sub001/internal/store"
)

// Store implements store.ProfileStore and store.SessionStore.
type Store struct {
	mu       sync.Mutex
	profiles map[string]*model.UserProfile
	sessions map[string]*model.CollabSession
	pins     map[string]string // normalized pin -> session id
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		profiles: make(map[string]*model.UserProfile),
		sessions: make(map[string]*model.CollabSession),
		pins:     make(map[string]string),
	}
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyProfile(p), nil
}

func (s *Store) CreateProfile(ctx context.Context, profile *model.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profile.UserID]; ok {
		return store.ErrConditionFailed
	}
	p := copyProfile(profile)
	p.UpdatedAt = time.Now()
	s.profiles[profile.UserID] = p
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, mutate func(*model.UserProfile) error) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := copyProfile(current)
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now()
	s.profiles[userID] = next
	return copyProfile(next), nil
}

func (s *Store) CreateSession(ctx context.Context, session *model.CollabSession, debit func(*model.UserProfile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.pins[session.Pin]; taken {
		return store.ErrPinTaken
	}
	current, ok := s.profiles[session.OwnerID]
	if !ok {
		return store.ErrNotFound
	}
	next := copyProfile(current)
	if err := debit(next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now()

	sess := copySession(session)
	sess.Version = 1
	s.profiles[session.OwnerID] = next
	s.sessions[sess.ID] = sess
	s.pins[sess.Pin] = sess.ID
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.CollabSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copySession(sess), nil
}

func (s *Store) FindByPin(ctx context.Context, pin string) (*model.CollabSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.pins[pin]
	if !ok {
		return nil, store.ErrNotFound
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copySession(sess), nil
}

func (s *Store) UpdateSession(ctx context.Context, id string, mutate func(*model.CollabSession) error) (*model.CollabSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := copySession(current)
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	s.sessions[id] = next

	if next.State == model.SessionClosed {
		delete(s.pins, next.Pin)
	}
	return copySession(next), nil
}

func copyProfile(p *model.UserProfile) *model.UserProfile {
	cp := *p
	return &cp
}

func copySession(sess *model.CollabSession) *model.CollabSession {
	cp := *sess
	cp.Participants = append([]string(nil), sess.Participants...)
	cp.Waitlist = append([]string(nil), sess.Waitlist...)
	cp.DeniedUsers = append([]string(nil), sess.DeniedUsers...)
	return &cp
}

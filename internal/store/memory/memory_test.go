package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/letsmanuel/webnest-sub001/internal/model"
	"github.com/letsmanuel/webnest-sub001/internal/store"
)

func newProfile(userID string, tokens int) *model.UserProfile {
	return &model.UserProfile{UserID: userID, Email: userID + "@example.com", Tokens: tokens}
}

func newSession(id, pin, owner string) *model.CollabSession {
	return &model.CollabSession{
		ID:                  id,
		Pin:                 pin,
		WebsiteID:           "site-1",
		OwnerID:             owner,
		MaxParticipants:     2,
		CurrentParticipants: 1,
		Participants:        []string{owner},
		State:               model.SessionActive,
	}
}

func TestProfileLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetProfile(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := s.CreateProfile(ctx, newProfile("u1", 100)); err != nil {
		t.Fatalf("CreateProfile returned error: %v", err)
	}
	if err := s.CreateProfile(ctx, newProfile("u1", 0)); !errors.Is(err, store.ErrConditionFailed) {
		t.Fatalf("Expected ErrConditionFailed on duplicate create, got %v", err)
	}

	updated, err := s.UpdateProfile(ctx, "u1", func(p *model.UserProfile) error {
		p.Tokens -= 40
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.Tokens != 60 {
		t.Errorf("Expected 60 tokens, got %d", updated.Tokens)
	}
}

func TestUpdateProfile_MutatorErrorAborts(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateProfile(ctx, newProfile("u1", 100))

	boom := errors.New("boom")
	if _, err := s.UpdateProfile(ctx, "u1", func(p *model.UserProfile) error {
		p.Tokens = 0
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Expected mutator error, got %v", err)
	}

	p, _ := s.GetProfile(ctx, "u1")
	if p.Tokens != 100 {
		t.Errorf("Aborted update mutated tokens: %d", p.Tokens)
	}
}

func TestCreateSession_DebitAndPinReservation(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateProfile(ctx, newProfile("owner", 50))

	sess := newSession("s1", "AB12CD", "owner")
	err := s.CreateSession(ctx, sess, func(p *model.UserProfile) error {
		p.Tokens -= 20
		return nil
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	p, _ := s.GetProfile(ctx, "owner")
	if p.Tokens != 30 {
		t.Errorf("Expected 30 tokens after debit, got %d", p.Tokens)
	}

	found, err := s.FindByPin(ctx, "AB12CD")
	if err != nil {
		t.Fatalf("FindByPin returned error: %v", err)
	}
	if found.ID != "s1" {
		t.Errorf("Expected session s1, got %s", found.ID)
	}

	// Same PIN cannot be reserved twice while active.
	err = s.CreateSession(ctx, newSession("s2", "AB12CD", "owner"), func(*model.UserProfile) error { return nil })
	if !errors.Is(err, store.ErrPinTaken) {
		t.Fatalf("Expected ErrPinTaken, got %v", err)
	}
}

func TestCreateSession_DebitErrorAborts(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateProfile(ctx, newProfile("owner", 5))

	insufficient := errors.New("insufficient")
	err := s.CreateSession(ctx, newSession("s1", "AB12CD", "owner"), func(p *model.UserProfile) error {
		return insufficient
	})
	if !errors.Is(err, insufficient) {
		t.Fatalf("Expected debit error, got %v", err)
	}

	if _, err := s.GetSession(ctx, "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Aborted create persisted a session: %v", err)
	}
	if _, err := s.FindByPin(ctx, "AB12CD"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Aborted create reserved the pin: %v", err)
	}
	p, _ := s.GetProfile(ctx, "owner")
	if p.Tokens != 5 {
		t.Errorf("Aborted create mutated tokens: %d", p.Tokens)
	}
}

func TestUpdateSession_CloseReleasesPin(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateProfile(ctx, newProfile("owner", 50))
	s.CreateSession(ctx, newSession("s1", "AB12CD", "owner"), func(*model.UserProfile) error { return nil })

	updated, err := s.UpdateSession(ctx, "s1", func(sess *model.CollabSession) error {
		sess.State = model.SessionClosed
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateSession returned error: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Expected version 2 after one update, got %d", updated.Version)
	}

	if _, err := s.FindByPin(ctx, "AB12CD"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Closed session still resolvable by pin: %v", err)
	}
	// Still fetchable by id.
	if _, err := s.GetSession(ctx, "s1"); err != nil {
		t.Errorf("Closed session lost by id: %v", err)
	}
}

func TestUpdateSession_CopyIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateProfile(ctx, newProfile("owner", 50))
	s.CreateSession(ctx, newSession("s1", "AB12CD", "owner"), func(*model.UserProfile) error { return nil })

	boom := errors.New("boom")
	s.UpdateSession(ctx, "s1", func(sess *model.CollabSession) error {
		sess.Participants = append(sess.Participants, "intruder")
		return boom
	})

	sess, _ := s.GetSession(ctx, "s1")
	if len(sess.Participants) != 1 {
		t.Errorf("Aborted update leaked participants: %v", sess.Participants)
	}
}

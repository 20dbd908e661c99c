package collab

import (
	"context"
	"fmt"
	"sync"

	"github.com/letsmanuel/webnest-sub001/internal/model"
)

// Notifier receives membership events for fanout to connected clients.
// The manager calls it after a mutation has been committed; failures to
// deliver never roll back session state.
type Notifier interface {
	// SessionClosed fires once when a session transitions to closed.
	// Every admitted participant should be told.
	SessionClosed(ctx context.Context, session *model.CollabSession)

	// ParticipantAdmitted fires when a user enters the participant
	// set, including waitlist promotions.
	ParticipantAdmitted(ctx context.Context, session *model.CollabSession, userID, displayName string)
}

// LogNotifier writes events to the process log. Delivery to clients
// happens out-of-band (the UI polls session state).
type LogNotifier struct{}

func (LogNotifier) SessionClosed(_ context.Context, session *model.CollabSession) {
	fmt.Printf("Session %s closed, notifying %d participants\n", session.ID, len(session.Participants))
}

func (LogNotifier) ParticipantAdmitted(_ context.Context, session *model.CollabSession, userID, displayName string) {
	fmt.Printf("Session %s admitted %s (%s)\n", session.ID, userID, displayName)
}

// RecordingNotifier captures events for assertions in tests.
type RecordingNotifier struct {
	mu       sync.Mutex
	Closed   []string // session ids
	Admitted []string // "sessionID:userID"
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (r *RecordingNotifier) SessionClosed(_ context.Context, session *model.CollabSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = append(r.Closed, session.ID)
}

func (r *RecordingNotifier) ParticipantAdmitted(_ context.Context, session *model.CollabSession, userID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Admitted = append(r.Admitted, session.ID+":"+userID)
}

package model

import "time"

// PinStyle selects the alphabet used when generating a session PIN.
type PinStyle string

const (
	PinStyleStandard PinStyle = "standard"
	PinStyleNumbers  PinStyle = "numbers"
	PinStyleEmoji    PinStyle = "emoji"
)

// SessionState is the lifecycle state of a collaboration session.
type SessionState string

const (
	SessionActive SessionState = "active"
	SessionClosed SessionState = "closed"
)

// UserProfile holds the per-user token wallet stored in DynamoDB.
type UserProfile struct {
	UserID                 string    `json:"userId" dynamodbav:"user_id"`
	Email                  string    `json:"email" dynamodbav:"email"`
	DisplayName            string    `json:"displayName" dynamodbav:"display_name"`
	Tokens                 int       `json:"tokens" dynamodbav:"tokens"`
	HasUsedFreeCollabTrial bool      `json:"hasUsedFreeCollabTrial" dynamodbav:"has_used_free_collab_trial"`
	EncryptedCustomerID    string    `json:"-" dynamodbav:"encrypted_customer_id,omitempty"`
	UpdatedAt              time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// CollabSession represents a joinable collaboration session on a website.
// Version backs conditional updates; every mutation increments it.
type CollabSession struct {
	ID                  string       `json:"id" dynamodbav:"id"`
	Pin                 string       `json:"pin" dynamodbav:"pin"`
	PinStyle            PinStyle     `json:"pinStyle" dynamodbav:"pin_style"`
	WebsiteID           string       `json:"websiteId" dynamodbav:"website_id"`
	OwnerID             string       `json:"ownerId" dynamodbav:"owner_id"`
	MaxParticipants     int          `json:"maxParticipants" dynamodbav:"max_participants"`
	CurrentParticipants int          `json:"currentParticipants" dynamodbav:"current_participants"`
	Participants        []string     `json:"participants" dynamodbav:"participants"`
	Waitlist            []string     `json:"waitlist" dynamodbav:"waitlist"`
	DeniedUsers         []string     `json:"deniedUsers" dynamodbav:"denied_users"`
	State               SessionState `json:"state" dynamodbav:"state"`
	Version             int64        `json:"-" dynamodbav:"version"`
	CreatedAt           time.Time    `json:"createdAt" dynamodbav:"created_at"`
}

// HasParticipant reports whether userID is currently admitted.
func (s *CollabSession) HasParticipant(userID string) bool {
	return contains(s.Participants, userID)
}

// IsDenied reports whether userID has been rejected by the owner.
func (s *CollabSession) IsDenied(userID string) bool {
	return contains(s.DeniedUsers, userID)
}

// IsWaitlisted reports whether userID is queued for admission.
func (s *CollabSession) IsWaitlisted(userID string) bool {
	return contains(s.Waitlist, userID)
}

// IsFull reports whether all participant slots are taken.
func (s *CollabSession) IsFull() bool {
	return s.CurrentParticipants >= s.MaxParticipants
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// Package token computes prices for paid collaboration actions.
package token

import "fmt"

const (
	// MinParticipants is the smallest session size that can be priced.
	MinParticipants = 2
	// MaxParticipants caps the continuous size range.
	MaxParticipants = 20

	perSlotRate      = 10
	extendedBase     = 50
	extendedSlotRate = 5
	extendedFrom     = 5
)

// ErrInvalidParticipantCount is returned for participant counts below the minimum.
var ErrInvalidParticipantCount = fmt.Errorf("participant count must be at least %d", MinParticipants)

// SessionCost returns the token price for a session with the given
// participant capacity. Sizes 2-5 are priced at a flat per-slot rate;
// larger sessions pay a discounted rate for each slot beyond 5.
func SessionCost(maxParticipants int) (int, error) {
	if maxParticipants < MinParticipants {
		return 0, ErrInvalidParticipantCount
	}
	if maxParticipants <= extendedFrom {
		return maxParticipants * perSlotRate, nil
	}
	return extendedBase + (maxParticipants-extendedFrom)*extendedSlotRate, nil
}

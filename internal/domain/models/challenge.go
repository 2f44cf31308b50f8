package models

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeState is the lifecycle of a second-factor challenge.
type ChallengeState string

const (
	ChallengeAwaitingApproval ChallengeState = "awaiting_approval"
	ChallengeApproved         ChallengeState = "approved"
	ChallengeDenied           ChallengeState = "denied"
	ChallengeTimedOut         ChallengeState = "timed_out"
)

// PendingChallenge is an in-flight second-factor verification for a session
// start. At most one exists per game account. MessageRef is set once the
// notification channel confirms delivery.
type PendingChallenge struct {
	ID         string         `json:"id"`
	AccountID  string         `json:"account_id"`
	Origin     string         `json:"origin"`
	Code       string         `json:"code"`
	State      ChallengeState `json:"state"`
	MessageRef string         `json:"message_ref,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// NewPendingChallenge creates a challenge with a fresh opaque id.
func NewPendingChallenge(accountID, origin, code string, ttl time.Duration) *PendingChallenge {
	now := time.Now().UTC()
	return &PendingChallenge{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Origin:    origin,
		Code:      code,
		State:     ChallengeAwaitingApproval,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (c *PendingChallenge) IsExpired() bool {
	return time.Now().UTC().After(c.ExpiresAt)
}

package models

import "time"

// Identity is the durable record binding a game account to an external
// messaging-platform identity. ExternalID is unique across all records when set;
// an identity without an external id cannot have the second factor enabled.
type Identity struct {
	AccountID    string     `json:"account_id" yaml:"account_id"`
	DisplayName  string     `json:"display_name" yaml:"display_name"`
	ExternalID   *string    `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	SecondFactor bool       `json:"second_factor" yaml:"second_factor"`
	LinkedAt     *time.Time `json:"linked_at,omitempty" yaml:"linked_at,omitempty"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty" yaml:"last_seen_at,omitempty"`
}

// NewIdentity returns an unlinked identity for a game account.
func NewIdentity(accountID, displayName string) *Identity {
	return &Identity{
		AccountID:   accountID,
		DisplayName: displayName,
	}
}

// IsLinked reports whether an external identity is bound.
func (i *Identity) IsLinked() bool {
	return i.ExternalID != nil && *i.ExternalID != ""
}

// Link binds the external identity and stamps LinkedAt.
func (i *Identity) Link(externalID string, now time.Time) {
	i.ExternalID = &externalID
	i.LinkedAt = &now
}

// Unlink clears the external identity and disables the second factor, since
// a second factor without a delivery target cannot be satisfied.
func (i *Identity) Unlink() {
	i.ExternalID = nil
	i.LinkedAt = nil
	i.SecondFactor = false
}

// RequiresChallenge reports whether a session start for this identity must be
// confirmed out of band.
func (i *Identity) RequiresChallenge() bool {
	return i.SecondFactor && i.IsLinked()
}

package models

import "time"

// PendingLink is a one-time numeric code waiting to be claimed by an external
// identity. At most one exists per game account; the code is unique among all
// links that are currently pending.
type PendingLink struct {
	AccountID   string    `json:"account_id" yaml:"account_id"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Code        string    `json:"code" yaml:"code"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	ExpiresAt   time.Time `json:"expires_at" yaml:"expires_at"`
}

// NewPendingLink creates a pending link with the given TTL.
func NewPendingLink(accountID, displayName, code string, ttl time.Duration) *PendingLink {
	now := time.Now().UTC()
	return &PendingLink{
		AccountID:   accountID,
		DisplayName: displayName,
		Code:        code,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (p *PendingLink) IsExpired() bool {
	return time.Now().UTC().After(p.ExpiresAt)
}

// Remaining returns the time left before expiry, floored at zero.
func (p *PendingLink) Remaining() time.Duration {
	d := time.Until(p.ExpiresAt)
	if d < 0 {
		return 0
	}
	return d
}

package models

import "time"

// Ban is a network-origin ban. A nil ExpiresAt means permanent. Records are
// replaced on re-ban, never mutated in place.
type Ban struct {
	Origin    string     `json:"origin" yaml:"origin"`
	Reason    string     `json:"reason" yaml:"reason"`
	Issuer    string     `json:"issuer" yaml:"issuer"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// NewBan creates a ban record. A non-positive duration produces a permanent ban.
func NewBan(origin, reason, issuer string, duration time.Duration) *Ban {
	now := time.Now().UTC()
	b := &Ban{
		Origin:    origin,
		Reason:    reason,
		Issuer:    issuer,
		CreatedAt: now,
	}
	if duration > 0 {
		exp := now.Add(duration)
		b.ExpiresAt = &exp
	}
	return b
}

func (b *Ban) IsPermanent() bool {
	return b.ExpiresAt == nil
}

// IsActive reports whether the ban is still in force.
func (b *Ban) IsActive() bool {
	return b.ExpiresAt == nil || time.Now().UTC().Before(*b.ExpiresAt)
}

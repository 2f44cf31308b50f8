package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a security-relevant transition.
type EventKind string

const (
	EventLogin              EventKind = "login"
	EventFailedLogin        EventKind = "failed_login"
	EventAccountLinked      EventKind = "account_linked"
	EventAccountUnlinked    EventKind = "account_unlinked"
	EventBan                EventKind = "ban"
	EventUnban              EventKind = "unban"
	EventSuspiciousActivity EventKind = "suspicious_activity"
	EventBruteForce         EventKind = "brute_force"
	EventRateLimit          EventKind = "rate_limit"
	EventAdminAction        EventKind = "admin_action"
	EventSystemError        EventKind = "system_error"
	EventStoreError         EventKind = "store_error"
	EventChannelError       EventKind = "channel_error"
)

// defaultSeverity maps each kind to its baseline severity on the 1-5 scale.
var defaultSeverity = map[EventKind]int{
	EventLogin:              1,
	EventFailedLogin:        3,
	EventAccountLinked:      2,
	EventAccountUnlinked:    2,
	EventBan:                4,
	EventUnban:              2,
	EventSuspiciousActivity: 3,
	EventBruteForce:         4,
	EventRateLimit:          2,
	EventAdminAction:        2,
	EventSystemError:        3,
	EventStoreError:         4,
	EventChannelError:       3,
}

// DefaultSeverity returns the baseline severity for a kind, or 1 for unknown kinds.
func (k EventKind) DefaultSeverity() int {
	if s, ok := defaultSeverity[k]; ok {
		return s
	}
	return 1
}

// SecurityEvent is an append-only audit record. Events are never mutated;
// a retention sweep drops entries older than the configured horizon.
type SecurityEvent struct {
	ID          string    `json:"id" yaml:"id"`
	Kind        EventKind `json:"kind" yaml:"kind"`
	Severity    int       `json:"severity" yaml:"severity"`
	AccountID   string    `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	AccountName string    `json:"account_name,omitempty" yaml:"account_name,omitempty"`
	Origin      string    `json:"origin,omitempty" yaml:"origin,omitempty"`
	Description string    `json:"description" yaml:"description"`
	Details     string    `json:"details,omitempty" yaml:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewSecurityEvent builds an event with the kind's default severity.
func NewSecurityEvent(kind EventKind, description string) *SecurityEvent {
	return &SecurityEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		Severity:    kind.DefaultSeverity(),
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
}

func (e *SecurityEvent) WithAccount(accountID, name string) *SecurityEvent {
	e.AccountID = accountID
	e.AccountName = name
	return e
}

func (e *SecurityEvent) WithOrigin(origin string) *SecurityEvent {
	e.Origin = origin
	return e
}

func (e *SecurityEvent) WithSeverity(severity int) *SecurityEvent {
	if severity < 1 {
		severity = 1
	}
	if severity > 5 {
		severity = 5
	}
	e.Severity = severity
	return e
}

func (e *SecurityEvent) WithDetails(details string) *SecurityEvent {
	e.Details = details
	return e
}

// EventFilter narrows event queries on the administrative surface.
type EventFilter struct {
	Kind      EventKind
	AccountID string
	Origin    string
	Since     time.Time
	Until     time.Time
}

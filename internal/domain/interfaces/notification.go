package interfaces

import "context"

// ChallengePayload carries everything the messaging platform needs to render an
// approval request: who is logging in, from where, and the informational code
// shown alongside the approve/deny buttons.
type ChallengePayload struct {
	ChallengeID string
	AccountID   string
	AccountName string
	Origin      string
	Code        string
	TimeoutSecs int
}

// NotificationChannel delivers challenge and link prompts to an external
// identity. Approve/deny outcomes arrive asynchronously through the callbacks
// registered by the challenge coordinator; the channel implementation owns the
// message rendering and button plumbing.
type NotificationChannel interface {
	// SendChallenge delivers an approval request and returns an opaque message
	// reference on success.
	SendChallenge(ctx context.Context, externalID string, payload ChallengePayload) (messageRef string, err error)

	// SendLinkPrompt tells an external identity how to submit a link code.
	SendLinkPrompt(ctx context.Context, externalID string, accountName string) error

	// SendAlert posts an operator-facing security notice; best effort.
	SendAlert(ctx context.Context, title, body string) error
}

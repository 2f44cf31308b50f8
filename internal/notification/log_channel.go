// Package notification holds NotificationChannel implementations. A real
// deployment plugs in a messaging-platform client; LogChannel is the built-in
// stand-in that records every prompt in the application log.
package notification

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/domain/interfaces"
)

// LogChannel satisfies interfaces.NotificationChannel by logging prompts
// instead of delivering them. Useful for wiring, local runs, and tests.
type LogChannel struct {
	logger *zap.Logger
}

var _ interfaces.NotificationChannel = (*LogChannel)(nil)

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) SendChallenge(_ context.Context, externalID string, payload interfaces.ChallengePayload) (string, error) {
	ref := uuid.NewString()
	c.logger.Info("challenge prompt",
		zap.String("external_id", externalID),
		zap.String("challenge_id", payload.ChallengeID),
		zap.String("account_name", payload.AccountName),
		zap.String("origin", payload.Origin),
		zap.String("code", payload.Code),
		zap.Int("timeout_secs", payload.TimeoutSecs),
		zap.String("message_ref", ref))
	return ref, nil
}

func (c *LogChannel) SendLinkPrompt(_ context.Context, externalID, accountName string) error {
	c.logger.Info("link prompt",
		zap.String("external_id", externalID),
		zap.String("account_name", accountName))
	return nil
}

func (c *LogChannel) SendAlert(_ context.Context, title, body string) error {
	c.logger.Warn("security alert",
		zap.String("title", title),
		zap.String("body", body))
	return nil
}

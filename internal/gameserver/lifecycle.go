package gameserver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/interfaces"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
	"github.com/KynuxDev/DiscordLite/internal/domain/repository"
	"github.com/KynuxDev/DiscordLite/internal/domain/service"
)

const identitySaveTimeout = 5 * time.Second

// Lifecycle receives session start/quit callbacks from the game server and
// drives the security flow: ban gate first, then identity bookkeeping, then the
// second-factor challenge when the account requires one.
type Lifecycle struct {
	logger     *zap.Logger
	identities repository.IdentityRepository
	registry   *Registry
	bans       *service.BanEnforcer
	links      *service.LinkCoordinator
	challenges *service.ChallengeCoordinator
	audit      *service.AuditService
}

var _ interfaces.SessionEventSource = (*Lifecycle)(nil)

func NewLifecycle(
	logger *zap.Logger,
	identities repository.IdentityRepository,
	registry *Registry,
	bans *service.BanEnforcer,
	links *service.LinkCoordinator,
	challenges *service.ChallengeCoordinator,
	audit *service.AuditService,
) *Lifecycle {
	return &Lifecycle{
		logger:     logger,
		identities: identities,
		registry:   registry,
		bans:       bans,
		links:      links,
		challenges: challenges,
		audit:      audit,
	}
}

// OnSessionStart gates the join on the origin ban list, registers the session,
// stamps the identity, and issues a second-factor challenge when required.
func (l *Lifecycle) OnSessionStart(ctx context.Context, accountID, displayName, sessionID, origin string) {
	if l.bans.IsBanned(ctx, origin) {
		reason := "You are banned from this server."
		if ban := l.bans.Lookup(ctx, origin); ban != nil && ban.Reason != "" {
			reason = "Banned: " + ban.Reason
		}
		l.registry.Add(sessionID, accountID, origin)
		l.registry.Kick(sessionID, reason)
		l.audit.Record(models.NewSecurityEvent(models.EventFailedLogin, "join from banned origin").
			WithAccount(accountID, displayName).
			WithOrigin(origin))
		return
	}

	l.registry.Add(sessionID, accountID, origin)
	go l.touchIdentity(accountID, displayName)

	l.audit.Record(models.NewSecurityEvent(models.EventLogin, "session started").
		WithAccount(accountID, displayName).
		WithOrigin(origin).
		WithSeverity(1))

	_, err := l.challenges.IssueChallenge(ctx, accountID, sessionID, origin)
	switch {
	case err == nil:
		l.registry.Message(sessionID, "Check your messages to approve this login.")
	case errors.Is(err, domainErrors.ErrNotEligible):
		// No second factor configured; nothing to do.
	case errors.Is(err, domainErrors.ErrChallengePending):
		// The previous session's challenge is still unresolved. A fresh join
		// must not race it for the verdict.
		l.registry.Kick(sessionID, "A login verification is already in progress. Try again shortly.")
	default:
		l.logger.Error("challenge issuance failed",
			zap.String("account_id", accountID), zap.Error(err))
		l.registry.Kick(sessionID, "Login verification is unavailable. Try again shortly.")
	}
}

// OnSessionQuit abandons whatever the departing account had in flight.
func (l *Lifecycle) OnSessionQuit(ctx context.Context, accountID string) {
	l.links.Cancel(accountID)
	l.challenges.CancelForAccount(accountID)

	if sessionID, ok := l.registry.Lookup(accountID); ok {
		l.registry.Remove(sessionID)
	}
}

// touchIdentity upserts the identity record with the current display name and
// last-seen timestamp. Best effort; a store hiccup must not block the join.
func (l *Lifecycle) touchIdentity(accountID, displayName string) {
	ctx, cancel := context.WithTimeout(context.Background(), identitySaveTimeout)
	defer cancel()

	identity, err := l.identities.Get(ctx, accountID)
	if err != nil && !errors.Is(err, domainErrors.ErrNotFound) {
		l.logger.Warn("identity lookup failed on join",
			zap.String("account_id", accountID), zap.Error(err))
		return
	}
	if identity == nil {
		identity = models.NewIdentity(accountID, displayName)
	}
	identity.DisplayName = displayName
	now := time.Now().UTC()
	identity.LastSeenAt = &now

	if err := l.identities.Save(ctx, identity); err != nil {
		l.logger.Warn("identity save failed on join",
			zap.String("account_id", accountID), zap.Error(err))
	}
}

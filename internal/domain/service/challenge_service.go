package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/interfaces"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
	"github.com/KynuxDev/DiscordLite/internal/domain/repository"
	"github.com/KynuxDev/DiscordLite/internal/utils/metrics"
	"github.com/KynuxDev/DiscordLite/internal/utils/random"
)

const challengeSendTimeout = 10 * time.Second

// originBanner is the slice of BanEnforcer the deny path needs.
type originBanner interface {
	Ban(ctx context.Context, origin, reason, issuer string, duration time.Duration) bool
}

type pendingChallengeEntry struct {
	challenge *models.PendingChallenge
	timer     *time.Timer

	mu         sync.Mutex
	messageRef string
}

// ChallengeCoordinator runs the second-factor flow: freeze the session on
// login, push an approval prompt to the linked external identity, and resolve
// exactly one of approve, deny, or timeout. Removal from byID is the ownership
// token; whichever path takes the entry performs the resolution alone.
type ChallengeCoordinator struct {
	logger     *zap.Logger
	cfg        config.ChallengeConfig
	identities repository.IdentityRepository
	sessions   interfaces.GameSessions
	channel    interfaces.NotificationChannel
	audit      *AuditService
	bans       originBanner
	failures   failureResetter

	byID      sync.Map // challenge id -> *pendingChallengeEntry
	byAccount sync.Map // account id -> challenge id

	frozenMu sync.RWMutex
	frozen   map[string]string // account id -> session id
}

func NewChallengeCoordinator(
	logger *zap.Logger,
	cfg config.ChallengeConfig,
	identities repository.IdentityRepository,
	sessions interfaces.GameSessions,
	channel interfaces.NotificationChannel,
	audit *AuditService,
	bans originBanner,
	failures failureResetter,
) *ChallengeCoordinator {
	return &ChallengeCoordinator{
		logger:     logger,
		cfg:        cfg,
		identities: identities,
		sessions:   sessions,
		channel:    channel,
		audit:      audit,
		bans:       bans,
		failures:   failures,
		frozen:     make(map[string]string),
	}
}

// IssueChallenge freezes the session and pushes an approval prompt for a
// linked account with the second factor enabled. Returns ErrNotEligible for
// everyone else and ErrChallengePending while a challenge is already awaiting
// approval. Delivery failure fails closed: the session is kicked.
func (c *ChallengeCoordinator) IssueChallenge(ctx context.Context, accountID, sessionID, origin string) (*models.PendingChallenge, error) {
	identity, err := c.identities.Get(ctx, accountID)
	if err != nil && !isNotFound(err) {
		return nil, domainErrors.WrapStore(err)
	}
	if identity == nil || !identity.RequiresChallenge() {
		return nil, domainErrors.ErrNotEligible
	}

	code, err := random.ChallengeCode()
	if err != nil {
		return nil, err
	}
	challenge := models.NewPendingChallenge(accountID, origin, code, c.cfg.Timeout)
	entry := &pendingChallengeEntry{challenge: challenge}

	if _, loaded := c.byAccount.LoadOrStore(accountID, challenge.ID); loaded {
		return nil, domainErrors.ErrChallengePending
	}
	c.byID.Store(challenge.ID, entry)

	c.freeze(accountID, sessionID)
	entry.timer = time.AfterFunc(c.cfg.Timeout, func() { c.timeout(challenge.ID) })

	go c.deliver(entry, *identity.ExternalID, identity.DisplayName, sessionID)

	c.audit.Record(models.NewSecurityEvent(models.EventLogin, "second-factor challenge issued").
		WithAccount(accountID, identity.DisplayName).
		WithOrigin(origin).
		WithSeverity(1).
		WithDetails("challenge_id=" + challenge.ID))

	c.logger.Info("challenge issued",
		zap.String("account_id", accountID),
		zap.String("challenge_id", challenge.ID),
		zap.String("origin", origin))
	return challenge, nil
}

// deliver pushes the prompt over the notification channel. The challenge is
// armed before delivery, so a prompt the player never saw still times out.
func (c *ChallengeCoordinator) deliver(entry *pendingChallengeEntry, externalID, accountName, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), challengeSendTimeout)
	defer cancel()

	challenge := entry.challenge
	ref, err := c.channel.SendChallenge(ctx, externalID, interfaces.ChallengePayload{
		ChallengeID: challenge.ID,
		AccountID:   challenge.AccountID,
		AccountName: accountName,
		Origin:      challenge.Origin,
		Code:        challenge.Code,
		TimeoutSecs: int(c.cfg.Timeout.Seconds()),
	})
	if err != nil {
		c.logger.Error("challenge delivery failed",
			zap.String("challenge_id", challenge.ID),
			zap.String("account_id", challenge.AccountID),
			zap.Error(err))
		c.audit.Record(models.NewSecurityEvent(models.EventChannelError, "challenge delivery failed").
			WithAccount(challenge.AccountID, "").
			WithOrigin(challenge.Origin).
			WithDetails(err.Error()))
		c.failClosed(challenge.ID, sessionID)
		return
	}

	entry.mu.Lock()
	entry.messageRef = ref
	entry.challenge.MessageRef = ref
	entry.mu.Unlock()
}

// failClosed resolves an undeliverable challenge by kicking the session.
func (c *ChallengeCoordinator) failClosed(challengeID, sessionID string) {
	entry, ok := c.take(challengeID)
	if !ok {
		return
	}
	entry.challenge.State = models.ChallengeTimedOut
	c.sessions.Kick(sessionID, "Second-factor prompt could not be delivered. Please reconnect.")
	metrics.Challenges.WithLabelValues("undeliverable").Inc()
}

// Approve resolves the challenge in the player's favor: the session thaws and
// the origin's failure streak resets. actorID identifies the external identity
// that pressed approve. Exactly one resolver wins; later calls get ErrNotFound.
func (c *ChallengeCoordinator) Approve(challengeID, actorID string) error {
	entry, ok := c.take(challengeID)
	if !ok {
		return domainErrors.ErrNotFound
	}
	if entry.challenge.IsExpired() {
		// The deadline passed before the timer fired.
		c.resolveExpired(entry)
		return domainErrors.ErrNotFound
	}
	challenge := entry.challenge
	challenge.State = models.ChallengeApproved

	c.thaw(challenge.AccountID, "Login approved. Welcome back!")
	c.failures.ClearFailures(challenge.Origin)

	metrics.Challenges.WithLabelValues("approved").Inc()
	c.audit.Record(models.NewSecurityEvent(models.EventLogin, "second-factor approved").
		WithAccount(challenge.AccountID, "").
		WithOrigin(challenge.Origin).
		WithSeverity(1).
		WithDetails("challenge_id=" + challengeID + " actor=" + actorID))

	c.logger.Info("challenge approved",
		zap.String("account_id", challenge.AccountID),
		zap.String("challenge_id", challengeID),
		zap.String("actor_id", actorID))
	return nil
}

// Deny resolves the challenge against the player: the session is kicked and,
// when a deny duration is configured, the origin banned for it. actorID
// identifies the external identity that pressed deny.
func (c *ChallengeCoordinator) Deny(ctx context.Context, challengeID, actorID string) error {
	entry, ok := c.take(challengeID)
	if !ok {
		return domainErrors.ErrNotFound
	}
	challenge := entry.challenge
	challenge.State = models.ChallengeDenied

	c.kickFrozen(challenge.AccountID, "Login denied by account owner.")
	if c.cfg.DenyBanDuration > 0 {
		c.bans.Ban(ctx, challenge.Origin, "second-factor denied by account owner", SystemIssuer, c.cfg.DenyBanDuration)
	}

	metrics.Challenges.WithLabelValues("denied").Inc()
	c.audit.Record(models.NewSecurityEvent(models.EventFailedLogin, "second-factor denied").
		WithAccount(challenge.AccountID, "").
		WithOrigin(challenge.Origin).
		WithSeverity(4).
		WithDetails("challenge_id=" + challengeID + " actor=" + actorID))

	c.logger.Warn("challenge denied",
		zap.String("account_id", challenge.AccountID),
		zap.String("origin", challenge.Origin),
		zap.String("challenge_id", challengeID),
		zap.String("actor_id", actorID))
	return nil
}

// timeout fires when no verdict arrived in time.
func (c *ChallengeCoordinator) timeout(challengeID string) {
	entry, ok := c.take(challengeID)
	if !ok {
		return
	}
	c.resolveExpired(entry)
}

// resolveExpired finishes a taken challenge whose deadline passed. Counts as a
// failed login.
func (c *ChallengeCoordinator) resolveExpired(entry *pendingChallengeEntry) {
	challenge := entry.challenge
	challenge.State = models.ChallengeTimedOut

	c.kickFrozen(challenge.AccountID, "Login verification timed out. Please reconnect and approve promptly.")

	metrics.Challenges.WithLabelValues("timed_out").Inc()
	c.audit.Record(models.NewSecurityEvent(models.EventFailedLogin, "second-factor timed out").
		WithAccount(challenge.AccountID, "").
		WithOrigin(challenge.Origin).
		WithSeverity(2).
		WithDetails("challenge_id=" + challenge.ID))

	c.logger.Warn("challenge timed out",
		zap.String("account_id", challenge.AccountID),
		zap.String("challenge_id", challenge.ID))
}

// CancelForAccount drops any pending challenge when its session ends. The
// frozen marker goes with it; nothing is kicked because the session is gone.
func (c *ChallengeCoordinator) CancelForAccount(accountID string) bool {
	v, ok := c.byAccount.Load(accountID)
	if !ok {
		return false
	}
	entry, taken := c.take(v.(string))
	if !taken {
		return false
	}
	entry.challenge.State = models.ChallengeTimedOut
	c.clearFrozen(accountID)
	metrics.Challenges.WithLabelValues("abandoned").Inc()
	c.logger.Info("pending challenge abandoned",
		zap.String("account_id", accountID),
		zap.String("challenge_id", entry.challenge.ID))
	return true
}

// HasPending reports whether an unresolved challenge exists for the account.
func (c *ChallengeCoordinator) HasPending(accountID string) bool {
	_, ok := c.byAccount.Load(accountID)
	return ok
}

// Pending returns the live challenge for an account, or nil.
func (c *ChallengeCoordinator) Pending(accountID string) *models.PendingChallenge {
	v, ok := c.byAccount.Load(accountID)
	if !ok {
		return nil
	}
	e, ok := c.byID.Load(v.(string))
	if !ok {
		return nil
	}
	entry := e.(*pendingChallengeEntry)
	if entry.challenge.IsExpired() {
		c.timeout(entry.challenge.ID)
		return nil
	}
	return entry.challenge
}

// IsFrozen reports whether the account's session is held pending approval.
func (c *ChallengeCoordinator) IsFrozen(accountID string) bool {
	c.frozenMu.RLock()
	defer c.frozenMu.RUnlock()
	_, ok := c.frozen[accountID]
	return ok
}

// SetSecondFactor toggles the challenge requirement. Enabling requires a
// linked external identity.
func (c *ChallengeCoordinator) SetSecondFactor(ctx context.Context, accountID string, enabled bool) error {
	identity, err := c.identities.Get(ctx, accountID)
	if err != nil && !isNotFound(err) {
		return domainErrors.WrapStore(err)
	}
	if identity == nil {
		return domainErrors.ErrNotFound
	}
	if enabled && !identity.IsLinked() {
		return domainErrors.ErrNotEligible
	}
	if identity.SecondFactor == enabled {
		return nil
	}
	identity.SecondFactor = enabled
	if err := c.identities.Save(ctx, identity); err != nil {
		return domainErrors.WrapStore(err)
	}

	action := "second factor disabled"
	if enabled {
		action = "second factor enabled"
	}
	c.audit.Record(models.NewSecurityEvent(models.EventAdminAction, action).
		WithAccount(accountID, identity.DisplayName).
		WithSeverity(1))
	c.logger.Info(action, zap.String("account_id", accountID))
	return nil
}

// Cleanup resolves challenges whose deadline passed but whose timer has not
// fired, which can happen across process hiccups. Returns the count resolved.
func (c *ChallengeCoordinator) Cleanup() int {
	resolved := 0
	c.byID.Range(func(key, value any) bool {
		entry := value.(*pendingChallengeEntry)
		if entry.challenge.IsExpired() {
			c.timeout(key.(string))
			resolved++
		}
		return true
	})
	return resolved
}

// take atomically claims the challenge for resolution. Returns false when
// another path already resolved it.
func (c *ChallengeCoordinator) take(challengeID string) (*pendingChallengeEntry, bool) {
	v, ok := c.byID.LoadAndDelete(challengeID)
	if !ok {
		return nil, false
	}
	entry := v.(*pendingChallengeEntry)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	c.byAccount.CompareAndDelete(entry.challenge.AccountID, challengeID)
	return entry, true
}

func (c *ChallengeCoordinator) freeze(accountID, sessionID string) {
	c.frozenMu.Lock()
	c.frozen[accountID] = sessionID
	c.frozenMu.Unlock()
	c.sessions.Freeze(sessionID)
}

// thaw lifts the freeze and greets the player, if still online.
func (c *ChallengeCoordinator) thaw(accountID, message string) {
	sessionID, held := c.clearFrozen(accountID)
	if !held {
		return
	}
	c.sessions.Unfreeze(sessionID)
	c.sessions.Message(sessionID, message)
}

func (c *ChallengeCoordinator) kickFrozen(accountID, reason string) {
	sessionID, held := c.clearFrozen(accountID)
	if !held {
		return
	}
	c.sessions.Kick(sessionID, reason)
}

func (c *ChallengeCoordinator) clearFrozen(accountID string) (string, bool) {
	c.frozenMu.Lock()
	defer c.frozenMu.Unlock()
	sessionID, ok := c.frozen[accountID]
	if ok {
		delete(c.frozen, accountID)
	}
	return sessionID, ok
}

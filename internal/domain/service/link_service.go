package service

import (
	"context"
	"errors"
	"fmt"
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

const linkStoreTimeout = 5 * time.Second

// pendingLinkEntry pairs the pending link with its timeout timer so early
// resolution can cancel the timer best-effort.
type pendingLinkEntry struct {
	link  *models.PendingLink
	timer *time.Timer
}

// LinkCoordinator issues and resolves one-time codes binding a game account to
// an external identity. The in-memory map is authoritative: the atomic removal
// of a map entry is what makes a code single-use; the store copy exists for
// operator inspection and is best-effort.
type LinkCoordinator struct {
	logger     *zap.Logger
	cfg        config.LinkingConfig
	identities repository.IdentityRepository
	links      repository.PendingLinkRepository
	sessions   interfaces.GameSessions
	audit      *AuditService

	pending   sync.Map // accountID -> *pendingLinkEntry
	cooldowns sync.Map // accountID -> time.Time (cooldown end)
}

func NewLinkCoordinator(
	logger *zap.Logger,
	cfg config.LinkingConfig,
	identities repository.IdentityRepository,
	links repository.PendingLinkRepository,
	sessions interfaces.GameSessions,
	audit *AuditService,
) *LinkCoordinator {
	return &LinkCoordinator{
		logger:     logger,
		cfg:        cfg,
		identities: identities,
		links:      links,
		sessions:   sessions,
		audit:      audit,
	}
}

// StartLink begins the linking flow for a game account and returns the pending
// link holding the one-time code. Rejected with ErrCooldownActive while the
// per-account cooldown runs, and with ErrAlreadyLinked when the identity
// already has an external id. A still-live pending link is returned as is, so
// concurrent calls can never mint two codes for one account.
func (c *LinkCoordinator) StartLink(ctx context.Context, accountID, displayName string) (*models.PendingLink, error) {
	if entry := c.livePending(accountID); entry != nil {
		return entry.link, nil
	}
	if remaining := c.cooldownRemaining(accountID); remaining > 0 {
		return nil, fmt.Errorf("%w: %s remaining", domainErrors.ErrCooldownActive, remaining.Round(time.Second))
	}

	identity, err := c.identities.Get(ctx, accountID)
	if err != nil && !isNotFound(err) {
		return nil, domainErrors.WrapStore(err)
	}
	if identity != nil && identity.IsLinked() {
		return nil, domainErrors.ErrAlreadyLinked
	}

	code, err := c.generateCode()
	if err != nil {
		return nil, err
	}

	link := models.NewPendingLink(accountID, displayName, code, c.cfg.CodeTTL)
	entry := &pendingLinkEntry{link: link}
	if prev, loaded := c.pending.LoadOrStore(accountID, entry); loaded {
		// Another goroutine won the race for this account; hand back its code.
		return prev.(*pendingLinkEntry).link, nil
	}

	entry.timer = time.AfterFunc(c.cfg.CodeTTL, func() { c.expire(accountID, link.Code) })
	c.cooldowns.Store(accountID, time.Now().Add(c.cfg.Cooldown))

	c.saveAsync(link)
	c.audit.Record(models.NewSecurityEvent(models.EventAccountLinked, "link started").
		WithAccount(accountID, displayName).
		WithSeverity(1).
		WithDetails("code issued"))

	c.logger.Info("link started",
		zap.String("account_id", accountID),
		zap.String("display_name", displayName),
		zap.Time("expires_at", link.ExpiresAt))
	return link, nil
}

// ResolveLink claims a pending link by code on behalf of an external identity.
// First writer wins on the external side: if the external identity already owns
// a record, nothing is mutated.
func (c *LinkCoordinator) ResolveLink(ctx context.Context, code, externalID string) (*models.Identity, error) {
	accountID, entry := c.findByCode(code)
	if entry == nil {
		metrics.LinkResolutions.WithLabelValues("invalid").Inc()
		return nil, domainErrors.ErrInvalidCode
	}
	if entry.link.IsExpired() {
		c.remove(accountID, entry)
		metrics.LinkResolutions.WithLabelValues("expired").Inc()
		return nil, domainErrors.ErrCodeExpired
	}

	owner, err := c.identities.GetByExternal(ctx, externalID)
	if err != nil && !isNotFound(err) {
		metrics.LinkResolutions.WithLabelValues("store_error").Inc()
		return nil, domainErrors.WrapStore(err)
	}
	if owner != nil {
		metrics.LinkResolutions.WithLabelValues("conflict").Inc()
		return nil, domainErrors.ErrExternalAlreadyLinked
	}

	// Atomic take: whoever removes the entry owns the resolution. A concurrent
	// resolve, cancel, or expiry observing absence no-ops, and a newer entry
	// minted for the same account is left untouched.
	if !c.pending.CompareAndDelete(accountID, entry) {
		metrics.LinkResolutions.WithLabelValues("invalid").Inc()
		return nil, domainErrors.ErrInvalidCode
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}

	identity, err := c.identities.Get(ctx, accountID)
	if err != nil && !isNotFound(err) {
		c.pending.Store(accountID, entry) // let the user retry
		return nil, domainErrors.WrapStore(err)
	}
	if identity == nil {
		identity = models.NewIdentity(accountID, entry.link.DisplayName)
	}
	identity.Link(externalID, time.Now().UTC())

	if err := c.identities.Save(ctx, identity); err != nil {
		c.pending.Store(accountID, entry)
		return nil, domainErrors.WrapStore(err)
	}

	c.deleteStoredAsync(accountID)
	metrics.LinkResolutions.WithLabelValues("success").Inc()

	c.audit.Record(models.NewSecurityEvent(models.EventAccountLinked, "account linked").
		WithAccount(accountID, identity.DisplayName).
		WithDetails("external_id=" + externalID))

	if sessionID, online := c.sessions.Lookup(accountID); online {
		c.sessions.Message(sessionID, "Your account has been linked successfully.")
	}

	c.logger.Info("account linked",
		zap.String("account_id", accountID),
		zap.String("external_id", externalID))
	return identity, nil
}

// Cancel removes the account's pending link, if any. Idempotent.
func (c *LinkCoordinator) Cancel(accountID string) bool {
	v, ok := c.pending.LoadAndDelete(accountID)
	if !ok {
		return false
	}
	entry := v.(*pendingLinkEntry)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	c.deleteStoredAsync(accountID)
	c.logger.Info("pending link cancelled", zap.String("account_id", accountID))
	return true
}

// CancelByCode removes the pending link holding the given code. Idempotent.
func (c *LinkCoordinator) CancelByCode(code string) bool {
	accountID, entry := c.findByCode(code)
	if entry == nil {
		return false
	}
	return c.Cancel(accountID)
}

// Unlink clears the external identity and disables the second factor. Returns
// false when the record does not exist or has no external id.
func (c *LinkCoordinator) Unlink(ctx context.Context, accountID string) bool {
	identity, err := c.identities.Get(ctx, accountID)
	if err != nil || identity == nil || !identity.IsLinked() {
		return false
	}
	externalID := *identity.ExternalID
	identity.Unlink()

	if err := c.identities.Save(ctx, identity); err != nil {
		c.logger.Error("failed to persist unlink",
			zap.String("account_id", accountID), zap.Error(err))
		return false
	}

	c.audit.Record(models.NewSecurityEvent(models.EventAccountUnlinked, "account unlinked").
		WithAccount(accountID, identity.DisplayName).
		WithDetails("external_id=" + externalID))

	if sessionID, online := c.sessions.Lookup(accountID); online {
		c.sessions.Message(sessionID, "Your account link has been removed.")
	}

	c.logger.Info("account unlinked",
		zap.String("account_id", accountID),
		zap.String("external_id", externalID))
	return true
}

// PendingFor returns the live pending link for an account, or nil.
func (c *LinkCoordinator) PendingFor(accountID string) *models.PendingLink {
	if entry := c.livePending(accountID); entry != nil {
		return entry.link
	}
	return nil
}

// Cleanup drops expired pending links and elapsed cooldowns. The periodic
// sweep calls this; read paths also check expiry themselves.
func (c *LinkCoordinator) Cleanup() int {
	removed := 0
	c.pending.Range(func(key, value any) bool {
		entry := value.(*pendingLinkEntry)
		if entry.link.IsExpired() {
			if c.removeIfSame(key.(string), entry) {
				removed++
			}
		}
		return true
	})

	now := time.Now()
	c.cooldowns.Range(func(key, value any) bool {
		if now.After(value.(time.Time)) {
			c.cooldowns.Delete(key)
		}
		return true
	})

	if removed > 0 {
		c.logger.Info("expired pending links removed", zap.Int("count", removed))
	}
	return removed
}

// Stats reports the live pending-link and cooldown counts.
func (c *LinkCoordinator) Stats() (pending, cooldowns int) {
	c.pending.Range(func(_, _ any) bool { pending++; return true })
	now := time.Now()
	c.cooldowns.Range(func(_, value any) bool {
		if now.Before(value.(time.Time)) {
			cooldowns++
		}
		return true
	})
	return pending, cooldowns
}

// generateCode draws codes until one is unused by the current pending set.
// Expired and resolved codes are immediately reusable.
func (c *LinkCoordinator) generateCode() (string, error) {
	for {
		code, err := random.LinkCode()
		if err != nil {
			return "", err
		}
		if _, entry := c.findByCode(code); entry == nil {
			return code, nil
		}
	}
}

func (c *LinkCoordinator) findByCode(code string) (string, *pendingLinkEntry) {
	var foundID string
	var found *pendingLinkEntry
	c.pending.Range(func(key, value any) bool {
		entry := value.(*pendingLinkEntry)
		if entry.link.Code == code {
			foundID = key.(string)
			found = entry
			return false
		}
		return true
	})
	return foundID, found
}

// cooldownRemaining reports how long the account's issuance cooldown still has
// to run. Elapsed stamps are dropped on read.
func (c *LinkCoordinator) cooldownRemaining(accountID string) time.Duration {
	v, ok := c.cooldowns.Load(accountID)
	if !ok {
		return 0
	}
	remaining := time.Until(v.(time.Time))
	if remaining <= 0 {
		c.cooldowns.Delete(accountID)
		return 0
	}
	return remaining
}

func (c *LinkCoordinator) livePending(accountID string) *pendingLinkEntry {
	v, ok := c.pending.Load(accountID)
	if !ok {
		return nil
	}
	entry := v.(*pendingLinkEntry)
	if entry.link.IsExpired() {
		c.removeIfSame(accountID, entry)
		return nil
	}
	return entry
}

func (c *LinkCoordinator) expire(accountID, code string) {
	v, ok := c.pending.Load(accountID)
	if !ok {
		return
	}
	entry := v.(*pendingLinkEntry)
	if entry.link.Code != code || !entry.link.IsExpired() {
		return
	}
	if !c.removeIfSame(accountID, entry) {
		return
	}

	if sessionID, online := c.sessions.Lookup(accountID); online {
		c.sessions.Message(sessionID, "Your link code has expired. Request a new one to try again.")
	}
	c.logger.Info("link code expired",
		zap.String("account_id", accountID),
		zap.String("display_name", entry.link.DisplayName))
}

func (c *LinkCoordinator) remove(accountID string, entry *pendingLinkEntry) {
	c.removeIfSame(accountID, entry)
}

// removeIfSame deletes the map entry only if it still holds the given value,
// so a late expiry cannot evict a newer pending link for the same account.
func (c *LinkCoordinator) removeIfSame(accountID string, entry *pendingLinkEntry) bool {
	if !c.pending.CompareAndDelete(accountID, entry) {
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	c.deleteStoredAsync(accountID)
	return true
}

func (c *LinkCoordinator) saveAsync(link *models.PendingLink) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), linkStoreTimeout)
		defer cancel()
		if err := c.links.Save(ctx, link); err != nil {
			c.logger.Warn("failed to mirror pending link to store",
				zap.String("account_id", link.AccountID), zap.Error(err))
		}
	}()
}

func (c *LinkCoordinator) deleteStoredAsync(accountID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), linkStoreTimeout)
		defer cancel()
		if err := c.links.Delete(ctx, accountID); err != nil && !isNotFound(err) {
			c.logger.Warn("failed to remove mirrored pending link",
				zap.String("account_id", accountID), zap.Error(err))
		}
	}()
}

func isNotFound(err error) bool {
	return errors.Is(err, domainErrors.ErrNotFound)
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	"github.com/KynuxDev/DiscordLite/internal/domain/interfaces"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
	"github.com/KynuxDev/DiscordLite/internal/domain/repository"
	"github.com/KynuxDev/DiscordLite/internal/utils/metrics"
)

// SystemIssuer is recorded on bans created by policy rather than by an
// administrator.
const SystemIssuer = "discordlite:auto"

// WhitelistSettingKey is the settings row mirroring the origin whitelist,
// stored as a comma-separated list.
const WhitelistSettingKey = "ban.whitelist"

const banCheckTimeout = 3 * time.Second

// failureResetter is the slice of the risk tracker the enforcer clears on ban.
type failureResetter interface {
	ClearFailures(origin string)
}

// BanEnforcer owns the origin-ban lifecycle: creation, lookup, expiry, removal,
// and session termination for matching origins. A whitelisted origin is never
// bannable and never reported as banned.
type BanEnforcer struct {
	logger   *zap.Logger
	cfg      config.BanConfig
	bans     repository.BanRepository
	sessions interfaces.GameSessions
	audit    *AuditService
	failures failureResetter

	wlMu      sync.RWMutex
	whitelist map[string]struct{}

	// banMu serializes ban creation per call so concurrent autoban paths cannot
	// double-write a record for the same origin.
	banMu sync.Mutex
}

func NewBanEnforcer(
	logger *zap.Logger,
	cfg config.BanConfig,
	bans repository.BanRepository,
	sessions interfaces.GameSessions,
	audit *AuditService,
	failures failureResetter,
) *BanEnforcer {
	wl := make(map[string]struct{}, len(cfg.Whitelist))
	for _, origin := range cfg.Whitelist {
		wl[origin] = struct{}{}
	}
	return &BanEnforcer{
		logger:    logger,
		cfg:       cfg,
		bans:      bans,
		sessions:  sessions,
		audit:     audit,
		failures:  failures,
		whitelist: wl,
	}
}

// Ban creates a ban for an origin. Returns false when the origin is
// whitelisted or already actively banned. duration <= 0 means permanent.
func (e *BanEnforcer) Ban(ctx context.Context, origin, reason, issuer string, duration time.Duration) bool {
	if e.IsWhitelisted(origin) {
		e.logger.Warn("refusing to ban whitelisted origin", zap.String("origin", origin))
		return false
	}

	e.banMu.Lock()
	existing, err := e.bans.Get(ctx, origin)
	if err == nil && existing != nil && existing.IsActive() {
		e.banMu.Unlock()
		return false
	}

	ban := models.NewBan(origin, reason, issuer, duration)
	if err := e.bans.Save(ctx, ban); err != nil {
		e.banMu.Unlock()
		e.logger.Error("failed to save ban",
			zap.String("origin", origin), zap.Error(err))
		return false
	}
	// Side effects run outside banMu: the audit feed reaches the risk
	// tracker, which can call back into Ban.
	e.banMu.Unlock()

	e.kickOrigin(origin, fmt.Sprintf("Your network address has been banned: %s", reason))

	mode := "manual"
	if issuer == SystemIssuer {
		mode = "auto"
	}
	metrics.Bans.WithLabelValues(mode).Inc()

	e.audit.Record(models.NewSecurityEvent(models.EventBan, "origin banned").
		WithOrigin(origin).
		WithDetails(fmt.Sprintf("reason=%s issuer=%s duration=%s", reason, issuer, durationLabel(duration))))

	if e.failures != nil {
		e.failures.ClearFailures(origin)
	}

	e.logger.Info("origin banned",
		zap.String("origin", origin),
		zap.String("reason", reason),
		zap.String("issuer", issuer),
		zap.String("duration", durationLabel(duration)))
	return true
}

// Unban removes an active ban. Returns false when no active ban exists.
func (e *BanEnforcer) Unban(ctx context.Context, origin, issuer string) bool {
	ban, err := e.bans.Get(ctx, origin)
	if err != nil || ban == nil || !ban.IsActive() {
		return false
	}
	if err := e.bans.Delete(ctx, origin); err != nil {
		e.logger.Error("failed to delete ban",
			zap.String("origin", origin), zap.Error(err))
		return false
	}

	e.audit.Record(models.NewSecurityEvent(models.EventUnban, "origin unbanned").
		WithOrigin(origin).
		WithDetails("issuer=" + issuer))

	e.logger.Info("origin unbanned", zap.String("origin", origin), zap.String("issuer", issuer))
	return true
}

// IsBanned reports whether the origin has an active ban. Whitelisted origins
// short-circuit to false regardless of stored records, and expiry is checked
// here because the sweep interval is coarse. A store failure fails open for
// this read: a ban lookup error must not lock every player out.
func (e *BanEnforcer) IsBanned(ctx context.Context, origin string) bool {
	if e.IsWhitelisted(origin) {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, banCheckTimeout)
	defer cancel()

	ban, err := e.bans.Get(ctx, origin)
	if err != nil {
		e.logger.Warn("ban lookup failed", zap.String("origin", origin), zap.Error(err))
		return false
	}
	return ban != nil && ban.IsActive()
}

// Lookup returns the active ban for an origin, or nil.
func (e *BanEnforcer) Lookup(ctx context.Context, origin string) *models.Ban {
	ban, err := e.bans.Get(ctx, origin)
	if err != nil || ban == nil || !ban.IsActive() {
		return nil
	}
	return ban
}

// Autoban applies the score-tiered duration policy and bans as the system
// actor.
func (e *BanEnforcer) Autoban(origin string, score int) {
	var duration time.Duration
	switch {
	case score >= 90:
		duration = 24 * time.Hour
	case score >= 80:
		duration = time.Hour
	default:
		duration = 30 * time.Minute
	}

	ctx, cancel := context.WithTimeout(context.Background(), banCheckTimeout)
	defer cancel()
	e.Ban(ctx, origin, fmt.Sprintf("automatic security measure, risk score %d", score), SystemIssuer, duration)
}

// AutobanFixed is the failed-attempt fast path: a flat duration, no score.
func (e *BanEnforcer) AutobanFixed(origin, reason string, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), banCheckTimeout)
	defer cancel()
	e.Ban(ctx, origin, reason, SystemIssuer, duration)
}

// ListActive returns all currently active bans.
func (e *BanEnforcer) ListActive(ctx context.Context) ([]*models.Ban, error) {
	bans, err := e.bans.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	// Defensive filter; the repository contract already excludes expired rows.
	out := bans[:0]
	for _, b := range bans {
		if b.IsActive() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (e *BanEnforcer) IsWhitelisted(origin string) bool {
	e.wlMu.RLock()
	defer e.wlMu.RUnlock()
	_, ok := e.whitelist[origin]
	return ok
}

func (e *BanEnforcer) AddToWhitelist(origin string) bool {
	e.wlMu.Lock()
	defer e.wlMu.Unlock()
	if _, ok := e.whitelist[origin]; ok {
		return false
	}
	e.whitelist[origin] = struct{}{}
	return true
}

func (e *BanEnforcer) RemoveFromWhitelist(origin string) bool {
	e.wlMu.Lock()
	defer e.wlMu.Unlock()
	if _, ok := e.whitelist[origin]; !ok {
		return false
	}
	delete(e.whitelist, origin)
	return true
}

// Whitelist returns the current whitelist, sorted for stable persistence.
func (e *BanEnforcer) Whitelist() []string {
	e.wlMu.RLock()
	defer e.wlMu.RUnlock()
	origins := make([]string, 0, len(e.whitelist))
	for origin := range e.whitelist {
		origins = append(origins, origin)
	}
	sort.Strings(origins)
	return origins
}

func (e *BanEnforcer) kickOrigin(origin, message string) {
	for _, sessionID := range e.sessions.SessionsByOrigin(origin) {
		e.sessions.Kick(sessionID, message)
	}
}

func durationLabel(d time.Duration) string {
	if d <= 0 {
		return "permanent"
	}
	return d.String()
}

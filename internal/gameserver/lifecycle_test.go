package gameserver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
	"github.com/KynuxDev/DiscordLite/internal/domain/service"
	"github.com/KynuxDev/DiscordLite/internal/notification"
)

type memIdentities struct {
	mu   sync.Mutex
	byID map[string]models.Identity
}

func (r *memIdentities) Get(_ context.Context, accountID string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[accountID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	cp := identity
	return &cp, nil
}

func (r *memIdentities) GetByExternal(_ context.Context, externalID string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, identity := range r.byID {
		if identity.IsLinked() && *identity.ExternalID == externalID {
			cp := identity
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (r *memIdentities) Save(_ context.Context, identity *models.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[identity.AccountID] = *identity
	return nil
}

func (r *memIdentities) Delete(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, accountID)
	return nil
}

func (r *memIdentities) ListLinked(_ context.Context) ([]*models.Identity, error) {
	return nil, nil
}

type memBans struct {
	mu   sync.Mutex
	byID map[string]models.Ban
}

func (r *memBans) Get(_ context.Context, origin string) (*models.Ban, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ban, ok := r.byID[origin]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	cp := ban
	return &cp, nil
}

func (r *memBans) Save(_ context.Context, ban *models.Ban) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[ban.Origin] = *ban
	return nil
}

func (r *memBans) Delete(_ context.Context, origin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, origin)
	return nil
}

func (r *memBans) ListActive(_ context.Context) ([]*models.Ban, error) { return nil, nil }
func (r *memBans) DeleteExpired(_ context.Context) (int64, error)      { return 0, nil }

type memLinks struct {
	mu   sync.Mutex
	byID map[string]models.PendingLink
}

func (r *memLinks) Get(_ context.Context, accountID string) (*models.PendingLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.byID[accountID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	cp := link
	return &cp, nil
}

func (r *memLinks) GetByCode(_ context.Context, _ string) (*models.PendingLink, error) {
	return nil, domainErrors.ErrNotFound
}

func (r *memLinks) Save(_ context.Context, link *models.PendingLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[link.AccountID] = *link
	return nil
}

func (r *memLinks) Delete(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, accountID)
	return nil
}

func (r *memLinks) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type memEvents struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (r *memEvents) Save(_ context.Context, event *models.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *memEvents) List(context.Context, models.EventFilter, int, int) ([]*models.SecurityEvent, error) {
	return nil, nil
}
func (r *memEvents) Count(context.Context, models.EventFilter) (int64, error)  { return 0, nil }
func (r *memEvents) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

type lifecycleHarness struct {
	lifecycle  *Lifecycle
	registry   *Registry
	scheduler  *Scheduler
	identities *memIdentities
	bans       *memBans
	challenges *service.ChallengeCoordinator
	kicked     func() []string
}

func newLifecycleHarness(t *testing.T) *lifecycleHarness {
	t.Helper()
	log := zap.NewNop()

	scheduler := NewScheduler(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		scheduler.Wait()
	})
	scheduler.Start(ctx)
	registry := NewRegistry(log, scheduler)

	var mu sync.Mutex
	var kicked []string
	registry.OnKick(func(sessionID, _ string) {
		mu.Lock()
		kicked = append(kicked, sessionID)
		mu.Unlock()
	})

	identities := &memIdentities{byID: make(map[string]models.Identity)}
	bans := &memBans{byID: make(map[string]models.Ban)}
	links := &memLinks{byID: make(map[string]models.PendingLink)}
	events := &memEvents{}

	banCfg := config.BanConfig{
		FailedAttemptLimit:  3,
		FailedAttemptWindow: 5 * time.Minute,
		AutobanDuration:     time.Hour,
	}
	riskCfg := config.RiskConfig{
		Window: time.Hour, EventWeight: 10, SeverityWeight: 15, KindWeight: 5,
		BurstBonus: 30, BurstSpan: 5 * time.Minute,
		MediumThreshold: 30, HighThreshold: 60, CriticalThreshold: 80,
	}

	risk := service.NewRiskTracker(log, riskCfg, banCfg)
	audit := service.NewAuditService(log, events, risk, nil)
	enforcer := service.NewBanEnforcer(log, banCfg, bans, registry, audit, risk)
	risk.BindEnforcer(enforcer)

	channel := notification.NewLogChannel(log)
	linkCoordinator := service.NewLinkCoordinator(log,
		config.LinkingConfig{CodeTTL: time.Minute, Cooldown: time.Minute},
		identities, links, registry, audit)
	challenges := service.NewChallengeCoordinator(log,
		config.ChallengeConfig{Timeout: time.Minute, DenyBanDuration: time.Hour},
		identities, registry, channel, audit, enforcer, risk)

	lifecycle := NewLifecycle(log, identities, registry, enforcer, linkCoordinator, challenges, audit)
	return &lifecycleHarness{
		lifecycle:  lifecycle,
		registry:   registry,
		scheduler:  scheduler,
		identities: identities,
		bans:       bans,
		challenges: challenges,
		kicked: func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), kicked...)
		},
	}
}

func TestSessionStartBannedOrigin(t *testing.T) {
	h := newLifecycleHarness(t)
	ctx := context.Background()

	require.NoError(t, h.bans.Save(ctx, models.NewBan("203.0.113.1", "testing", "admin", time.Hour)))
	h.lifecycle.OnSessionStart(ctx, "alice", "Alice", "sess-1", "203.0.113.1")

	assert.Eventually(t, func() bool {
		kicked := h.kicked()
		return len(kicked) == 1 && kicked[0] == "sess-1"
	}, time.Second, 10*time.Millisecond)
}

func TestSessionStartUpsertsIdentity(t *testing.T) {
	h := newLifecycleHarness(t)
	ctx := context.Background()

	h.lifecycle.OnSessionStart(ctx, "alice", "Alice", "sess-1", "203.0.113.1")

	id, ok := h.registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "sess-1", id)

	assert.Eventually(t, func() bool {
		identity, err := h.identities.Get(ctx, "alice")
		return err == nil && identity.LastSeenAt != nil && identity.DisplayName == "Alice"
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, h.kicked())
}

func TestSessionStartIssuesChallenge(t *testing.T) {
	h := newLifecycleHarness(t)
	ctx := context.Background()

	externalID := "ext-1"
	identity := models.NewIdentity("alice", "Alice")
	identity.Link(externalID, time.Now().UTC())
	identity.SecondFactor = true
	require.NoError(t, h.identities.Save(ctx, identity))

	h.lifecycle.OnSessionStart(ctx, "alice", "Alice", "sess-1", "203.0.113.1")
	assert.True(t, h.challenges.HasPending("alice"))

	// A second login while the verdict is out gets rejected.
	h.lifecycle.OnSessionStart(ctx, "alice", "Alice", "sess-2", "203.0.113.2")
	assert.Eventually(t, func() bool {
		for _, id := range h.kicked() {
			if id == "sess-2" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	// Quitting abandons the challenge.
	h.lifecycle.OnSessionQuit(ctx, "alice")
	assert.False(t, h.challenges.HasPending("alice"))
	_, online := h.registry.Lookup("alice")
	assert.False(t, online)
}

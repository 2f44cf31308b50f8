package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/interfaces"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

// memIdentityRepo is an in-memory IdentityRepository for coordinator tests.
type memIdentityRepo struct {
	mu   sync.Mutex
	byID map[string]models.Identity
	fail error

	// onGetByExternal, when set, runs before the lookup. Tests use it to
	// interleave coordinator calls at a precise point.
	onGetByExternal func()
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{byID: make(map[string]models.Identity)}
}

func (r *memIdentityRepo) put(identity *models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[identity.AccountID] = *identity
}

func (r *memIdentityRepo) Get(_ context.Context, accountID string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	identity, ok := r.byID[accountID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	cp := identity
	return &cp, nil
}

func (r *memIdentityRepo) GetByExternal(_ context.Context, externalID string) (*models.Identity, error) {
	if r.onGetByExternal != nil {
		r.onGetByExternal()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	for _, identity := range r.byID {
		if identity.IsLinked() && *identity.ExternalID == externalID {
			cp := identity
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (r *memIdentityRepo) Save(_ context.Context, identity *models.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.byID[identity.AccountID] = *identity
	return nil
}

func (r *memIdentityRepo) Delete(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, accountID)
	return nil
}

func (r *memIdentityRepo) ListLinked(_ context.Context) ([]*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Identity
	for _, identity := range r.byID {
		if identity.IsLinked() {
			cp := identity
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memLinkRepo struct {
	mu   sync.Mutex
	byID map[string]models.PendingLink
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{byID: make(map[string]models.PendingLink)}
}

func (r *memLinkRepo) Get(_ context.Context, accountID string) (*models.PendingLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.byID[accountID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	cp := link
	return &cp, nil
}

func (r *memLinkRepo) GetByCode(_ context.Context, code string) (*models.PendingLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range r.byID {
		if link.Code == code {
			cp := link
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (r *memLinkRepo) Save(_ context.Context, link *models.PendingLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[link.AccountID] = *link
	return nil
}

func (r *memLinkRepo) Delete(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[accountID]; !ok {
		return domainErrors.ErrNotFound
	}
	delete(r.byID, accountID)
	return nil
}

func (r *memLinkRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, link := range r.byID {
		if link.IsExpired() {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

type memBanRepo struct {
	mu      sync.Mutex
	byID    map[string]models.Ban
	getErr  error
	saveErr error
}

func newMemBanRepo() *memBanRepo {
	return &memBanRepo{byID: make(map[string]models.Ban)}
}

func (r *memBanRepo) Get(_ context.Context, origin string) (*models.Ban, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	ban, ok := r.byID[origin]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	cp := ban
	return &cp, nil
}

func (r *memBanRepo) Save(_ context.Context, ban *models.Ban) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.byID[ban.Origin] = *ban
	return nil
}

func (r *memBanRepo) Delete(_ context.Context, origin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[origin]; !ok {
		return domainErrors.ErrNotFound
	}
	delete(r.byID, origin)
	return nil
}

func (r *memBanRepo) ListActive(_ context.Context) ([]*models.Ban, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Ban
	for _, ban := range r.byID {
		if ban.IsActive() {
			cp := ban
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memBanRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for origin, ban := range r.byID {
		if !ban.IsActive() {
			delete(r.byID, origin)
			n++
		}
	}
	return n, nil
}

type memEventRepo struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func newMemEventRepo() *memEventRepo { return &memEventRepo{} }

func (r *memEventRepo) Save(_ context.Context, event *models.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *memEventRepo) List(_ context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SecurityEvent
	for i := range r.events {
		event := r.events[i]
		if filter.Kind != "" && event.Kind != filter.Kind {
			continue
		}
		out = append(out, &event)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memEventRepo) Count(_ context.Context, filter models.EventFilter) (int64, error) {
	list, _ := r.List(context.Background(), filter, 1<<30, 0)
	return int64(len(list)), nil
}

func (r *memEventRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	var n int64
	for _, event := range r.events {
		if event.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, event)
	}
	r.events = kept
	return n, nil
}

func (r *memEventRepo) kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventKind, len(r.events))
	for i, event := range r.events {
		out[i] = event.Kind
	}
	return out
}

// fakeSessions records every session interaction.
type fakeSessions struct {
	mu       sync.Mutex
	online   map[string]string // accountID -> sessionID
	origins  map[string]string // sessionID -> origin
	frozen   map[string]bool
	kicks    []string
	messages []string
}

var _ interfaces.GameSessions = (*fakeSessions)(nil)

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		online:  make(map[string]string),
		origins: make(map[string]string),
		frozen:  make(map[string]bool),
	}
}

func (s *fakeSessions) connect(accountID, sessionID, origin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[accountID] = sessionID
	s.origins[sessionID] = origin
}

func (s *fakeSessions) Lookup(accountID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.online[accountID]
	return id, ok
}

func (s *fakeSessions) OriginOf(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	origin, ok := s.origins[sessionID]
	return origin, ok
}

func (s *fakeSessions) SessionsByOrigin(origin string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, o := range s.origins {
		if o == origin {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *fakeSessions) Freeze(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen[sessionID] = true
}

func (s *fakeSessions) Unfreeze(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen[sessionID] = false
}

func (s *fakeSessions) Kick(sessionID, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kicks = append(s.kicks, sessionID)
}

func (s *fakeSessions) Message(sessionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sessionID+": "+text)
}

func (s *fakeSessions) RunOnGameThread(fn func()) { fn() }

func (s *fakeSessions) kicked(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.kicks {
		if id == sessionID {
			return true
		}
	}
	return false
}

func (s *fakeSessions) isFrozen(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen[sessionID]
}

// fakeChannel records challenge deliveries and can be told to fail.
type fakeChannel struct {
	mu       sync.Mutex
	payloads []interfaces.ChallengePayload
	err      error
}

var _ interfaces.NotificationChannel = (*fakeChannel)(nil)

func (c *fakeChannel) SendChallenge(_ context.Context, _ string, payload interfaces.ChallengePayload) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.payloads = append(c.payloads, payload)
	return "msg-" + payload.ChallengeID, nil
}

func (c *fakeChannel) SendLinkPrompt(context.Context, string, string) error { return nil }
func (c *fakeChannel) SendAlert(context.Context, string, string) error      { return nil }

func (c *fakeChannel) delivered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

// fakeEnforcer records autoban escalations.
type fakeEnforcer struct {
	mu    sync.Mutex
	calls []autobanCall
}

type autobanCall struct {
	origin   string
	score    int
	fixed    bool
	duration time.Duration
}

func (e *fakeEnforcer) Autoban(origin string, score int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, autobanCall{origin: origin, score: score})
}

func (e *fakeEnforcer) AutobanFixed(origin, _ string, duration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, autobanCall{origin: origin, fixed: true, duration: duration})
}

func (e *fakeEnforcer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// fakeBanner records deny-path bans for challenge tests.
type fakeBanner struct {
	mu    sync.Mutex
	calls []autobanCall
}

func (b *fakeBanner) Ban(_ context.Context, origin, _, _ string, duration time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, autobanCall{origin: origin, duration: duration})
	return true
}

type fakeResetter struct {
	mu      sync.Mutex
	cleared []string
}

func (r *fakeResetter) ClearFailures(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, origin)
}

type fakeRiskRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeRiskRecorder) RecordEvent(origin string, _ models.EventKind, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, origin)
}

func testLogger() *zap.Logger { return zap.NewNop() }

func linkedIdentity(accountID, displayName, externalID string, secondFactor bool) *models.Identity {
	identity := models.NewIdentity(accountID, displayName)
	identity.Link(externalID, time.Now().UTC())
	identity.SecondFactor = secondFactor
	return identity
}

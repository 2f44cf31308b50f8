package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []models.SecurityEvent
}

func (p *fakePublisher) Publish(_ context.Context, event *models.SecurityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, *event)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestRecordPersistsAsync(t *testing.T) {
	events := newMemEventRepo()
	audit := NewAuditService(testLogger(), events, nil, nil)

	audit.Record(models.NewSecurityEvent(models.EventLogin, "session started"))

	assert.Eventually(t, func() bool {
		return len(events.kinds()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRecordFeedsRiskSynchronously(t *testing.T) {
	events := newMemEventRepo()
	risk := &fakeRiskRecorder{}
	audit := NewAuditService(testLogger(), events, risk, nil)

	// Origin-bearing, severity >= 2: forwarded before Record returns.
	audit.Record(models.NewSecurityEvent(models.EventFailedLogin, "bad code").
		WithOrigin("203.0.113.1"))
	require.Equal(t, []string{"203.0.113.1"}, risk.calls)

	// No origin: risk has nothing to attribute it to.
	audit.Record(models.NewSecurityEvent(models.EventFailedLogin, "bad code"))
	assert.Len(t, risk.calls, 1)

	// Severity 1 is routine traffic, not a signal.
	audit.Record(models.NewSecurityEvent(models.EventLogin, "session started").
		WithOrigin("203.0.113.1").
		WithSeverity(1))
	assert.Len(t, risk.calls, 1)

	// Enforcement outcomes never feed back into the window.
	audit.Record(models.NewSecurityEvent(models.EventBan, "origin banned").
		WithOrigin("203.0.113.1"))
	audit.Record(models.NewSecurityEvent(models.EventUnban, "origin unbanned").
		WithOrigin("203.0.113.1"))
	assert.Len(t, risk.calls, 1)
}

func TestRecordPublishes(t *testing.T) {
	events := newMemEventRepo()
	publisher := &fakePublisher{}
	audit := NewAuditService(testLogger(), events, nil, publisher)

	audit.Record(models.NewSecurityEvent(models.EventBan, "origin banned").
		WithOrigin("203.0.113.2"))

	assert.Eventually(t, func() bool {
		return publisher.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRecordNilEvent(t *testing.T) {
	audit := NewAuditService(testLogger(), newMemEventRepo(), nil, nil)
	assert.NotPanics(t, func() { audit.Record(nil) })
}

func TestQueryClampsLimit(t *testing.T) {
	events := newMemEventRepo()
	audit := NewAuditService(testLogger(), events, nil, nil)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		require.NoError(t, events.Save(ctx, models.NewSecurityEvent(models.EventLogin, "session started")))
	}

	list, total, err := audit.Query(ctx, models.EventFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 50)
	assert.EqualValues(t, 60, total)

	list, _, err = audit.Query(ctx, models.EventFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

func TestPruneOlderThan(t *testing.T) {
	events := newMemEventRepo()
	audit := NewAuditService(testLogger(), events, nil, nil)
	ctx := context.Background()

	old := models.NewSecurityEvent(models.EventLogin, "old")
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	require.NoError(t, events.Save(ctx, old))
	require.NoError(t, events.Save(ctx, models.NewSecurityEvent(models.EventLogin, "fresh")))

	removed, err := audit.PruneOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	assert.Len(t, events.kinds(), 1)
}

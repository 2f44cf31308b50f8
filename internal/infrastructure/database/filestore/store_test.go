package filestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(config.FileConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.yaml")
	store := newTestStore(t, path)

	identity := models.NewIdentity("alice", "Alice")
	identity.Link("ext-1", time.Now().UTC())
	identity.SecondFactor = true
	require.NoError(t, store.Identities().Save(ctx, identity))

	require.NoError(t, store.PendingLinks().Save(ctx,
		models.NewPendingLink("bob", "Bob", "123456", time.Hour)))
	require.NoError(t, store.Bans().Save(ctx,
		models.NewBan("203.0.113.1", "abuse", "admin", time.Hour)))
	require.NoError(t, store.Events().Save(ctx,
		models.NewSecurityEvent(models.EventLogin, "session started").
			WithAccount("alice", "Alice").
			WithOrigin("203.0.113.1")))
	require.NoError(t, store.Settings().Set(ctx, "maintenance", "off"))
	require.NoError(t, store.Close())

	reopened := newTestStore(t, path)

	got, err := reopened.Identities().Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "ext-1", *got.ExternalID)
	assert.True(t, got.SecondFactor)

	link, err := reopened.PendingLinks().GetByCode(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, "bob", link.AccountID)

	ban, err := reopened.Bans().Get(ctx, "203.0.113.1")
	require.NoError(t, err)
	assert.Equal(t, "abuse", ban.Reason)

	events, err := reopened.Events().List(ctx, models.EventFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventLogin, events[0].Kind)

	value, err := reopened.Settings().Get(ctx, "maintenance")
	require.NoError(t, err)
	assert.Equal(t, "off", value)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, filepath.Join(t.TempDir(), "state.yaml"))

	require.NoError(t, store.Identities().Save(ctx, models.NewIdentity("alice", "Alice")))

	got, err := store.Identities().Get(ctx, "alice")
	require.NoError(t, err)
	got.DisplayName = "Mallory"

	again, err := store.Identities().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.DisplayName)
}

func TestMissingRowsReportNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, filepath.Join(t.TempDir(), "state.yaml"))

	_, err := store.Identities().Get(ctx, "nobody")
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
	_, err = store.Bans().Get(ctx, "198.51.100.9")
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
	assert.ErrorIs(t, store.Bans().Delete(ctx, "198.51.100.9"), domainErrors.ErrNotFound)
	_, err = store.Settings().Get(ctx, "missing")
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
}

func TestDeleteExpiredSweepsStaleRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, filepath.Join(t.TempDir(), "state.yaml"))

	require.NoError(t, store.PendingLinks().Save(ctx,
		models.NewPendingLink("stale", "Stale", "111111", -time.Minute)))
	require.NoError(t, store.PendingLinks().Save(ctx,
		models.NewPendingLink("fresh", "Fresh", "222222", time.Hour)))

	removed, err := store.PendingLinks().DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = store.PendingLinks().Get(ctx, "stale")
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
	_, err = store.PendingLinks().Get(ctx, "fresh")
	assert.NoError(t, err)

	stale := models.NewBan("203.0.113.1", "expired", "admin", time.Minute)
	past := time.Now().UTC().Add(-time.Minute)
	stale.ExpiresAt = &past
	require.NoError(t, store.Bans().Save(ctx, stale))
	removed, err = store.Bans().DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}

func TestEventQueryFiltersAndPrunes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, filepath.Join(t.TempDir(), "state.yaml"))

	old := models.NewSecurityEvent(models.EventFailedLogin, "old").WithOrigin("203.0.113.1")
	old.Timestamp = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.Events().Save(ctx, old))
	require.NoError(t, store.Events().Save(ctx,
		models.NewSecurityEvent(models.EventFailedLogin, "recent").WithOrigin("203.0.113.1")))
	require.NoError(t, store.Events().Save(ctx,
		models.NewSecurityEvent(models.EventLogin, "other origin").WithOrigin("198.51.100.9")))

	byOrigin, err := store.Events().List(ctx, models.EventFilter{Origin: "203.0.113.1"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byOrigin, 2)

	count, err := store.Events().Count(ctx, models.EventFilter{Kind: models.EventLogin})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	pruned, err := store.Events().DeleteOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	remaining, err := store.Events().Count(ctx, models.EventFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, remaining)
}

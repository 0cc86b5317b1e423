package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tindahan-pos/internal/domain/queue"
	"tindahan-pos/pkg/poserrors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRecord(key string) *queue.QueuedTransaction {
	now := time.Now()
	return &queue.QueuedTransaction{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Payload:        json.RawMessage(`{"total":"100.00"}`),
		Status:         queue.StatusPending,
		Retriable:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestInsertAndGetPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := newRecord("key-1")
	require.NoError(t, s.Insert(ctx, record))

	pending, err := s.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, record.ID, pending[0].ID)
	assert.Equal(t, "key-1", pending[0].IdempotencyKey)
	assert.JSONEq(t, `{"total":"100.00"}`, string(pending[0].Payload))
	assert.Equal(t, queue.StatusPending, pending[0].Status)
}

func TestInsertDuplicateKeyRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newRecord("key-1")))
	err := s.Insert(ctx, newRecord("key-1"))
	assert.ErrorIs(t, err, poserrors.ErrConflict)
}

func TestDurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir, "till.db")
	require.NoError(t, err)

	const n = 5
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		record := newRecord(fmt.Sprintf("key-%d", i))
		record.CreatedAt = record.CreatedAt.Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, s.Insert(ctx, record))
		ids = append(ids, record.ID)
	}
	require.NoError(t, s.Close())

	// Simulated process restart.
	s, err = Open(dir, "till.db")
	require.NoError(t, err)
	defer s.Close()

	pending, err := s.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, n)
	for i, record := range pending {
		assert.Equal(t, ids[i], record.ID, "creation order preserved")
		assert.Equal(t, fmt.Sprintf("key-%d", i), record.IdempotencyKey)
		assert.JSONEq(t, `{"total":"100.00"}`, string(record.Payload))
	}
}

func TestStatusTransitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := newRecord("key-1")
	require.NoError(t, s.Insert(ctx, record))

	// pending -> syncing -> failed -> syncing -> synced
	require.NoError(t, s.MarkSyncing(ctx, record.ID))
	require.NoError(t, s.MarkFailed(ctx, record.ID, "connection refused", true))

	got, err := s.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "connection refused", got.LastError)

	require.NoError(t, s.MarkSyncing(ctx, record.ID))
	require.NoError(t, s.MarkSynced(ctx, record.ID))

	got, err = s.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusSynced, got.Status)
	assert.Empty(t, got.LastError, "success clears the last error")
	require.NotNil(t, got.SyncedAt)
}

func TestSyncedIsTerminal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := newRecord("key-1")
	require.NoError(t, s.Insert(ctx, record))
	require.NoError(t, s.MarkSyncing(ctx, record.ID))
	require.NoError(t, s.MarkSynced(ctx, record.ID))

	// A repeated MarkSynced is an idempotent no-op.
	require.NoError(t, s.MarkSynced(ctx, record.ID))

	// Any attempt to move it out of SYNCED is rejected.
	assert.ErrorIs(t, s.MarkSyncing(ctx, record.ID), poserrors.ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkFailed(ctx, record.ID, "x", true), poserrors.ErrInvalidTransition)

	got, err := s.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusSynced, got.Status)
}

func TestIllegalTransitionsRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := newRecord("key-1")
	require.NoError(t, s.Insert(ctx, record))

	// pending -> synced and pending -> failed both skip SYNCING.
	assert.ErrorIs(t, s.MarkSynced(ctx, record.ID), poserrors.ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkFailed(ctx, record.ID, "x", true), poserrors.ErrInvalidTransition)
}

func TestGetRetriableFailedExcludesPermanentRejections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	transient := newRecord("key-transient")
	permanent := newRecord("key-permanent")
	require.NoError(t, s.Insert(ctx, transient))
	require.NoError(t, s.Insert(ctx, permanent))

	require.NoError(t, s.MarkSyncing(ctx, transient.ID))
	require.NoError(t, s.MarkFailed(ctx, transient.ID, "server returned 503", true))
	require.NoError(t, s.MarkSyncing(ctx, permanent.ID))
	require.NoError(t, s.MarkFailed(ctx, permanent.ID, "server returned 422", false))

	retriable, err := s.GetRetriableFailed(ctx)
	require.NoError(t, err)
	require.Len(t, retriable, 1)
	assert.Equal(t, transient.ID, retriable[0].ID)

	// The permanent rejection stays visible in counts.
	counts, err := s.CountsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Failed)
}

func TestCountsByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, b, c := newRecord("a"), newRecord("b"), newRecord("c")
	require.NoError(t, s.Insert(ctx, a))
	require.NoError(t, s.Insert(ctx, b))
	require.NoError(t, s.Insert(ctx, c))

	require.NoError(t, s.MarkSyncing(ctx, b.ID))
	require.NoError(t, s.MarkSyncing(ctx, c.ID))
	require.NoError(t, s.MarkSynced(ctx, c.ID))

	counts, err := s.CountsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Counts{Pending: 1, Syncing: 1, Synced: 1}, counts)
	assert.Equal(t, 3, counts.Total())
}

func TestCleanupBoundary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	synced := newRecord("synced")
	pending := newRecord("pending")
	failed := newRecord("failed")
	require.NoError(t, s.Insert(ctx, synced))
	require.NoError(t, s.Insert(ctx, pending))
	require.NoError(t, s.Insert(ctx, failed))

	require.NoError(t, s.MarkSyncing(ctx, synced.ID))
	require.NoError(t, s.MarkSynced(ctx, synced.ID))
	require.NoError(t, s.MarkSyncing(ctx, failed.ID))
	require.NoError(t, s.MarkFailed(ctx, failed.ID, "x", true))

	// Younger than the grace period: kept.
	purged, err := s.DeleteSyncedOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)

	// Older than the grace period: purged. Pending and failed records are
	// never purged regardless of age.
	time.Sleep(10 * time.Millisecond)
	purged, err = s.DeleteSyncedOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	counts, err := s.CountsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Counts{Pending: 1, Failed: 1}, counts)
}

func TestResetStuckSyncing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := newRecord("key-1")
	require.NoError(t, s.Insert(ctx, record))
	require.NoError(t, s.MarkSyncing(ctx, record.ID))

	reset, err := s.ResetStuckSyncing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	got, err := s.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, got.Status)
}

func TestDeviceIdentity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetDeviceID(ctx)
	assert.ErrorIs(t, err, poserrors.ErrNotFound)

	winner, err := s.PutDeviceID(ctx, "device-a")
	require.NoError(t, err)
	assert.Equal(t, "device-a", winner)

	// A second writer loses the race and converges on the first value.
	winner, err = s.PutDeviceID(ctx, "device-b")
	require.NoError(t, err)
	assert.Equal(t, "device-a", winner)

	got, err := s.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "device-a", got)
}

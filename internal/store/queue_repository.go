package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tindahan-pos/internal/domain/queue"
	"tindahan-pos/pkg/poserrors"
)

// Timestamps are persisted as unix nanoseconds so comparisons in SQL stay
// cheap and lossless.

// Insert stores a freshly captured sale as PENDING. A duplicate idempotency
// key means the caller is trying to enqueue the same sale twice, which the
// queue does not support.
func (s *Store) Insert(ctx context.Context, record *queue.QueuedTransaction) error {
	var syncedAt *int64
	if record.SyncedAt != nil {
		v := record.SyncedAt.UnixNano()
		syncedAt = &v
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO queued_transactions
        (id, idempotency_key, payload, status, retry_count, retriable, last_error, created_at, updated_at, synced_at)
        VALUES (?,?,?,?,?,?,?,?,?,?)
    `,
		record.ID.String(),
		record.IdempotencyKey,
		string(record.Payload),
		string(record.Status),
		record.RetryCount,
		boolToInt(record.Retriable),
		record.LastError,
		record.CreatedAt.UnixNano(),
		record.UpdatedAt.UnixNano(),
		syncedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("idempotency key %s: %w", record.IdempotencyKey, poserrors.ErrConflict)
		}
		return err
	}
	return nil
}

// GetPending returns PENDING records oldest first.
func (s *Store) GetPending(ctx context.Context) ([]queue.QueuedTransaction, error) {
	return s.listByStatus(ctx, `
        SELECT id, idempotency_key, payload, status, retry_count, retriable, last_error, created_at, updated_at, synced_at
        FROM queued_transactions
        WHERE status = ?
        ORDER BY created_at ASC
    `, string(queue.StatusPending))
}

// GetRetriableFailed returns FAILED records still eligible for another
// attempt, oldest first. Records whose last failure was classified
// non-retryable (validation rejections) stay visible but are excluded here.
func (s *Store) GetRetriableFailed(ctx context.Context) ([]queue.QueuedTransaction, error) {
	return s.listByStatus(ctx, `
        SELECT id, idempotency_key, payload, status, retry_count, retriable, last_error, created_at, updated_at, synced_at
        FROM queued_transactions
        WHERE status = ? AND retriable = 1
        ORDER BY created_at ASC
    `, string(queue.StatusFailed))
}

func (s *Store) listByStatus(ctx context.Context, query string, status string) ([]queue.QueuedTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []queue.QueuedTransaction
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetByID looks up a single record.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (queue.QueuedTransaction, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, idempotency_key, payload, status, retry_count, retriable, last_error, created_at, updated_at, synced_at
        FROM queued_transactions
        WHERE id = ?
    `, id.String())
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return queue.QueuedTransaction{}, poserrors.ErrNotFound
	}
	return record, err
}

// MarkSyncing transitions PENDING or FAILED to SYNCING. The status predicate
// makes the transition atomic: an illegal source status updates zero rows.
func (s *Store) MarkSyncing(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE queued_transactions
        SET status = ?, updated_at = ?
        WHERE id = ? AND status IN (?, ?)
    `, string(queue.StatusSyncing), time.Now().UnixNano(), id.String(),
		string(queue.StatusPending), string(queue.StatusFailed))
	if err != nil {
		return err
	}
	return s.checkTransition(ctx, res, id)
}

// MarkSynced transitions SYNCING to SYNCED, clears the last error and stamps
// synced_at. SYNCED is terminal; calling this twice is a no-op.
func (s *Store) MarkSynced(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UnixNano()
	res, err := s.db.ExecContext(ctx, `
        UPDATE queued_transactions
        SET status = ?, last_error = '', synced_at = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `, string(queue.StatusSynced), now, now, id.String(), string(queue.StatusSyncing))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == queue.StatusSynced {
			return nil
		}
		return fmt.Errorf("%s -> SYNCED: %w", current.Status, poserrors.ErrInvalidTransition)
	}
	return nil
}

// MarkFailed transitions SYNCING to FAILED, bumps the retry count and stores
// the failure. retriable=false pins the record out of future passes.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retriable bool) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE queued_transactions
        SET status = ?, retry_count = retry_count + 1, retriable = ?, last_error = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `, string(queue.StatusFailed), boolToInt(retriable), reason, time.Now().UnixNano(),
		id.String(), string(queue.StatusSyncing))
	if err != nil {
		return err
	}
	return s.checkTransition(ctx, res, id)
}

// ResetStuckSyncing returns SYNCING records to PENDING. Called once at
// startup: a crash mid-pass leaves records in SYNCING, and replaying them is
// safe because the server de-duplicates on the idempotency key.
func (s *Store) ResetStuckSyncing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
        UPDATE queued_transactions
        SET status = ?, updated_at = ?
        WHERE status = ?
    `, string(queue.StatusPending), time.Now().UnixNano(), string(queue.StatusSyncing))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountsByStatus returns the queue breakdown for the stats API.
func (s *Store) CountsByStatus(ctx context.Context) (queue.Counts, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT status, COUNT(*)
        FROM queued_transactions
        GROUP BY status
    `)
	if err != nil {
		return queue.Counts{}, err
	}
	defer rows.Close()

	var counts queue.Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return queue.Counts{}, err
		}
		switch queue.Status(status) {
		case queue.StatusPending:
			counts.Pending = n
		case queue.StatusSyncing:
			counts.Syncing = n
		case queue.StatusSynced:
			counts.Synced = n
		case queue.StatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

// DeleteSyncedOlderThan purges SYNCED records whose synced_at is older than
// age. PENDING and FAILED records are never purged; losing a sale is worse
// than an ever-growing table.
func (s *Store) DeleteSyncedOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).UnixNano()
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM queued_transactions
        WHERE status = ? AND synced_at IS NOT NULL AND synced_at <= ?
    `, string(queue.StatusSynced), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListAll returns every record oldest first, for the queue screen.
func (s *Store) ListAll(ctx context.Context) ([]queue.QueuedTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, idempotency_key, payload, status, retry_count, retriable, last_error, created_at, updated_at, synced_at
        FROM queued_transactions
        ORDER BY created_at ASC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []queue.QueuedTransaction
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) checkTransition(ctx context.Context, res sql.Result, id uuid.UUID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("from %s: %w", current.Status, poserrors.ErrInvalidTransition)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (queue.QueuedTransaction, error) {
	var (
		record    queue.QueuedTransaction
		idStr     string
		payload   string
		status    string
		retriable int
		createdAt int64
		updatedAt int64
		syncedAt  *int64
	)
	if err := row.Scan(&idStr, &record.IdempotencyKey, &payload, &status,
		&record.RetryCount, &retriable, &record.LastError, &createdAt, &updatedAt, &syncedAt); err != nil {
		return queue.QueuedTransaction{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return queue.QueuedTransaction{}, fmt.Errorf("corrupt record id %q: %w", idStr, err)
	}
	record.ID = id
	record.Payload = []byte(payload)
	record.Status = queue.Status(status)
	record.Retriable = retriable != 0
	record.CreatedAt = time.Unix(0, createdAt)
	record.UpdatedAt = time.Unix(0, updatedAt)
	if syncedAt != nil {
		t := time.Unix(0, *syncedAt)
		record.SyncedAt = &t
	}
	return record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

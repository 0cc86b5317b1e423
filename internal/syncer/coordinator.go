package syncer

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tindahan-pos/internal/client"
	"tindahan-pos/internal/domain/queue"
	"tindahan-pos/pkg/logger"
	"tindahan-pos/pkg/poserrors"
)

// QueueStore is the slice of the local store the coordinator drains.
type QueueStore interface {
	GetPending(ctx context.Context) ([]queue.QueuedTransaction, error)
	GetRetriableFailed(ctx context.Context) ([]queue.QueuedTransaction, error)
	MarkSyncing(ctx context.Context, id uuid.UUID) error
	MarkSynced(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, retriable bool) error
	CountsByStatus(ctx context.Context) (queue.Counts, error)
	DeleteSyncedOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Submitter posts one record to the backend.
type Submitter interface {
	Submit(ctx context.Context, idempotencyKey string, payload json.RawMessage) (client.SubmitResult, error)
}

// OnlineChecker gates sync passes on connectivity.
type OnlineChecker interface {
	IsOnline() bool
}

// Progress reports how far the running pass has gotten.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

// Result is the outcome of one completed pass.
type Result struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// Options are the coordinator tunables.
type Options struct {
	Debounce       time.Duration
	InterItemDelay time.Duration
	SyncInterval   time.Duration
	ReconnectDelay time.Duration
	CleanupGrace   time.Duration
	Backoff        Backoff
}

// Coordinator drains the queue over the network, one record at a time, at
// most one pass in flight. The in-progress flag is an instance field so
// independent coordinators (tests) never share state.
type Coordinator struct {
	store     QueueStore
	submitter Submitter
	online    OnlineChecker
	opts      Options
	log       *logger.Logger

	clock func() time.Time
	// sleep waits ctx-aware; returns false when ctx was cancelled first.
	sleep func(ctx context.Context, d time.Duration) bool

	kick chan struct{}

	mu                  sync.Mutex
	syncing             bool
	lastAttempt         time.Time
	consecutiveFailures int
	progress            *Progress
	progressFns         []func(Progress)
	completeFns         []func(Result)
	errorFns            []func(error)
}

func NewCoordinator(store QueueStore, submitter Submitter, online OnlineChecker, opts Options, log *logger.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		submitter: submitter,
		online:    online,
		opts:      opts,
		log:       log,
		clock:     time.Now,
		sleep:     sleepCtx,
		kick:      make(chan struct{}, 1),
	}
}

// OnProgress registers a per-record progress observer.
func (c *Coordinator) OnProgress(fn func(Progress)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progressFns = append(c.progressFns, fn)
}

// OnComplete registers an end-of-pass observer.
func (c *Coordinator) OnComplete(fn func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completeFns = append(c.completeFns, fn)
}

// OnError registers an observer for pass-orchestration failures. Per-record
// submission failures are absorbed into the records, not reported here.
func (c *Coordinator) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorFns = append(c.errorFns, fn)
}

// IsSyncing reports whether a pass is currently running.
func (c *Coordinator) IsSyncing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncing
}

// CurrentProgress returns the running pass's progress, or nil.
func (c *Coordinator) CurrentProgress() *Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress == nil {
		return nil
	}
	p := *c.progress
	return &p
}

// SyncAll attempts to sync every pending and retry-eligible failed record.
// It no-ops with a zero Result when offline, when a pass is already running,
// or when called again inside the debounce window; the sentinel error says
// which. Per-record failures never surface as an error from here.
func (c *Coordinator) SyncAll(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		return Result{}, poserrors.ErrSyncInProgress
	}
	now := c.clock()
	if !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.opts.Debounce {
		c.mu.Unlock()
		return Result{}, poserrors.ErrDebounced
	}
	c.lastAttempt = now
	if !c.online.IsOnline() {
		c.mu.Unlock()
		return Result{}, poserrors.ErrOffline
	}
	c.syncing = true
	c.mu.Unlock()

	result, err := c.runPass(ctx)

	c.mu.Lock()
	c.syncing = false
	c.progress = nil
	completeFns := append([]func(Result){}, c.completeFns...)
	errorFns := append([]func(error){}, c.errorFns...)
	c.mu.Unlock()

	// Never mutate observer state after the owning context is gone.
	if ctx.Err() == nil {
		if err != nil {
			for _, fn := range errorFns {
				fn(err)
			}
		} else {
			for _, fn := range completeFns {
				fn(result)
			}
		}
	}
	return result, err
}

func (c *Coordinator) runPass(ctx context.Context) (Result, error) {
	records, err := c.snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	var result Result
	total := len(records)

	for i, record := range records {
		// Teardown or connectivity loss mid-pass: leave the rest in
		// their last-set status for the next pass.
		if ctx.Err() != nil {
			break
		}
		if !c.online.IsOnline() {
			c.log.Warnf("sync: went offline after %d/%d records, aborting pass", i, total)
			break
		}

		if err := c.store.MarkSyncing(ctx, record.ID); err != nil {
			c.log.Errorf("sync: mark syncing %s: %v", record.ID, err)
			continue
		}

		submitRes, submitErr := c.submitter.Submit(ctx, record.IdempotencyKey, record.Payload)
		if submitErr == nil {
			if markErr := c.store.MarkSynced(ctx, record.ID); markErr != nil {
				c.log.Errorf("sync: mark synced %s: %v", record.ID, markErr)
			}
			if submitRes == client.ResultDuplicate {
				c.log.Infof("sync: server already had %s, treating as synced", record.IdempotencyKey)
			}
			result.Synced++
			c.mu.Lock()
			c.consecutiveFailures = 0
			c.mu.Unlock()
			c.report(ctx, Progress{Current: i + 1, Total: total, Synced: result.Synced, Failed: result.Failed})
			// Small fixed pause between healthy submissions so a fat
			// queue does not burst the server.
			if i < total-1 {
				if !c.sleep(ctx, c.opts.InterItemDelay) {
					break
				}
			}
			continue
		}

		retriable := client.IsRetriable(submitErr)
		if markErr := c.store.MarkFailed(ctx, record.ID, submitErr.Error(), retriable); markErr != nil {
			c.log.Errorf("sync: mark failed %s: %v", record.ID, markErr)
		}
		result.Failed++
		c.mu.Lock()
		c.consecutiveFailures++
		failures := c.consecutiveFailures
		c.mu.Unlock()
		c.log.Warnf("sync: submit %s failed (retriable=%v): %v", record.ID, retriable, submitErr)
		c.report(ctx, Progress{Current: i + 1, Total: total, Synced: result.Synced, Failed: result.Failed})
		if i < total-1 {
			if !c.sleep(ctx, c.opts.Backoff.Delay(failures)) {
				break
			}
		}
	}

	// Best-effort cleanup of old synced records; a failure here must not
	// fail the pass.
	if ctx.Err() == nil {
		if purged, err := c.store.DeleteSyncedOlderThan(ctx, c.opts.CleanupGrace); err != nil {
			c.log.Errorf("sync: cleanup: %v", err)
		} else if purged > 0 {
			c.log.Infof("sync: purged %d synced records older than %s", purged, c.opts.CleanupGrace)
		}
	}

	return result, nil
}

// snapshot lists pending plus retry-eligible failed records in creation
// order, oldest first. Order matters for till sequencing even though the
// server assigns canonical order numbers.
func (c *Coordinator) snapshot(ctx context.Context) ([]queue.QueuedTransaction, error) {
	pending, err := c.store.GetPending(ctx)
	if err != nil {
		return nil, err
	}
	failed, err := c.store.GetRetriableFailed(ctx)
	if err != nil {
		return nil, err
	}
	records := append(pending, failed...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (c *Coordinator) report(ctx context.Context, p Progress) {
	c.mu.Lock()
	prog := p
	c.progress = &prog
	fns := append([]func(Progress){}, c.progressFns...)
	c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	for _, fn := range fns {
		fn(p)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

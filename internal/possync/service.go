package possync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tindahan-pos/internal/connectivity"
	"tindahan-pos/internal/domain/queue"
	"tindahan-pos/internal/domain/sale"
	"tindahan-pos/internal/idempotency"
	"tindahan-pos/internal/identity"
	"tindahan-pos/internal/syncer"
	"tindahan-pos/pkg/logger"
	"tindahan-pos/pkg/poserrors"
)

// QueueStore is the slice of the local store the facade needs on top of what
// the coordinator already uses.
type QueueStore interface {
	Insert(ctx context.Context, record *queue.QueuedTransaction) error
	CountsByStatus(ctx context.Context) (queue.Counts, error)
	ListAll(ctx context.Context) ([]queue.QueuedTransaction, error)
}

// Stats is the read-only queue view the UI renders.
type Stats struct {
	Counts     queue.Counts     `json:"counts"`
	HasPending bool             `json:"has_pending"`
	IsSyncing  bool             `json:"is_syncing"`
	Progress   *syncer.Progress `json:"progress,omitempty"`
}

// Event is one message on the progress stream.
type Event struct {
	Type     string           `json:"type"` // "progress" | "complete" | "error"
	Progress *syncer.Progress `json:"progress,omitempty"`
	Result   *syncer.Result   `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Service is the queue facade: enqueue, stats, sync trigger and progress
// stream, composed over the store, device identity, connectivity monitor and
// sync coordinator.
type Service struct {
	store    QueueStore
	identity *identity.Provider
	coord    *syncer.Coordinator
	monitor  *connectivity.Monitor
	log      *logger.Logger

	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewService(store QueueStore, provider *identity.Provider, coord *syncer.Coordinator, monitor *connectivity.Monitor, log *logger.Logger) *Service {
	s := &Service{
		store:    store,
		identity: provider,
		coord:    coord,
		monitor:  monitor,
		log:      log,
		subs:     make(map[int]chan Event),
	}
	coord.OnProgress(func(p syncer.Progress) {
		s.broadcast(Event{Type: "progress", Progress: &p})
	})
	coord.OnComplete(func(r syncer.Result) {
		s.broadcast(Event{Type: "complete", Result: &r})
	})
	coord.OnError(func(err error) {
		s.broadcast(Event{Type: "error", Error: err.Error()})
	})
	return s
}

// Queue captures one sale into the durable queue. The idempotency key is
// derived once, here, and replayed unchanged on every retry. A failure means
// the sale was NOT captured; the caller must tell the operator instead of
// silently dropping it.
func (s *Service) Queue(ctx context.Context, txn *sale.Transaction) (*queue.QueuedTransaction, error) {
	if err := txn.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", poserrors.ErrInvalidInput, err)
	}

	deviceID, err := s.identity.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: device identity: %v", poserrors.ErrStoreUnavailable, err)
	}
	key, err := idempotency.Key(deviceID, txn)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(txn)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now()
	record := &queue.QueuedTransaction{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Payload:        payload,
		Status:         queue.StatusPending,
		Retriable:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Insert(ctx, record); err != nil {
		if errors.Is(err, poserrors.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", poserrors.ErrStoreUnavailable, err)
	}
	s.log.Infof("queued sale %s (%s, total %s)", record.ID, txn.PaymentType, txn.Total)
	return record, nil
}

// Stats returns the queue breakdown plus the running pass, if any.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.CountsByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", poserrors.ErrStoreUnavailable, err)
	}
	return Stats{
		Counts:     counts,
		HasPending: counts.Pending > 0 || counts.Failed > 0,
		IsSyncing:  s.coord.IsSyncing(),
		Progress:   s.coord.CurrentProgress(),
	}, nil
}

// PendingCount returns how many sales still wait to reach the backend.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	counts, err := s.store.CountsByStatus(ctx)
	if err != nil {
		return 0, err
	}
	return counts.Pending + counts.Failed, nil
}

// Transactions lists all queued records for the queue screen.
func (s *Service) Transactions(ctx context.Context) ([]queue.QueuedTransaction, error) {
	return s.store.ListAll(ctx)
}

// SyncNow requests a pass; the coordinator's guard absorbs bursts.
func (s *Service) SyncNow() {
	s.coord.Kick()
}

// Connectivity returns the monitor snapshot.
func (s *Service) Connectivity() connectivity.State {
	return s.monitor.Snapshot()
}

// ReportOnline forwards the platform's online event; the monitor verifies
// with a probe before flipping.
func (s *Service) ReportOnline(ctx context.Context) bool {
	return s.monitor.ReportOnline(ctx)
}

// ReportOffline forwards the platform's offline event.
func (s *Service) ReportOffline() {
	s.monitor.ReportOffline()
}

// Subscribe returns a channel of sync events for a progress consumer. Slow
// consumers drop events rather than stalling a pass.
func (s *Service) Subscribe() (int, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan Event, 16)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscription.
func (s *Service) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Service) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

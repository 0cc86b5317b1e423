package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"tindahan-pos/pkg/poserrors"
)

// DeviceStore is the slice of the local store the provider needs.
type DeviceStore interface {
	GetDeviceID(ctx context.Context) (string, error)
	PutDeviceID(ctx context.Context, value string) (string, error)
}

// Provider returns the stable per-installation identifier used to scope
// idempotency keys. The first call generates and persists a random UUID;
// every later call (including concurrent ones) returns the persisted value.
type Provider struct {
	store DeviceStore

	mu     sync.Mutex
	cached string
}

func NewProvider(store DeviceStore) *Provider {
	return &Provider{store: store}
}

// DeviceID returns the device identifier, creating it on first use.
func (p *Provider) DeviceID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	value, err := p.store.GetDeviceID(ctx)
	if err == nil {
		p.cached = value
		return value, nil
	}
	if !errors.Is(err, poserrors.ErrNotFound) {
		return "", err
	}

	// First run on this installation. The store resolves racing writers to
	// a single persisted value, so whatever comes back is authoritative.
	value, err = p.store.PutDeviceID(ctx, uuid.New().String())
	if err != nil {
		return "", err
	}
	p.cached = value
	return value, nil
}

package poserrors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStoreUnavailable   = errors.New("local store unavailable")
	ErrSyncInProgress     = errors.New("sync already in progress")
	ErrOffline            = errors.New("device is offline")
	ErrDebounced          = errors.New("sync debounced")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}

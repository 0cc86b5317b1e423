package syncer

import (
	"context"
	"errors"
	"time"

	"tindahan-pos/pkg/poserrors"
)

// Run is the coordinator's scheduler loop. Every trigger funnels into the
// same select: the periodic timer, reconnect kicks and manual kicks all land
// on one inbox, and SyncAll's single-flight guard does the rest. Returns
// when ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.online.IsOnline() {
				continue
			}
			counts, err := c.store.CountsByStatus(ctx)
			if err != nil {
				c.log.Errorf("sync: counts: %v", err)
				continue
			}
			if counts.Pending == 0 && counts.Failed == 0 {
				continue
			}
			c.runOnce(ctx)
		case <-c.kick:
			c.runOnce(ctx)
		}
	}
}

func (c *Coordinator) runOnce(ctx context.Context) {
	result, err := c.SyncAll(ctx)
	switch {
	case err == nil:
		if result.Synced > 0 || result.Failed > 0 {
			c.log.Infof("sync: pass done, %d synced, %d failed", result.Synced, result.Failed)
		}
	case errors.Is(err, poserrors.ErrSyncInProgress),
		errors.Is(err, poserrors.ErrDebounced),
		errors.Is(err, poserrors.ErrOffline):
		// Expected no-op outcomes of overlapping triggers.
	default:
		c.log.Errorf("sync: pass failed: %v", err)
	}
}

// Kick requests a pass soon. Non-blocking: if a kick is already queued the
// extra one is dropped, which is fine because one pass drains everything.
func (c *Coordinator) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// KickAfterReconnect schedules a kick once the network has had a moment to
// stabilize after an offline to online transition.
func (c *Coordinator) KickAfterReconnect() {
	time.AfterFunc(c.opts.ReconnectDelay, c.Kick)
}

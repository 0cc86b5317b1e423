package connectivity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProbe struct {
	err error
}

func (s *stubProbe) probe(ctx context.Context) error {
	return s.err
}

func TestRefreshFlipsOnProbeResult(t *testing.T) {
	probe := &stubProbe{err: errors.New("unreachable")}
	m := NewMonitor(probe.probe, time.Minute, nil)
	ctx := context.Background()

	assert.False(t, m.Refresh(ctx))
	assert.False(t, m.IsOnline())

	probe.err = nil
	assert.True(t, m.Refresh(ctx))
	assert.True(t, m.IsOnline())
}

func TestReportOnlineIsVerified(t *testing.T) {
	// The platform says online but the backend is not actually reachable:
	// the state must not flip.
	probe := &stubProbe{err: errors.New("captive portal")}
	m := NewMonitor(probe.probe, time.Minute, nil)

	assert.False(t, m.ReportOnline(context.Background()))
	assert.False(t, m.IsOnline())
}

func TestReportOfflineIsImmediate(t *testing.T) {
	probe := &stubProbe{}
	m := NewMonitor(probe.probe, time.Minute, nil)
	require.True(t, m.Refresh(context.Background()))

	// No probe needed to go offline, even though probes still succeed.
	m.ReportOffline()
	assert.False(t, m.IsOnline())
}

func TestSnapshotTracksTimes(t *testing.T) {
	probe := &stubProbe{err: errors.New("down")}
	m := NewMonitor(probe.probe, time.Minute, nil)

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return now }

	m.Refresh(context.Background())
	s := m.Snapshot()
	assert.False(t, s.Online)
	assert.Equal(t, now, s.LastChecked)
	assert.Nil(t, s.LastOnlineTime, "never been online")

	probe.err = nil
	now = now.Add(time.Minute)
	m.Refresh(context.Background())
	s = m.Snapshot()
	assert.True(t, s.Online)
	assert.Equal(t, now, s.LastChecked)
	require.NotNil(t, s.LastOnlineTime)
	assert.Equal(t, now, *s.LastOnlineTime)

	// Going offline keeps the last online timestamp.
	probe.err = errors.New("down again")
	lastOnline := now
	now = now.Add(time.Minute)
	m.Refresh(context.Background())
	s = m.Snapshot()
	assert.False(t, s.Online)
	require.NotNil(t, s.LastOnlineTime)
	assert.Equal(t, lastOnline, *s.LastOnlineTime)
}

func TestOnChangeFiresOnEdgesOnly(t *testing.T) {
	probe := &stubProbe{err: errors.New("down")}
	m := NewMonitor(probe.probe, time.Minute, nil)

	var edges []bool
	m.OnChange(func(online bool) { edges = append(edges, online) })
	ctx := context.Background()

	m.Refresh(ctx) // starts offline, stays offline: no edge
	probe.err = nil
	m.Refresh(ctx) // offline -> online: edge
	m.Refresh(ctx) // still online: no edge
	probe.err = errors.New("down")
	m.Refresh(ctx) // online -> offline: edge

	assert.Equal(t, []bool{true, false}, edges)
}

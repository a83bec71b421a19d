package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnloadIdle_RemovesStaleInstance(t *testing.T) {
	client := newFakeClient()
	o := testOrchestrator(t, client, func(c *Config) {
		c.IdleTimeout = 10 * time.Millisecond
	})

	release, err := o.acquire(context.Background(), "tier1")
	require.NoError(t, err)
	release()

	time.Sleep(30 * time.Millisecond)
	o.unloadIdle()
	require.Empty(t, o.Snapshot())
}

func TestUnloadIdle_NeverFiresWhileInFlight(t *testing.T) {
	client := newFakeClient()
	o := testOrchestrator(t, client, func(c *Config) {
		c.IdleTimeout = time.Nanosecond
	})

	release, err := o.acquire(context.Background(), "tier1")
	require.NoError(t, err)

	// Instance is idle-expired by time but a request holds it.
	time.Sleep(5 * time.Millisecond)
	o.unloadIdle()
	snap := o.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, 1, snap[0].Inflight)

	release()
	time.Sleep(5 * time.Millisecond)
	o.unloadIdle()
	require.Empty(t, o.Snapshot())
}

func TestUnloadIdle_TimerResetsOnUse(t *testing.T) {
	client := newFakeClient()
	o := testOrchestrator(t, client, func(c *Config) {
		c.IdleTimeout = 50 * time.Millisecond
	})

	release, err := o.acquire(context.Background(), "tier1")
	require.NoError(t, err)
	release()

	// Keep touching the instance; it must survive each sweep.
	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		release, err = o.acquire(context.Background(), "tier1")
		require.NoError(t, err)
		release()
		o.unloadIdle()
		require.Len(t, o.Snapshot(), 1)
	}
	require.Equal(t, 1, client.pingCount("tier1"))
}

func TestUnloadAll_SkipsBusyInstances(t *testing.T) {
	client := newFakeClient()
	o := testOrchestrator(t, client)

	r1, err := o.acquire(context.Background(), "tier1")
	require.NoError(t, err)
	r2, err := o.acquire(context.Background(), "tier2")
	require.NoError(t, err)
	r2()

	// tier1 is busy, tier2 idle.
	n := o.UnloadAll()
	require.Equal(t, 1, n)
	snap := o.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "tier1", snap[0].TierID)
	r1()
}

func TestUnload_Explicit(t *testing.T) {
	client := newFakeClient()
	o := testOrchestrator(t, client)

	release, err := o.acquire(context.Background(), "tier1")
	require.NoError(t, err)
	release()

	require.NoError(t, o.Unload("tier1"))
	require.Empty(t, o.Snapshot())
	require.True(t, IsTierNotFound(o.Unload("missing")))
}

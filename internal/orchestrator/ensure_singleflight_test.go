package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquire_SingleFlightLoad(t *testing.T) {
	client := newFakeClient()
	o := testOrchestrator(t, client)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release, err := o.acquire(context.Background(), "tier1")
			errs[i] = err
			if err == nil {
				release()
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	// Exactly one load happened despite n concurrent callers.
	require.Equal(t, 1, client.pingCount("tier1"))

	snap := o.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, string(StateReady), snap[0].State)
	require.Equal(t, 0, snap[0].Inflight)
}

func TestAcquire_UnknownTier(t *testing.T) {
	o := testOrchestrator(t, newFakeClient())
	_, err := o.acquire(context.Background(), "nope")
	require.Error(t, err)
	require.True(t, IsTierNotFound(err))
}

func TestAcquire_ReloadAfterFailedLoad(t *testing.T) {
	client := newFakeClient()
	client.pingErr["tier1"] = contextlessErr("backend down")
	o := testOrchestrator(t, client)

	_, err := o.acquire(context.Background(), "tier1")
	require.Error(t, err)
	// Failed load leaves no instance behind.
	require.Empty(t, o.Snapshot())

	// Backend recovers; next acquire loads again.
	client.mu.Lock()
	delete(client.pingErr, "tier1")
	client.mu.Unlock()
	release, err := o.acquire(context.Background(), "tier1")
	require.NoError(t, err)
	release()
	require.Equal(t, 2, client.pingCount("tier1"))
}

type contextlessErr string

func (e contextlessErr) Error() string { return string(e) }

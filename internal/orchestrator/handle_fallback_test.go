package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandle_SelectsTierByHint(t *testing.T) {
	client := newFakeClient()
	o := testOrchestrator(t, client)

	res, err := o.Handle(context.Background(), "simple question", 0.2)
	require.NoError(t, err)
	require.Equal(t, "tier1", res.TierUsed)
	require.Equal(t, "ok response", res.Response)
	require.Len(t, res.Attempts, 1)
	require.True(t, res.Attempts[0].OK)
}

func TestHandle_FallbackOnInferFailure(t *testing.T) {
	client := newFakeClient()
	client.inferErr["tier3"] = contextlessErr("resource exhausted")
	o := testOrchestrator(t, client)

	res, err := o.Handle(context.Background(), "hard question", 0.9)
	require.NoError(t, err)
	require.Equal(t, "tier2", res.TierUsed)
	require.Len(t, res.Attempts, 2)
	require.Equal(t, "tier3", res.Attempts[0].TierID)
	require.False(t, res.Attempts[0].OK)
	require.Equal(t, "tier2", res.Attempts[1].TierID)
	require.True(t, res.Attempts[1].OK)

	// Every attempt updated the performance records.
	r3, ok := o.Perf().Get("tier3")
	require.True(t, ok)
	require.EqualValues(t, 1, r3.Failures)
	require.EqualValues(t, 0, r3.Successes)
	r2, ok := o.Perf().Get("tier2")
	require.True(t, ok)
	require.EqualValues(t, 1, r2.Successes)
}

func TestHandle_LoadTimeoutTriggersFallback(t *testing.T) {
	client := newFakeClient()
	client.pingBlock["tier3"] = true
	o := testOrchestrator(t, client)

	res, err := o.Handle(context.Background(), "hard question", 0.9)
	require.NoError(t, err)
	require.Equal(t, "tier2", res.TierUsed)
	require.Contains(t, res.Attempts[0].Reason, "load timeout")

	r3, ok := o.Perf().Get("tier3")
	require.True(t, ok)
	require.EqualValues(t, 1, r3.Failures)
}

func TestHandle_MonotonicDowngrade(t *testing.T) {
	client := newFakeClient()
	client.inferErr["tier2"] = contextlessErr("boom")
	o := testOrchestrator(t, client)

	res, err := o.Handle(context.Background(), "medium question", 0.6)
	require.NoError(t, err)
	require.Equal(t, "tier1", res.TierUsed)

	// The chain never touched tier3.
	for _, a := range res.Attempts {
		require.NotEqual(t, "tier3", a.TierID)
	}
}

func TestHandle_BackendUnavailableWhenChainExhausted(t *testing.T) {
	client := newFakeClient()
	client.inferErr["tier1"] = contextlessErr("down 1")
	client.inferErr["tier2"] = contextlessErr("down 2")
	client.inferErr["tier3"] = contextlessErr("down 3")
	o := testOrchestrator(t, client)

	_, err := o.Handle(context.Background(), "q", 0.9)
	require.Error(t, err)
	require.True(t, IsBackendUnavailable(err))

	attempts := AttemptsFromError(err)
	require.Len(t, attempts, 3)
	require.Equal(t, "tier3", attempts[0].TierID)
	require.Equal(t, "tier1", attempts[2].TierID)
	// A failed request reports attempted tiers and reasons.
	require.Contains(t, err.Error(), "tier3")
	require.Contains(t, err.Error(), "down 1")
}

func TestHandle_ContextCancellation(t *testing.T) {
	client := newFakeClient()
	o := testOrchestrator(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Handle(ctx, "q", 0.9)
	require.ErrorIs(t, err, context.Canceled)
}

package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreflight_ReportsSubstituteForUnreachableTier(t *testing.T) {
	client := newFakeClient()
	client.pingErr["tier3"] = contextlessErr("connection refused")
	o := testOrchestrator(t, client)

	results := o.Preflight(context.Background())
	require.Len(t, results, 3)

	byID := map[string]PreflightResult{}
	for _, r := range results {
		byID[r.TierID] = r
	}
	require.True(t, byID["tier1"].Reachable)
	require.True(t, byID["tier2"].Reachable)
	require.False(t, byID["tier3"].Reachable)
	require.Contains(t, byID["tier3"].Error, "connection refused")
	// All test tiers share the "general" tag; the cheapest other tier wins.
	require.Equal(t, "tier1", byID["tier3"].Substitute)
}

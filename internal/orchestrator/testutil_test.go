package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"inferd/internal/tier"
	"inferd/pkg/types"
)

// fakeClient is a scriptable backend.Client for tests.
type fakeClient struct {
	mu        sync.Mutex
	pings     map[string]int
	infers    map[string]int
	pingErr   map[string]error
	inferErr  map[string]error
	pingBlock map[string]bool // block Ping until ctx done
	response  string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pings:     map[string]int{},
		infers:    map[string]int{},
		pingErr:   map[string]error{},
		inferErr:  map[string]error{},
		pingBlock: map[string]bool{},
		response:  "ok response",
	}
}

func (f *fakeClient) Ping(ctx context.Context, t types.ModelTier) error {
	f.mu.Lock()
	f.pings[t.ID]++
	block := f.pingBlock[t.ID]
	err := f.pingErr[t.ID]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

func (f *fakeClient) Infer(ctx context.Context, t types.ModelTier, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infers[t.ID]++
	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}
	if err := f.inferErr[t.ID]; err != nil {
		return "", err
	}
	return f.response, nil
}

func (f *fakeClient) pingCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings[id]
}

func testCatalog(t *testing.T) *tier.Catalog {
	t.Helper()
	c, err := tier.NewCatalog([]types.ModelTier{
		{ID: "tier1", BackendURL: "http://t1", ResourceCost: 3, ComplexityThreshold: 0, CapabilityTags: []string{"general"}},
		{ID: "tier2", BackendURL: "http://t2", ResourceCost: 7, ComplexityThreshold: 0.5, CapabilityTags: []string{"general"}},
		{ID: "tier3", BackendURL: "http://t3", ResourceCost: 14, ComplexityThreshold: 0.7, CapabilityTags: []string{"general"}},
	})
	require.NoError(t, err)
	return c
}

func testOrchestrator(t *testing.T, client *fakeClient, opts ...func(*Config)) *Orchestrator {
	t.Helper()
	perf, err := OpenPerfStore(filepath.Join(t.TempDir(), "perf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { perf.Close() })

	cfg := Config{
		Catalog:     testCatalog(t),
		Client:      client,
		Perf:        perf,
		IdleTimeout: time.Minute,
		LoadTimeout: 200 * time.Millisecond,
		Logger:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return New(cfg)
}

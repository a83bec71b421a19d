package orchestrator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/backend"
	"inferd/internal/tier"
	"inferd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultIdleTimeout = 5 * time.Minute
	defaultLoadTimeout = 30 * time.Second
	defaultRestartWait = 3 * time.Second
)

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	Catalog     *tier.Catalog
	Client      backend.Client
	Perf        *PerfStore
	IdleTimeout time.Duration
	LoadTimeout time.Duration
	// RestartWait is the settle time between a backend restart command and
	// the re-probe.
	RestartWait time.Duration
	Logger      zerolog.Logger
}

// entry pairs a catalog tier with its instance slot. The entry lock is the
// per-tier single-flight guard: loads, unloads, and in-flight accounting all
// go through it.
type entry struct {
	tier types.ModelTier

	mu       sync.Mutex
	inst     *Instance
	loading  chan struct{} // non-nil while a load is in flight
	inflight int
}

// Orchestrator selects tiers, lazily loads and unloads instances, and walks
// the fallback chain on backend failure.
type Orchestrator struct {
	catalog *tier.Catalog
	client  backend.Client
	perf    *PerfStore
	entries map[string]*entry

	idleTimeout time.Duration
	loadTimeout time.Duration
	restartWait time.Duration
	log         zerolog.Logger
}

// New constructs an Orchestrator from Config.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		catalog:     cfg.Catalog,
		client:      cfg.Client,
		perf:        cfg.Perf,
		entries:     make(map[string]*entry),
		idleTimeout: cfg.IdleTimeout,
		loadTimeout: cfg.LoadTimeout,
		restartWait: cfg.RestartWait,
		log:         cfg.Logger,
	}
	if o.idleTimeout <= 0 {
		o.idleTimeout = defaultIdleTimeout
	}
	if o.loadTimeout <= 0 {
		o.loadTimeout = defaultLoadTimeout
	}
	if o.restartWait <= 0 {
		o.restartWait = defaultRestartWait
	}
	for _, t := range cfg.Catalog.All() {
		o.entries[t.ID] = &entry{tier: t}
	}
	return o
}

// Catalog exposes the immutable tier catalog.
func (o *Orchestrator) Catalog() *tier.Catalog { return o.catalog }

// Perf exposes the performance record store.
func (o *Orchestrator) Perf() *PerfStore { return o.perf }

// Snapshot returns the current instance set for /status.
func (o *Orchestrator) Snapshot() []types.InstanceStatus {
	out := make([]types.InstanceStatus, 0, len(o.entries))
	for _, t := range o.catalog.All() {
		e := o.entries[t.ID]
		e.mu.Lock()
		if e.inst != nil {
			is := types.InstanceStatus{
				TierID:   e.inst.TierID,
				State:    string(e.inst.State),
				Inflight: e.inflight,
			}
			if !e.inst.LoadedAt.IsZero() {
				is.LoadedAt = e.inst.LoadedAt.Format(time.RFC3339)
			}
			if !e.inst.LastUsed.IsZero() {
				is.LastUsed = e.inst.LastUsed.Format(time.RFC3339)
			}
			out = append(out, is)
		}
		e.mu.Unlock()
	}
	return out
}

package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Healer attempts to repair one component. It is invoked at most
// HealAttemptCap times per incident; further failures leave the incident
// open for an operator.
type Healer func(ctx context.Context) error

// Config holds monitor tuning.
type Config struct {
	Interval       time.Duration
	CriticalAfter  int // consecutive failures before critical
	HealAttemptCap int
	Logger         zerolog.Logger
}

type componentState struct {
	status       types.HealthStatus
	consecFails  int
	incidentID   string
	healAttempts int
}

// Monitor runs probes on a schedule and drives each component's state
// machine: one failure degrades, CriticalAfter consecutive failures go
// critical, one success restores healthy.
type Monitor struct {
	cfg     Config
	ledger  *Ledger
	probes  []Probe
	healers map[string]Healer

	mu    sync.Mutex
	comps map[string]*componentState
	last  []types.CheckResult
}

// New creates a Monitor. The ledger may be nil, in which case incidents and
// check history are not persisted.
func New(cfg Config, ledger *Ledger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.CriticalAfter <= 0 {
		cfg.CriticalAfter = 3
	}
	if cfg.HealAttemptCap < 0 {
		cfg.HealAttemptCap = 0
	}
	return &Monitor{
		cfg:     cfg,
		ledger:  ledger,
		healers: make(map[string]Healer),
		comps:   make(map[string]*componentState),
	}
}

// Register adds a probe, optionally with a healer for its component.
func (m *Monitor) Register(p Probe, h Healer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes = append(m.probes, p)
	if h != nil {
		m.healers[p.Name] = h
	}
	m.comps[p.Name] = &componentState{status: types.StatusHealthy}
}

// Start runs the check loop until ctx is canceled. One round runs
// immediately so status is populated before the first interval elapses.
func (m *Monitor) Start(ctx context.Context) {
	m.RunChecks(ctx)
	t := time.NewTicker(m.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.RunChecks(ctx)
		}
	}
}

// RunChecks executes every probe concurrently, applies the state machine,
// persists the round, and triggers remediation for failing components.
func (m *Monitor) RunChecks(ctx context.Context) []types.CheckResult {
	m.mu.Lock()
	probes := make([]Probe, len(m.probes))
	copy(probes, m.probes)
	m.mu.Unlock()

	type outcome struct {
		probe Probe
		err   error
	}
	outcomes := make([]outcome, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()
			outcomes[i] = outcome{probe: p, err: p.runSafe(ctx)}
		}(i, p)
	}
	wg.Wait()

	now := time.Now()
	results := make([]types.CheckResult, 0, len(outcomes))
	var toHeal []string

	m.mu.Lock()
	for _, o := range outcomes {
		st := m.comps[o.probe.Name]
		if st == nil {
			st = &componentState{status: types.StatusHealthy}
			m.comps[o.probe.Name] = st
		}
		r := types.CheckResult{Component: o.probe.Name, Timestamp: now}
		if o.err == nil {
			m.applySuccess(ctx, o.probe.Name, st, now)
			r.Status = types.StatusHealthy
		} else {
			checkFailures.WithLabelValues(o.probe.Name).Inc()
			m.applyFailure(ctx, o.probe.Name, st, now, o.err)
			r.Status = st.status
			r.Message = o.err.Error()
			if _, ok := m.healers[o.probe.Name]; ok && st.healAttempts < m.cfg.HealAttemptCap {
				st.healAttempts++
				toHeal = append(toHeal, o.probe.Name)
			}
		}
		results = append(results, r)
	}
	m.last = results
	m.mu.Unlock()

	if m.ledger != nil {
		if err := m.ledger.AppendChecks(ctx, results); err != nil {
			m.cfg.Logger.Warn().Err(err).Msg("event=health_ledger_append_failed")
		}
	}

	for _, name := range toHeal {
		m.heal(ctx, name, now)
	}
	return results
}

// applyFailure runs with m.mu held.
func (m *Monitor) applyFailure(ctx context.Context, name string, st *componentState, now time.Time, cause error) {
	st.consecFails++
	before := st.status
	switch {
	case st.consecFails >= m.cfg.CriticalAfter:
		st.status = types.StatusCritical
	default:
		st.status = types.StatusDegraded
	}
	if before == st.status {
		return
	}
	m.cfg.Logger.Warn().
		Str("component", name).
		Str("from", string(before)).
		Str("to", string(st.status)).
		Err(cause).
		Msg("event=health_transition")

	if m.ledger == nil {
		return
	}
	if before == types.StatusHealthy {
		id, err := m.ledger.OpenIncident(ctx, name, st.status, now)
		if err != nil {
			m.cfg.Logger.Warn().Err(err).Msg("event=incident_open_failed")
			return
		}
		st.incidentID = id
		_ = m.ledger.AppendEvent(ctx, id, now, before, st.status, cause.Error())
		return
	}
	if st.incidentID != "" {
		_ = m.ledger.EscalateIncident(ctx, st.incidentID, st.status)
		_ = m.ledger.AppendEvent(ctx, st.incidentID, now, before, st.status, cause.Error())
	}
}

// applySuccess runs with m.mu held.
func (m *Monitor) applySuccess(ctx context.Context, name string, st *componentState, now time.Time) {
	if st.status == types.StatusHealthy {
		st.consecFails = 0
		return
	}
	before := st.status
	st.status = types.StatusHealthy
	st.consecFails = 0
	m.cfg.Logger.Info().
		Str("component", name).
		Str("from", string(before)).
		Msg("event=health_recovered")

	if m.ledger != nil && st.incidentID != "" {
		auto := st.healAttempts > 0
		resolution := "recovered"
		if auto {
			resolution = "auto-remediated"
		}
		_ = m.ledger.ResolveIncident(ctx, st.incidentID, now, auto, resolution)
		_ = m.ledger.AppendEvent(ctx, st.incidentID, now, before, types.StatusHealthy, resolution)
	}
	st.incidentID = ""
	st.healAttempts = 0
}

// heal runs the registered healer for a component. The attempt counter was
// already taken under the lock; success is only observed by the next probe
// round.
func (m *Monitor) heal(ctx context.Context, name string, now time.Time) {
	m.mu.Lock()
	h := m.healers[name]
	incidentID := ""
	if st := m.comps[name]; st != nil {
		incidentID = st.incidentID
	}
	m.mu.Unlock()
	if h == nil {
		return
	}

	healAttempts.WithLabelValues(name).Inc()
	if m.ledger != nil && incidentID != "" {
		_ = m.ledger.RecordAttempt(ctx, incidentID)
	}
	if err := h(ctx); err != nil {
		m.cfg.Logger.Warn().Str("component", name).Err(err).Msg("event=heal_failed")
		if m.ledger != nil && incidentID != "" {
			_ = m.ledger.AppendEvent(ctx, incidentID, now, types.StatusDegraded, types.StatusDegraded, "heal failed: "+err.Error())
		}
		return
	}
	m.cfg.Logger.Info().Str("component", name).Msg("event=heal_attempted")
}

// Overall returns the worst current component status.
func (m *Monitor) Overall() types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	worst := types.StatusHealthy
	for _, st := range m.comps {
		switch st.status {
		case types.StatusCritical:
			return types.StatusCritical
		case types.StatusDegraded:
			worst = types.StatusDegraded
		}
	}
	return worst
}

// Current returns the results of the most recent round.
func (m *Monitor) Current() []types.CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.CheckResult, len(m.last))
	copy(out, m.last)
	return out
}

// ComponentStatus reports one component's current status.
func (m *Monitor) ComponentStatus(name string) (types.HealthStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.comps[name]
	if !ok {
		return "", false
	}
	return st.status, true
}

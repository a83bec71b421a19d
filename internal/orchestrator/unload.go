package orchestrator

import (
	"context"
	"time"
)

// StartJanitor runs the idle-unload loop until ctx is canceled. Each tier's
// idle timer is its LastUsed timestamp; the timer effectively resets on
// every use.
func (o *Orchestrator) StartJanitor(ctx context.Context) {
	interval := o.idleTimeout / 4
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.unloadIdle()
		}
	}
}

func (o *Orchestrator) unloadIdle() {
	cutoff := time.Now().Add(-o.idleTimeout)
	for id, e := range o.entries {
		e.mu.Lock()
		ok := e.inst != nil && e.inst.State == StateReady &&
			e.inflight == 0 && e.loading == nil && e.inst.LastUsed.Before(cutoff)
		if ok {
			e.inst.State = StateUnloading
			e.inst = nil
			tierUnloadsTotal.WithLabelValues(id, "idle").Inc()
			o.log.Info().Str("tier", id).Msg("event=idle_unload")
		}
		e.mu.Unlock()
	}
}

// Unload removes a single tier's instance. In-flight or loading instances
// are left alone; the janitor or a later call picks them up.
func (o *Orchestrator) Unload(tierID string) error {
	e, ok := o.entries[tierID]
	if !ok {
		return ErrTierNotFound(tierID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inst == nil || e.inflight > 0 || e.loading != nil {
		return nil
	}
	e.inst.State = StateUnloading
	e.inst = nil
	tierUnloadsTotal.WithLabelValues(tierID, "explicit").Inc()
	o.log.Info().Str("tier", tierID).Msg("event=unload")
	return nil
}

// UnloadAll immediately removes every idle instance, bypassing the idle
// timer. Used by memory-pressure remediation. Instances with in-flight work
// are still skipped; unload never races a running request.
func (o *Orchestrator) UnloadAll() int {
	n := 0
	for id, e := range o.entries {
		e.mu.Lock()
		if e.inst != nil && e.inflight == 0 && e.loading == nil {
			e.inst.State = StateUnloading
			e.inst = nil
			n++
			tierUnloadsTotal.WithLabelValues(id, "forced").Inc()
		}
		e.mu.Unlock()
	}
	if n > 0 {
		o.log.Warn().Int("unloaded", n).Msg("event=forced_unload_all")
	}
	return n
}

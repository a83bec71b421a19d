package orchestrator

import (
	"context"
	"time"
)

// acquire ensures the tier's instance is ready and reserves an in-flight
// slot. Concurrent callers for a tier being loaded wait behind the single
// in-flight load; duplicate loads are never triggered. The returned release
// must be called once the request against this tier is finished.
func (o *Orchestrator) acquire(ctx context.Context, tierID string) (release func(), err error) {
	e, ok := o.entries[tierID]
	if !ok {
		return nil, ErrTierNotFound(tierID)
	}
	for {
		e.mu.Lock()
		if e.inst != nil && e.inst.State == StateReady {
			e.inst.LastUsed = time.Now()
			e.inflight++
			e.mu.Unlock()
			return func() { o.release(e) }, nil
		}
		if e.loading != nil {
			// A load is in flight; wait for its outcome and re-check.
			ch := e.loading
			e.mu.Unlock()
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		// Become the loader for this tier.
		ch := make(chan struct{})
		e.loading = ch
		e.inst = &Instance{TierID: tierID, State: StateLoading}
		e.mu.Unlock()

		loadErr := o.load(ctx, e)

		e.mu.Lock()
		e.loading = nil
		if loadErr != nil {
			e.inst.State = StateFailed
			e.inst = nil
			e.mu.Unlock()
			close(ch)
			return nil, loadErr
		}
		now := time.Now()
		e.inst.State = StateReady
		e.inst.LoadedAt = now
		e.inst.LastUsed = now
		e.inflight++
		e.mu.Unlock()
		close(ch)
		tierLoadsTotal.WithLabelValues(tierID).Inc()
		o.log.Info().Str("tier", tierID).Msg("event=instance_ready")
		return func() { o.release(e) }, nil
	}
}

func (o *Orchestrator) release(e *entry) {
	e.mu.Lock()
	e.inflight--
	if e.inst != nil {
		e.inst.LastUsed = time.Now()
	}
	e.mu.Unlock()
}

// load brings the tier's backend to ready, bounded by the load timeout. A
// timeout is treated as a backend failure so the caller can fall back.
func (o *Orchestrator) load(ctx context.Context, e *entry) error {
	lctx, cancel := context.WithTimeout(ctx, o.loadTimeout)
	defer cancel()
	start := time.Now()
	if err := o.client.Ping(lctx, e.tier); err != nil {
		if lctx.Err() == context.DeadlineExceeded {
			tierLoadFailuresTotal.WithLabelValues(e.tier.ID, "timeout").Inc()
			return loadTimeoutError{tierID: e.tier.ID, timeout: o.loadTimeout.String()}
		}
		tierLoadFailuresTotal.WithLabelValues(e.tier.ID, "unreachable").Inc()
		o.log.Warn().Str("tier", e.tier.ID).Err(err).Msg("event=load_failed")
		return err
	}
	o.log.Debug().Str("tier", e.tier.ID).Dur("dur", time.Since(start)).Msg("event=load_ok")
	return nil
}

// Warm pre-loads the given tier without serving a request. Used for the
// optional warm-default-tier startup behavior.
func (o *Orchestrator) Warm(ctx context.Context, tierID string) error {
	release, err := o.acquire(ctx, tierID)
	if err != nil {
		return err
	}
	release()
	return nil
}

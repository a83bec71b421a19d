package orchestrator

import (
	"context"
	"time"
)

// PreflightResult describes the startup reachability check for one tier.
type PreflightResult struct {
	TierID     string `json:"tier_id"`
	Reachable  bool   `json:"reachable"`
	Error      string `json:"error,omitempty"`
	Substitute string `json:"substitute,omitempty"`
}

// Ping checks one tier's backend reachability without loading an instance.
func (o *Orchestrator) Ping(ctx context.Context, tierID string) error {
	e, ok := o.entries[tierID]
	if !ok {
		return ErrTierNotFound(tierID)
	}
	return o.client.Ping(ctx, e.tier)
}

// Preflight validates that each tier's backend is reachable. Unreachable
// tiers get a same-capability-tag substitute suggestion when one exists. It
// does not mutate state and is safe to call at any time.
func (o *Orchestrator) Preflight(ctx context.Context) []PreflightResult {
	tiers := o.catalog.All()
	out := make([]PreflightResult, 0, len(tiers))
	for _, t := range tiers {
		r := PreflightResult{TierID: t.ID}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := o.client.Ping(pctx, t)
		cancel()
		if err == nil {
			r.Reachable = true
		} else {
			r.Error = err.Error()
			if sub, ok := o.catalog.Substitute(t.ID); ok {
				r.Substitute = sub.ID
			}
			ev := o.log.Warn().Str("tier", t.ID).Err(err)
			if r.Substitute != "" {
				ev = ev.Str("substitute", r.Substitute)
			}
			ev.Msg("event=preflight_unreachable")
		}
		out = append(out, r)
	}
	return out
}

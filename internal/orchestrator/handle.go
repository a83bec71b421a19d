package orchestrator

import (
	"context"
	"time"
)

// Handle serves one request: select a tier for the complexity hint, lazily
// load it, and on backend failure retry strictly cheaper tiers in
// decreasing-cost order. Every attempt updates the tier's performance
// record. When the cheapest tier fails too, a BackendUnavailable error
// carrying the full attempt list is returned.
func (o *Orchestrator) Handle(ctx context.Context, query string, hint float64) (*Result, error) {
	chain := o.catalog.FallbackChain(hint)
	attempts := make([]Attempt, 0, len(chain))

	for i, t := range chain {
		if i > 0 {
			fallbackTotal.WithLabelValues(t.ID).Inc()
			o.log.Warn().Str("tier", t.ID).Str("from", chain[i-1].ID).Msg("event=fallback")
		}
		start := time.Now()

		release, err := o.acquire(ctx, t.ID)
		if err != nil {
			lat := time.Since(start)
			o.perf.Record(t.ID, false, lat)
			attempts = append(attempts, Attempt{TierID: t.ID, Reason: err.Error(), Latency: lat})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		text, err := o.client.Infer(ctx, t, query)
		lat := time.Since(start)
		release()
		o.perf.Record(t.ID, err == nil, lat)

		if err != nil {
			attempts = append(attempts, Attempt{TierID: t.ID, Reason: err.Error(), Latency: lat})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		attempts = append(attempts, Attempt{TierID: t.ID, OK: true, Latency: lat})
		return &Result{
			Response: text,
			TierUsed: t.ID,
			Latency:  lat,
			Attempts: attempts,
		}, nil
	}

	return nil, backendUnavailableError{attempts: attempts}
}

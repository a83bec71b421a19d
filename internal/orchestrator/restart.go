package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// RestartBackend runs the tier's configured restart command once, waits for
// the backend to settle, then re-probes it. The tier's instance is unloaded
// first so nothing holds a connection to the old process. Tiers without a
// restart command fail immediately; the caller decides whether that ends
// remediation.
func (o *Orchestrator) RestartBackend(ctx context.Context, tierID string) error {
	e, ok := o.entries[tierID]
	if !ok {
		return ErrTierNotFound(tierID)
	}
	if e.tier.RestartCmd == "" {
		return fmt.Errorf("tier %s has no restart command", tierID)
	}

	_ = o.Unload(tierID)

	o.log.Warn().Str("tier", tierID).Str("cmd", e.tier.RestartCmd).Msg("event=backend_restart")
	cmd := exec.CommandContext(ctx, "sh", "-c", e.tier.RestartCmd)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("restart %s: %w: %s", tierID, err, out)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.restartWait):
	}
	if err := o.Ping(ctx, tierID); err != nil {
		return fmt.Errorf("backend %s still unreachable after restart: %w", tierID, err)
	}
	o.log.Info().Str("tier", tierID).Msg("event=backend_restart_verified")
	return nil
}

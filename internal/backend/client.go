// Package backend talks to local inference servers. The transport is an
// external collaborator: each tier names a base URL, and the daemon stays
// agnostic about which server implementation answers there as long as it
// speaks the completion endpoint.
package backend

import (
	"context"

	"inferd/pkg/types"
)

// Client abstracts the inference transport for one or more tiers.
type Client interface {
	// Infer sends a prompt to the tier's backend and returns the completion
	// text. Implementations must honor ctx cancellation and deadlines.
	Infer(ctx context.Context, tier types.ModelTier, prompt string) (string, error)
	// Ping verifies the tier's backend is reachable and serving.
	Ping(ctx context.Context, tier types.ModelTier) error
}

// Package tier holds the static catalog of model tiers. The catalog is built
// once from configuration and never mutated afterwards; the orchestrator
// reads it to select tiers and walk the fallback chain.
package tier

import (
	"fmt"
	"sort"

	"inferd/pkg/types"
)

// Catalog is an immutable, validated set of model tiers.
type Catalog struct {
	tiers  []types.ModelTier
	byID   map[string]types.ModelTier
	byCost []types.ModelTier // ascending resource cost
}

// NewCatalog validates and indexes the configured tiers.
func NewCatalog(tiers []types.ModelTier) (*Catalog, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("tier catalog is empty")
	}
	byID := make(map[string]types.ModelTier, len(tiers))
	for _, t := range tiers {
		if t.ID == "" {
			return nil, fmt.Errorf("tier with empty id")
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tier id %q", t.ID)
		}
		if t.BackendURL == "" {
			return nil, fmt.Errorf("tier %s: empty backend_url", t.ID)
		}
		if t.ResourceCost <= 0 {
			return nil, fmt.Errorf("tier %s: resource_cost must be positive", t.ID)
		}
		if t.ComplexityThreshold < 0 || t.ComplexityThreshold > 1 {
			return nil, fmt.Errorf("tier %s: complexity_threshold %v outside [0,1]", t.ID, t.ComplexityThreshold)
		}
		byID[t.ID] = t
	}
	byCost := append([]types.ModelTier(nil), tiers...)
	sort.SliceStable(byCost, func(i, j int) bool { return byCost[i].ResourceCost < byCost[j].ResourceCost })
	return &Catalog{
		tiers:  append([]types.ModelTier(nil), tiers...),
		byID:   byID,
		byCost: byCost,
	}, nil
}

// All returns the tiers in configuration order (copy; callers may not mutate
// the catalog through it).
func (c *Catalog) All() []types.ModelTier {
	out := make([]types.ModelTier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Get resolves a tier by id.
func (c *Catalog) Get(id string) (types.ModelTier, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Select picks the tier for a complexity hint: the highest threshold at or
// below the hint, ties broken by lowest resource cost. Hints are clamped to
// [0,1]. Falls back to the cheapest tier when no threshold matches.
func (c *Catalog) Select(hint float64) types.ModelTier {
	if hint < 0 {
		hint = 0
	}
	if hint > 1 {
		hint = 1
	}
	var best types.ModelTier
	found := false
	for _, t := range c.byCost {
		if t.ComplexityThreshold > hint {
			continue
		}
		if !found || t.ComplexityThreshold > best.ComplexityThreshold {
			best = t
			found = true
		}
		// byCost is cost-ascending, so on equal thresholds the cheaper
		// tier is already held.
	}
	if !found {
		return c.byCost[0]
	}
	return best
}

// FallbackChain returns the selected tier for the hint followed by every
// strictly cheaper tier in decreasing cost order. The chain never escalates.
func (c *Catalog) FallbackChain(hint float64) []types.ModelTier {
	first := c.Select(hint)
	chain := []types.ModelTier{first}
	for i := len(c.byCost) - 1; i >= 0; i-- {
		t := c.byCost[i]
		if t.ResourceCost < first.ResourceCost && t.ID != first.ID {
			chain = append(chain, t)
		}
	}
	return chain
}

// Substitute suggests another tier sharing a capability tag with the given
// tier, preferring the cheapest candidate. Used at startup when a tier's
// backend is unreachable.
func (c *Catalog) Substitute(id string) (types.ModelTier, bool) {
	orig, ok := c.byID[id]
	if !ok {
		return types.ModelTier{}, false
	}
	tags := make(map[string]struct{}, len(orig.CapabilityTags))
	for _, tag := range orig.CapabilityTags {
		tags[tag] = struct{}{}
	}
	for _, t := range c.byCost {
		if t.ID == id {
			continue
		}
		for _, tag := range t.CapabilityTags {
			if _, shared := tags[tag]; shared {
				return t, true
			}
		}
	}
	return types.ModelTier{}, false
}

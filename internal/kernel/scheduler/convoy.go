package scheduler

import (
	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/provider"
)

// convoyKey groups modules that can share one provider instance (spec
// section 4.6, "Convoy grouping"): agreement on execution mode, data
// strategy, and frequency is enough to share a replica, since every
// member will be dispatched at the same due points with the same tick.
type convoyKey struct {
	mode     ExecutionMode
	strategy DataStrategy
	freqHz   float64
}

func keyFor(spec ModuleSpec) convoyKey {
	return convoyKey{mode: spec.ExecutionMode, strategy: spec.DataStrategy, freqHz: spec.FrequencyHz}
}

// convoyGroup is one shared-provider group: a union mask over every
// member's required+watched components, and the provider built from it at
// Start. A group with one member degenerates to a dedicated provider.
type convoyGroup struct {
	key      convoyKey
	mask     ecs.Bitmask
	eventIDs map[int]struct{}
	provider provider.Provider
	members  []*moduleEntry
}

func newConvoyGroup(key convoyKey) *convoyGroup {
	return &convoyGroup{key: key, eventIDs: make(map[int]struct{})}
}

func (g *convoyGroup) add(entry *moduleEntry) {
	g.members = append(g.members, entry)
	g.mask = g.mask.Union(entry.spec.componentMask())
	for _, id := range entry.spec.eventMask().Bits() {
		g.eventIDs[id] = struct{}{}
	}
}

// frameSyncer is implemented by providers whose convoy members must
// observe one shared sync per frame (package provider's Shared) rather
// than resyncing independently on every Acquire.
type frameSyncer interface {
	SyncForFrame(tick uint64) (int, error)
}

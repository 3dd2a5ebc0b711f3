package provider

import (
	"log/slog"
	"sync"

	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/store"
	"simkernel/internal/kernel/view"

	"simkernel/internal/logging"
)

// GDB is the persistent-replica provider of spec section 4.5: a single
// long-lived replica of every registered table, fully resynced on each
// Acquire rather than pooled or shared, intended for modules that need a
// complete, always-fresh picture every frame (e.g. a debug inspector or a
// cross-cutting system touching most of the world).
type GDB struct {
	mu      sync.Mutex
	master  *store.World
	replica *store.World
	acc     *event.Accumulator

	lastSeenTick uint64
	logger       *slog.Logger
}

// NewGDB creates a persistent-replica provider. replica must already have
// the same type registrations as master (same ids, same tiers), typically
// built by calling the same Register* sequence against a second World at
// kernel setup time.
func NewGDB(master, replica *store.World, acc *event.Accumulator, logger *slog.Logger) *GDB {
	return &GDB{
		master:  master,
		replica: replica,
		acc:     acc,
		logger:  logging.Default(logger).With("component", "provider", "kind", "gdb"),
	}
}

// Acquire resyncs the replica against every registered table and returns a
// View over it.
func (g *GDB) Acquire(tick uint64, timeSec float64) (*view.View, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	mask := ecs.FullMask(g.master.Registry.Len())
	if _, err := syncAll(g.master, g.replica, mask); err != nil {
		return nil, err
	}
	batches, newCursor, dataLoss := eventBatchesFor(g.acc, g.lastSeenTick)
	g.lastSeenTick = newCursor
	if dataLoss {
		g.logger.Warn("event history gap observed", "tick", tick)
	}
	return view.New(g.replica, tick, timeSec, batches, dataLoss), nil
}

// Release is a no-op for GDB: the replica is persistent, not pooled.
func (g *GDB) Release(v *view.View) {}

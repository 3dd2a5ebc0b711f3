// Package provider implements the three synchronization/snapshot
// strategies of spec section 4.5 that turn a master store.World into the
// read-only view.View a module's update function runs against: GDB (a
// persistent, always-synced full replica), SoD (a pooled, filtered,
// acquire/release snapshot), and Shared (one replica reader-counted across
// a convoy of modules that run in the same frame phase).
//
// All three share the same underlying mechanism — copy the master's
// entity liveness and sync each required table's dirty chunks into a
// pre-registered replica store.World (see store.Table.SyncFrom) — and
// differ only in when that sync happens and how the resulting View's
// lifetime is managed, the same way the teacher's chunk managers share one
// rotation/retention mechanism across different backing stores.
package provider

import (
	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/store"
	"simkernel/internal/kernel/view"
)

// Provider is the synchronization strategy a scheduled module is bound to.
// Acquire produces a read-only View consistent as of tick; Release returns
// it, allowing pooled strategies to reclaim buffers.
type Provider interface {
	Acquire(tick uint64, timeSec float64) (*view.View, error)
	Release(v *view.View)
}

// syncAll copies liveness and every table named in mask from master into
// replica, returning the number of chunks actually touched across all
// tables (useful for tests and metrics).
func syncAll(master, replica *store.World, mask ecs.Bitmask) (int, error) {
	replica.Index.LoadSnapshot(master.Index.Snapshot())

	touched := 0
	n := master.Registry.Len()
	for id := 0; id < n; id++ {
		if !mask.Has(id) {
			continue
		}
		src, err := master.Table(id)
		if err != nil {
			continue // type registered after this replica was built
		}
		dst, err := replica.Table(id)
		if err != nil {
			return touched, err
		}
		n, err := dst.SyncFrom(src)
		if err != nil {
			return touched, err
		}
		touched += n
	}
	return touched, nil
}

// eventBatchesFor resolves the event batches a provider hands its View,
// given the accumulator cursor the caller last observed.
func eventBatchesFor(acc *event.Accumulator, lastSeenTick uint64) ([]event.FrameEventBatch, uint64, bool) {
	if acc == nil {
		return nil, lastSeenTick, false
	}
	return acc.Flush(lastSeenTick)
}

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

// SoD is the pooled, filtered-snapshot provider of spec section 4.5: each
// Acquire draws a replica buffer from a pool (building a new one only if
// the pool is empty), syncs only the component types named by mask (event
// batches after the replica's cursor are passed on unfiltered), and Release soft-clears the buffer and returns it to the pool — the same
// reuse-over-reallocate discipline as the teacher's chunk.Manager opening
// a fresh chunkState only when rotation demands it.
type SoD struct {
	mu         sync.Mutex
	master     *store.World
	mask       ecs.Bitmask
	newReplica func() *store.World
	free       []*store.World
	acc        *event.Accumulator

	lastSeenTick uint64
	logger       *slog.Logger
}

// NewSoD creates a pooled snapshot provider. newReplica must build a fresh
// World with the same type registrations as master (at least those named
// by mask); poolSize buffers are pre-built eagerly so steady-state Acquire
// never allocates.
func NewSoD(master *store.World, mask ecs.Bitmask, newReplica func() *store.World, poolSize int, acc *event.Accumulator, logger *slog.Logger) *SoD {
	s := &SoD{
		master:     master,
		mask:       mask,
		newReplica: newReplica,
		acc:        acc,
		logger:     logging.Default(logger).With("component", "provider", "kind", "sod"),
	}
	for i := 0; i < poolSize; i++ {
		s.free = append(s.free, newReplica())
	}
	return s
}

// Acquire draws a buffer from the pool (or builds one, logging that the
// pool underran), syncs the mask's tables into it, and returns a View.
func (s *SoD) Acquire(tick uint64, timeSec float64) (*view.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var w *store.World
	if n := len(s.free); n > 0 {
		w = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.logger.Debug("pool exhausted, building a new replica", "tick", tick)
		w = s.newReplica()
	}

	if _, err := syncAll(s.master, w, s.mask); err != nil {
		return nil, err
	}
	batches, newCursor, dataLoss := eventBatchesFor(s.acc, s.lastSeenTick)
	s.lastSeenTick = newCursor
	return view.New(w, tick, timeSec, batches, dataLoss), nil
}

// Release soft-clears the view's underlying replica and returns it to the
// pool.
func (s *SoD) Release(v *view.View) {
	w := view.WorldOf(v)
	n := s.master.Registry.Len()
	for id := 0; id < n; id++ {
		if !s.mask.Has(id) {
			continue
		}
		_ = w.ClearTable(id)
	}
	s.mu.Lock()
	s.free = append(s.free, w)
	s.mu.Unlock()
}

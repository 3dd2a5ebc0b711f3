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

// Shared is the convoy-replica provider of spec section 4.5: a single
// replica synced once per frame and handed out, read-only, to every member
// of a convoy (a group of modules the scheduler runs together in the same
// phase). Acquire is reader-counted; SyncForFrame logs a warning when it
// resyncs while readers are still outstanding, and resyncs anyway.
type Shared struct {
	mu      sync.Mutex
	master  *store.World
	replica *store.World
	mask    ecs.Bitmask
	acc     *event.Accumulator

	lastSeenTick    uint64
	syncedTick      uint64
	synced          bool
	pendingBatches  []event.FrameEventBatch
	pendingDataLoss bool
	readers         int

	logger *slog.Logger
}

// NewShared creates a convoy-replica provider. replica must already carry
// the same type registrations as master.
func NewShared(master, replica *store.World, mask ecs.Bitmask, acc *event.Accumulator, logger *slog.Logger) *Shared {
	return &Shared{
		master:  master,
		replica: replica,
		mask:    mask,
		acc:     acc,
		logger:  logging.Default(logger).With("component", "provider", "kind", "shared"),
	}
}

// SyncForFrame performs the one sync every convoy member will share this
// frame. Called once by the scheduler before dispatching the convoy.
func (s *Shared) SyncForFrame(tick uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readers > 0 {
		s.logger.Warn("resyncing shared replica with readers still outstanding", "tick", tick, "readers", s.readers)
	}
	touched, err := syncAll(s.master, s.replica, s.mask)
	if err != nil {
		return touched, err
	}
	batches, newCursor, dataLoss := eventBatchesFor(s.acc, s.lastSeenTick)
	s.lastSeenTick = newCursor
	s.syncedTick = tick
	s.synced = true
	s.pendingBatches = batches
	s.pendingDataLoss = dataLoss
	return touched, nil
}

// Acquire returns a View over the convoy's shared, already-synced replica.
// Fails with ErrNotSynced if SyncForFrame hasn't been called for tick yet.
func (s *Shared) Acquire(tick uint64, timeSec float64) (*view.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.synced || s.syncedTick != tick {
		return nil, ErrNotSynced
	}
	s.readers++
	return view.New(s.replica, tick, timeSec, s.pendingBatches, s.pendingDataLoss), nil
}

// Release decrements the convoy's outstanding reader count.
func (s *Shared) Release(v *view.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readers > 0 {
		s.readers--
	}
}

// Readers returns the number of convoy members currently holding a view
// from this replica.
func (s *Shared) Readers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readers
}

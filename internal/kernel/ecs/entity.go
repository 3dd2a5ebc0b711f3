package ecs

import "sync"

// Entity is an opaque (id, generation) handle. The low 32 bits are the id,
// the high 32 bits are the generation at which the id was last reused.
type Entity uint64

// NewEntity packs an id and generation into an Entity handle.
func NewEntity(id, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(id))
}

// ID returns the 32-bit slot id.
func (e Entity) ID() uint32 { return uint32(e) }

// Generation returns the 32-bit generation the handle was minted at.
func (e Entity) Generation() uint32 { return uint32(e >> 32) }

type slot struct {
	alive      bool
	generation uint32
}

// Index is the sparse entity table: it converts external Entity handles to
// dense slot ids and tracks liveness + generation so a stale handle can
// never be mistaken for a live one after its id is reused.
//
// Index is mutated only from the driver thread (create/destroy), mirroring
// the teacher's chunk.Manager discipline of guarding all mutable state with
// a mutex even though callers are expected to serialize access by
// convention; the mutex here additionally makes IsAlive safe to call from
// a synchronous module running on the driver thread while a concurrent
// read-only View holds its own consistent copy.
type Index struct {
	mu      sync.Mutex
	slots   []slot
	freeIDs []uint32
}

// NewIndex creates an empty entity index.
func NewIndex() *Index {
	return &Index{}
}

// Create allocates an id (reusing a cleared one if available), marks it
// alive, and returns the resulting handle.
func (ix *Index) Create() Entity {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if n := len(ix.freeIDs); n > 0 {
		id := ix.freeIDs[n-1]
		ix.freeIDs = ix.freeIDs[:n-1]
		ix.slots[id].alive = true
		return NewEntity(id, ix.slots[id].generation)
	}

	id := uint32(len(ix.slots))
	ix.slots = append(ix.slots, slot{alive: true, generation: 0})
	return NewEntity(id, 0)
}

// IsAlive reports whether e refers to a currently live entity: the slot
// must be alive and the handle's generation must match the slot's current
// generation.
func (ix *Index) IsAlive(e Entity) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.isAliveLocked(e)
}

func (ix *Index) isAliveLocked(e Entity) bool {
	id := e.ID()
	if int(id) >= len(ix.slots) {
		return false
	}
	s := ix.slots[id]
	return s.alive && s.generation == e.Generation()
}

// Destroy marks e dead and bumps its generation so the id may be safely
// reused by a future Create. Returns ErrDeadEntity if e is not currently
// alive.
func (ix *Index) Destroy(e Entity) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if !ix.isAliveLocked(e) {
		return ErrDeadEntity
	}
	id := e.ID()
	ix.slots[id].alive = false
	ix.slots[id].generation++
	ix.freeIDs = append(ix.freeIDs, id)
	return nil
}

// Generation returns the current generation for a slot id, regardless of
// liveness. Command buffer playback does not call it; it validates
// handles with IsAlive.
func (ix *Index) Generation(id uint32) (generation uint32, everAllocated bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if int(id) >= len(ix.slots) {
		return 0, false
	}
	return ix.slots[id].generation, true
}

// EntityFor returns the live handle for a slot id, if that slot is
// currently alive. Used by query iteration (package store) to turn a
// matching (chunk, slot) pair back into an Entity handle.
func (ix *Index) EntityFor(id uint32) (Entity, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if int(id) >= len(ix.slots) {
		return 0, false
	}
	s := ix.slots[id]
	if !s.alive {
		return 0, false
	}
	return NewEntity(id, s.generation), true
}

// Len returns the number of slots ever allocated (alive or not), i.e. the
// dense upper bound entities can index up to.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.slots)
}

// AliveCount returns the number of currently live entities.
func (ix *Index) AliveCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n := 0
	for _, s := range ix.slots {
		if s.alive {
			n++
		}
	}
	return n
}

// LivenessSnapshot is an immutable, point-in-time copy of liveness and
// generation for every allocated slot. Synchronization providers (package
// provider) take one of these instead of sharing the live Index so a
// replica's is_alive answers stay consistent for the lifetime of a lease,
// independent of entities the driver thread creates or destroys in later
// frames.
type LivenessSnapshot struct {
	alive      []bool
	generation []uint32
}

// IsAlive reports whether e was alive at the moment this snapshot was
// taken.
func (s LivenessSnapshot) IsAlive(e Entity) bool {
	id := e.ID()
	if int(id) >= len(s.alive) {
		return false
	}
	return s.alive[id] && s.generation[id] == e.Generation()
}

// LoadSnapshot overwrites ix's slots to match s, used by a replica Index
// to adopt a synchronization provider's point-in-time copy of the master
// index (spec section 4.5: a replica's view of entity liveness is synced
// the same way its component columns are, not read live off the master).
func (ix *Index) LoadSnapshot(s LivenessSnapshot) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.slots = make([]slot, len(s.alive))
	for i := range s.alive {
		ix.slots[i] = slot{alive: s.alive[i], generation: s.generation[i]}
	}
	ix.freeIDs = ix.freeIDs[:0]
	for i, a := range s.alive {
		if !a {
			ix.freeIDs = append(ix.freeIDs, uint32(i))
		}
	}
}

// Snapshot captures the current liveness+generation of every allocated
// slot, in ascending id order.
func (ix *Index) Snapshot() LivenessSnapshot {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	alive := make([]bool, len(ix.slots))
	gen := make([]uint32, len(ix.slots))
	for i, s := range ix.slots {
		alive[i] = s.alive
		gen[i] = s.generation
	}
	return LivenessSnapshot{alive: alive, generation: gen}
}

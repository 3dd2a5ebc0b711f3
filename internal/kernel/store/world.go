package store

import (
	"sync"

	"simkernel/internal/kernel/ecs"
)

// World owns the entity index and the set of component/event tables that
// back it, matching the "Store" responsibilities of spec section 4.1: own
// entity lifecycle, own chunked column tables, own per-type last-write-tick
// watermarks used by the scheduler's event/component-driven due predicates.
type World struct {
	Registry *ecs.Registry
	Index    *ecs.Index

	capacity int

	mu            sync.RWMutex
	tables        map[int]Table
	lastWriteTick map[int]uint64
}

// NewWorld creates an empty World. capacity is the chunk capacity (slots
// per chunk) used by every type registered in this World; a value <= 0
// selects DefaultWorldCapacity.
func NewWorld(capacity int) *World {
	if capacity <= 0 {
		capacity = DefaultWorldCapacity
	}
	return &World{
		Registry:      ecs.NewRegistry(),
		Index:         ecs.NewIndex(),
		capacity:      capacity,
		tables:        make(map[int]Table),
		lastWriteTick: make(map[int]uint64),
	}
}

// RegisterBlittable registers a blittable component/event type and creates
// its backing column.
func RegisterBlittable[T any](w *World, name string) (int, error) {
	id, err := ecs.RegisterBlittable[T](w.Registry, name)
	if err != nil {
		return 0, err
	}
	w.mu.Lock()
	w.tables[id] = NewColumn[T](id, ecs.TierBlittable, w.capacity)
	w.mu.Unlock()
	return id, nil
}

// RegisterManaged registers a managed component/event type and creates its
// backing column. See the package doc comment in column.go for why managed
// and blittable columns share one implementation.
func RegisterManaged[T any](w *World, name string) (int, error) {
	id, err := ecs.RegisterManaged[T](w.Registry, name)
	if err != nil {
		return 0, err
	}
	w.mu.Lock()
	w.tables[id] = NewColumn[T](id, ecs.TierManaged, w.capacity)
	w.mu.Unlock()
	return id, nil
}

func (w *World) table(typeID int) (Table, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tables[typeID]
	if !ok {
		return nil, ErrUnknownType
	}
	return t, nil
}

// column resolves a type-erased Table to its concrete *Column[T], failing
// with ErrTierMismatch if T doesn't match how typeID was registered.
func column[T any](w *World, typeID int) (*Column[T], error) {
	t, err := w.table(typeID)
	if err != nil {
		return nil, err
	}
	c, ok := t.(*Column[T])
	if !ok {
		return nil, ErrTierMismatch
	}
	return c, nil
}

// Set writes a component/event value for a live entity and bumps the
// type's last-write-tick watermark, driving the scheduler's
// component-driven due predicate (spec section 5.2).
func Set[T any](w *World, typeID int, e ecs.Entity, value T, tick uint64) error {
	if !w.Index.IsAlive(e) {
		return ecs.ErrDeadEntity
	}
	c, err := column[T](w, typeID)
	if err != nil {
		return err
	}
	c.Set(e.ID(), value)
	w.mu.Lock()
	w.lastWriteTick[typeID] = tick
	w.mu.Unlock()
	return nil
}

// Get returns the value for e in typeID, and whether it is present. A dead
// entity always reads as absent.
func Get[T any](w *World, typeID int, e ecs.Entity) (T, bool, error) {
	var zero T
	if !w.Index.IsAlive(e) {
		return zero, false, nil
	}
	c, err := column[T](w, typeID)
	if err != nil {
		return zero, false, err
	}
	v, ok := c.Get(e.ID())
	return v, ok, nil
}

// Remove deletes a component/event value for e, if present.
func Remove[T any](w *World, typeID int, e ecs.Entity, tick uint64) error {
	c, err := column[T](w, typeID)
	if err != nil {
		return err
	}
	if c.Remove(e.ID()) {
		w.mu.Lock()
		w.lastWriteTick[typeID] = tick
		w.mu.Unlock()
	}
	return nil
}

// CreateEntity allocates a new entity handle.
func (w *World) CreateEntity() ecs.Entity {
	return w.Index.Create()
}

// DestroyEntity tombstones e in the entity index and clears its slot from
// every registered table, matching spec section 4.1's "destroying an
// entity... removes all of its component data".
func (w *World) DestroyEntity(e ecs.Entity) error {
	if err := w.Index.Destroy(e); err != nil {
		return err
	}
	w.mu.RLock()
	tables := make([]Table, 0, len(w.tables))
	for _, t := range w.tables {
		tables = append(tables, t)
	}
	w.mu.RUnlock()
	for _, t := range tables {
		t.RemoveEntity(e.ID())
	}
	return nil
}

// LastWriteTick returns the tick of the most recent Set/Remove against
// typeID, or 0 if it has never been written.
func (w *World) LastWriteTick(typeID int) uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastWriteTick[typeID]
}

// Table exposes the type-erased table for typeID, used by the
// synchronization engine (package provider) to sync one type at a time
// without importing the generic accessors above.
func (w *World) Table(typeID int) (Table, error) {
	return w.table(typeID)
}

// Capacity returns the default chunk capacity new tables are created with.
func (w *World) Capacity() int { return w.capacity }

// ClearTable soft-clears one table's data, retaining its chunk buffers for
// reuse. Used by the SoD provider to recycle a pooled replica on Release
// without discarding its registrations.
func (w *World) ClearTable(typeID int) error {
	t, err := w.table(typeID)
	if err != nil {
		return err
	}
	t.SoftClear()
	return nil
}

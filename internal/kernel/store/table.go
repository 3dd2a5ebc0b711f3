package store

import "simkernel/internal/kernel/ecs"

// Table is the type-erased view of a Column[T] that the World and the
// synchronization engine (package provider) operate on without knowing T.
// Every *Column[T] implements Table.
type Table interface {
	TypeID() int
	Tier() ecs.Tier
	NumChunks() int
	HasChunk(idx int) bool
	ChunkVersion(idx int) uint64
	PresentAt(idx, slot int) bool
	RemoveEntity(id uint32) bool
	SyncFrom(src Table) (int, error)
	SoftClear()
}

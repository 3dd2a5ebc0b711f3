package cmdbuffer

import (
	"fmt"
	"sync"

	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/store"
)

// playbackCtx is the state one Playback call threads through every
// recorded operation.
type playbackCtx struct {
	world *store.World
	bus   *event.Bus
	tick  uint64
	temps map[int64]ecs.Entity
}

type op struct {
	label string
	run   func(pc *playbackCtx) error
}

// Buffer is a command recorder. A module records into its own Buffer
// while it runs — intended as one Buffer per concurrently-running module
// invocation, the Go equivalent of a thread-local recorder — and the
// driver thread plays buffers back after collecting them, serially, via
// Playback. Buffer is safe for concurrent recording from multiple
// goroutines, but playback is expected to happen only after recording for
// the frame has stopped.
type Buffer struct {
	mu       sync.Mutex
	ops      []op
	nextTemp int64
}

// New creates an empty command buffer.
func New() *Buffer { return &Buffer{} }

// CreateEntity records an entity creation and returns a Target that later
// commands in this buffer can use to refer to the not-yet-real entity.
func (b *Buffer) CreateEntity() Target {
	b.mu.Lock()
	id := b.nextTemp
	b.nextTemp++
	b.ops = append(b.ops, op{
		label: "create_entity",
		run: func(pc *playbackCtx) error {
			pc.temps[id] = pc.world.CreateEntity()
			return nil
		},
	})
	b.mu.Unlock()
	return tempTarget(id)
}

// DestroyEntity records an entity destruction.
func (b *Buffer) DestroyEntity(t Target) {
	b.mu.Lock()
	b.ops = append(b.ops, op{
		label: "destroy_entity",
		run: func(pc *playbackCtx) error {
			e, err := resolve(pc, t)
			if err != nil {
				return err
			}
			return pc.world.DestroyEntity(e)
		},
	})
	b.mu.Unlock()
}

// SetComponent records a component upsert for a target, validated at
// playback time against the target's liveness: the generation in the
// handle must still match the slot's current generation.
func SetComponent[T any](b *Buffer, typeID int, t Target, value T) {
	b.mu.Lock()
	b.ops = append(b.ops, op{
		label: fmt.Sprintf("set_component:%d", typeID),
		run: func(pc *playbackCtx) error {
			e, err := resolve(pc, t)
			if err != nil {
				return err
			}
			if !pc.world.Index.IsAlive(e) {
				return ecs.ErrDeadEntity
			}
			return store.Set(pc.world, typeID, e, value, pc.tick)
		},
	})
	b.mu.Unlock()
}

// RemoveComponent records a component removal.
func RemoveComponent[T any](b *Buffer, typeID int, t Target) {
	b.mu.Lock()
	b.ops = append(b.ops, op{
		label: fmt.Sprintf("remove_component:%d", typeID),
		run: func(pc *playbackCtx) error {
			e, err := resolve(pc, t)
			if err != nil {
				return err
			}
			if !pc.world.Index.IsAlive(e) {
				return ecs.ErrDeadEntity
			}
			return store.Remove[T](pc.world, typeID, e, pc.tick)
		},
	})
	b.mu.Unlock()
}

// PublishEvent records an event publish. It lands in the current frame's
// bus at playback time (spec section 9, decision 3) — not deferred to the
// next frame.
func PublishEvent[T any](b *Buffer, typeID int, value T) {
	b.mu.Lock()
	b.ops = append(b.ops, op{
		label: fmt.Sprintf("publish_event:%d", typeID),
		run: func(pc *playbackCtx) error {
			return event.Publish(pc.bus, typeID, value)
		},
	})
	b.mu.Unlock()
}

// Merge appends other's recorded operations onto b and leaves other empty,
// the fan-in step after several workers each recorded into their own
// buffer during a frame-synced-parallel or asynchronous dispatch.
func (b *Buffer) Merge(other *Buffer) {
	other.mu.Lock()
	ops := other.ops
	other.ops = nil
	other.mu.Unlock()

	b.mu.Lock()
	b.ops = append(b.ops, ops...)
	b.mu.Unlock()
}

// Reset empties the buffer so it can be reused next frame without
// reallocating its backing slice.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.ops = b.ops[:0]
	b.mu.Unlock()
}

// Len returns the number of recorded, not-yet-played-back operations.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

func resolve(pc *playbackCtx, t Target) (ecs.Entity, error) {
	if !t.isTemp {
		return t.real, nil
	}
	e, ok := pc.temps[t.temp]
	if !ok {
		return 0, ErrUnresolvedTemp
	}
	return e, nil
}

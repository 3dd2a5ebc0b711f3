package event

import "sync"

// Bus holds the current frame's per-type publish queues. Modules publish
// into it during a frame via Publish; the kernel retires it into an
// immutable FrameEventBatch at frame boundary via Retire.
type Bus struct {
	mu     sync.RWMutex
	queues map[int]Queue
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{queues: make(map[int]Queue)}
}

// RegisterType creates the current-frame queue for an event type id. Event
// type ids come from the same registry component types use (package ecs);
// the bus only cares that the id is unique.
func RegisterType[T any](b *Bus, typeID int) *TypedQueue[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := NewTypedQueue[T](typeID)
	b.queues[typeID] = q
	return q
}

func (b *Bus) queue(typeID int) (Queue, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.queues[typeID]
	if !ok {
		return nil, ErrUnknownType
	}
	return q, nil
}

// Publish appends an event value to typeID's current-frame queue.
func Publish[T any](b *Bus, typeID int, value T) error {
	q, err := b.queue(typeID)
	if err != nil {
		return err
	}
	tq, ok := q.(*TypedQueue[T])
	if !ok {
		return ErrTypeMismatch
	}
	tq.Publish(value)
	return nil
}

// Retire snapshots every type's current-frame queue into a FrameEventBatch
// stamped with tick, clears the queues, and returns the batch. Called once
// per frame by the kernel after modules have run (spec section 5, phase
// "retire frame").
func (b *Bus) Retire(tick uint64, id BatchID) FrameEventBatch {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := make(map[int][]any, len(b.queues))
	for typeID, q := range b.queues {
		if n := q.Len(); n > 0 {
			events[typeID] = q.snapshot()
		}
		q.Clear()
	}
	return FrameEventBatch{ID: id, FrameTick: tick, Events: events}
}

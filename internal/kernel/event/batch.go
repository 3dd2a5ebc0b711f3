package event

import "github.com/google/uuid"

// BatchID uniquely identifies a retired FrameEventBatch, the same role
// chunk.ChunkID plays for sealed chunks in the teacher codebase (a
// UUID-stamped identity independent of position in any history buffer).
type BatchID uuid.UUID

// NewBatchID mints a fresh, random batch id.
func NewBatchID() BatchID { return BatchID(uuid.New()) }

func (id BatchID) String() string { return uuid.UUID(id).String() }

// FrameEventBatch is the immutable record of every event published during
// one frame, keyed by event type id. Once retired it is never mutated;
// replicas read it concurrently from the accumulator's history.
type FrameEventBatch struct {
	ID        BatchID
	FrameTick uint64
	Events    map[int][]any
}

// Consume extracts typeID's events from a batch as []T. Returns an empty,
// non-nil slice if the batch has no events of that type (nothing was
// published that frame — not an error).
func Consume[T any](b FrameEventBatch, typeID int) ([]T, error) {
	raw, ok := b.Events[typeID]
	if !ok {
		return []T{}, nil
	}
	out := make([]T, len(raw))
	for i, v := range raw {
		t, ok := v.(T)
		if !ok {
			return nil, ErrTypeMismatch
		}
		out[i] = t
	}
	return out, nil
}

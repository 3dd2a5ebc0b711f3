// Package event implements the per-type event bus, frame retirement into
// immutable FrameEventBatch values, and the FIFO history accumulator
// described in spec sections 4.4 and 4.6: publishers append to the
// current frame's queues during a frame, the kernel retires those queues
// into a batch at frame boundary, and replicas pull retired batches at
// their own pace via Accumulator.Flush.
package event

import "errors"

var (
	// ErrUnknownType is returned when an event type id has no queue
	// registered for it in this Bus.
	ErrUnknownType = errors.New("event: unknown event type")
	// ErrTypeMismatch is returned when a typed accessor's T does not match
	// how the type id was registered, or a consumed value can't be
	// asserted back to T.
	ErrTypeMismatch = errors.New("event: type mismatch")
)

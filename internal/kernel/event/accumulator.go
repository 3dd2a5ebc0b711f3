package event

import "sync"

// Accumulator is the FIFO history of retired frame batches a replica (the
// Shared/convoy provider's bus, or a remote observer) drains at its own
// pace via Flush. It bounds memory with maxHistory the way the teacher's
// CountRetentionPolicy bounds a vault's sealed-chunk count: push past the
// cap evicts the oldest entries rather than growing without limit.
//
// minHistory is a floor Compact will not cut below. Push evicts only on a
// max-history overflow; Compact, which the kernel runs on its periodic
// retention sweep, trims everything above minHistory. Neither path looks
// at consumer cursors, so either can drop batches a consumer has not yet
// flushed; Flush then reports DataLossFlag for any consumer whose cursor
// falls behind the new oldest retained frame (spec section 9, decision 1).
type Accumulator struct {
	mu         sync.Mutex
	minHistory int
	maxHistory int
	batches    []FrameEventBatch
}

// NewAccumulator creates an accumulator bounded to [minHistory, maxHistory]
// retained frames. maxHistory <= 0 disables the cap (unbounded history);
// minHistory is clamped to maxHistory when both are positive.
func NewAccumulator(minHistory, maxHistory int) *Accumulator {
	if maxHistory > 0 && minHistory > maxHistory {
		minHistory = maxHistory
	}
	return &Accumulator{minHistory: minHistory, maxHistory: maxHistory}
}

// Push appends a newly retired batch, evicting the oldest batch if the
// history now exceeds maxHistory. Returns true if an eviction happened
// (a signal the kernel can fold into DataLossFlag for late consumers).
func (a *Accumulator) Push(b FrameEventBatch) (evicted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches = append(a.batches, b)
	if a.maxHistory > 0 && len(a.batches) > a.maxHistory {
		a.batches = a.batches[1:]
		return true
	}
	return false
}

// Compact trims history down to minHistory, never below it, whatever any
// consumer's cursor is. The kernel calls it from the scheduler's periodic
// compaction sweep. Returns the number of batches dropped.
func (a *Accumulator) Compact() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.batches) <= a.minHistory {
		return 0
	}
	drop := len(a.batches) - a.minHistory
	a.batches = a.batches[drop:]
	return drop
}

// Flush returns every retained batch with FrameTick > lastSeenTick, in
// ascending tick order, the new cursor to pass on the next call, and
// whether a gap exists between lastSeenTick and the oldest retained batch
// (meaning frames were evicted before this consumer saw them — spec
// section 9, decision 1's DataLossFlag, set without invalidating the
// consumer's lease).
func (a *Accumulator) Flush(lastSeenTick uint64) (batches []FrameEventBatch, newCursor uint64, dataLoss bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	newCursor = lastSeenTick
	if len(a.batches) > 0 && a.batches[0].FrameTick > lastSeenTick+1 {
		dataLoss = true
	}
	for _, b := range a.batches {
		if b.FrameTick > lastSeenTick {
			batches = append(batches, b)
			newCursor = b.FrameTick
		}
	}
	return batches, newCursor, dataLoss
}

// Len returns the number of batches currently retained.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batches)
}

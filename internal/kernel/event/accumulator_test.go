package event

import "testing"

func mkBatch(tick uint64) FrameEventBatch {
	return FrameEventBatch{ID: NewBatchID(), FrameTick: tick, Events: map[int][]any{}}
}

func TestAccumulatorFlushReturnsNewBatches(t *testing.T) {
	a := NewAccumulator(2, 10)
	a.Push(mkBatch(1))
	a.Push(mkBatch(2))
	a.Push(mkBatch(3))

	got, cursor, dataLoss := a.Flush(1)
	if dataLoss {
		t.Fatal("unexpected data loss signal")
	}
	if cursor != 3 {
		t.Fatalf("cursor = %d, want 3", cursor)
	}
	if len(got) != 2 || got[0].FrameTick != 2 || got[1].FrameTick != 3 {
		t.Fatalf("Flush = %+v", got)
	}
}

func TestAccumulatorEvictsOldestBeyondMax(t *testing.T) {
	a := NewAccumulator(1, 2)
	a.Push(mkBatch(1))
	a.Push(mkBatch(2))
	if evicted := a.Push(mkBatch(3)); !evicted {
		t.Fatal("expected eviction on third push with max=2")
	}
	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}

	// A slow consumer whose cursor is behind the evicted frame should see
	// the data-loss signal.
	_, _, dataLoss := a.Flush(0)
	if !dataLoss {
		t.Fatal("expected data loss for a consumer behind the evicted frame")
	}
}

func TestAccumulatorFlushNoGapNoDataLoss(t *testing.T) {
	a := NewAccumulator(1, 10)
	a.Push(mkBatch(1))
	_, _, dataLoss := a.Flush(0)
	if dataLoss {
		t.Fatal("unexpected data loss when no eviction has occurred")
	}
}

func TestAccumulatorCompactRespectsMinHistory(t *testing.T) {
	a := NewAccumulator(2, 100)
	for tick := uint64(1); tick <= 5; tick++ {
		a.Push(mkBatch(tick))
	}
	dropped := a.Compact()
	if dropped != 3 {
		t.Fatalf("dropped = %d, want 3", dropped)
	}
	if a.Len() != 2 {
		t.Fatalf("Len after Compact = %d, want 2", a.Len())
	}
	if dropped := a.Compact(); dropped != 0 {
		t.Fatalf("second Compact dropped = %d, want 0", dropped)
	}
}

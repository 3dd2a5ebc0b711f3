package store

import "testing"

type vec3 struct{ X, Y, Z float64 }

func TestColumnSetGetRemove(t *testing.T) {
	c := NewColumn[vec3](0, 0, 4)
	c.Set(5, vec3{1, 2, 3})
	v, ok := c.Get(5)
	if !ok || v != (vec3{1, 2, 3}) {
		t.Fatalf("Get(5) = %v, %v", v, ok)
	}
	if _, ok := c.Get(6); ok {
		t.Fatal("slot 6 should be absent")
	}
	if !c.Remove(5) {
		t.Fatal("Remove(5) should report a removal")
	}
	if _, ok := c.Get(5); ok {
		t.Fatal("slot 5 should be absent after Remove")
	}
	if c.Remove(5) {
		t.Fatal("second Remove should report nothing removed")
	}
}

func TestColumnChunkVersionBumpsOnWrite(t *testing.T) {
	c := NewColumn[vec3](0, 0, 4)
	if v := c.ChunkVersion(0); v != 0 {
		t.Fatalf("fresh chunk version = %d, want 0", v)
	}
	c.Set(0, vec3{})
	if v := c.ChunkVersion(0); v != 1 {
		t.Fatalf("version after one write = %d, want 1", v)
	}
	c.Set(1, vec3{})
	if v := c.ChunkVersion(0); v != 2 {
		t.Fatalf("version after two writes = %d, want 2", v)
	}
}

func TestColumnSyncFromCopiesOnlyDirtyChunks(t *testing.T) {
	src := NewColumn[vec3](0, 0, 4)
	dst := NewColumn[vec3](0, 0, 4)

	src.Set(0, vec3{1, 0, 0})  // chunk 0
	src.Set(10, vec3{0, 1, 0}) // chunk 2 (10/4=2)

	touched, err := dst.SyncFrom(src)
	if err != nil {
		t.Fatalf("SyncFrom: %v", err)
	}
	if touched != 2 {
		t.Fatalf("touched = %d, want 2 (chunks 0 and 2 differ; chunk 1 is unallocated at version 0 on both sides)", touched)
	}
	if v, ok := dst.Get(0); !ok || v != (vec3{1, 0, 0}) {
		t.Fatalf("dst.Get(0) = %v, %v", v, ok)
	}
	if v, ok := dst.Get(10); !ok || v != (vec3{0, 1, 0}) {
		t.Fatalf("dst.Get(10) = %v, %v", v, ok)
	}

	// A second sync with no further writes should copy nothing.
	touched, err = dst.SyncFrom(src)
	if err != nil {
		t.Fatalf("SyncFrom (idempotent): %v", err)
	}
	if touched != 0 {
		t.Fatalf("idempotent SyncFrom touched = %d, want 0", touched)
	}

	// Dirty only chunk 0; sync should touch exactly that chunk.
	src.Set(1, vec3{9, 9, 9})
	touched, err = dst.SyncFrom(src)
	if err != nil {
		t.Fatalf("SyncFrom (one dirty chunk): %v", err)
	}
	if touched != 1 {
		t.Fatalf("touched = %d, want 1", touched)
	}
	if v, ok := dst.Get(1); !ok || v != (vec3{9, 9, 9}) {
		t.Fatalf("dst.Get(1) = %v, %v", v, ok)
	}
}

func TestColumnSoftClearRetainsBuffersForReuse(t *testing.T) {
	c := NewColumn[vec3](0, 0, 4)
	c.Set(0, vec3{1, 1, 1})
	c.Set(4, vec3{2, 2, 2})
	if c.NumChunks() != 2 {
		t.Fatalf("NumChunks = %d, want 2", c.NumChunks())
	}
	c.SoftClear()
	if c.NumChunks() != 0 {
		t.Fatalf("NumChunks after SoftClear = %d, want 0", c.NumChunks())
	}
	if len(c.free) != 2 {
		t.Fatalf("free list after SoftClear = %d, want 2", len(c.free))
	}
	// Reuse should pull from the free list rather than allocate fresh.
	c.Set(0, vec3{3, 3, 3})
	if len(c.free) != 1 {
		t.Fatalf("free list after reuse = %d, want 1", len(c.free))
	}
	if v, ok := c.Get(0); !ok || v != (vec3{3, 3, 3}) {
		t.Fatalf("Get(0) after reuse = %v, %v", v, ok)
	}
	if _, ok := c.Get(4); ok {
		t.Fatal("slot 4 should have been cleared by SoftClear")
	}
}

func TestColumnSyncFromTierMismatch(t *testing.T) {
	src := NewColumn[vec3](0, 0, 4)
	dst := NewColumn[int32](1, 0, 4)
	if _, err := dst.SyncFrom(src); err != ErrTierMismatch {
		t.Fatalf("got %v, want ErrTierMismatch", err)
	}
}

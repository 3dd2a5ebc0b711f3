package store

import (
	"testing"

	"simkernel/internal/kernel/ecs"
)

type position struct{ X, Y float64 }
type label struct{ Name string }

func TestWorldSetGetRoundTrip(t *testing.T) {
	w := NewWorld(4)
	posID, err := RegisterBlittable[position](w, "Position")
	if err != nil {
		t.Fatalf("RegisterBlittable: %v", err)
	}
	e := w.CreateEntity()
	if err := Set(w, posID, e, position{1, 2}, 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := Get[position](w, posID, e)
	if err != nil || !ok || v != (position{1, 2}) {
		t.Fatalf("Get = %v, %v, %v", v, ok, err)
	}
	if w.LastWriteTick(posID) != 10 {
		t.Fatalf("LastWriteTick = %d, want 10", w.LastWriteTick(posID))
	}
}

func TestWorldSetOnDeadEntityFails(t *testing.T) {
	w := NewWorld(4)
	posID, _ := RegisterBlittable[position](w, "Position")
	e := w.CreateEntity()
	if err := w.DestroyEntity(e); err != nil {
		t.Fatalf("DestroyEntity: %v", err)
	}
	if err := Set(w, posID, e, position{1, 2}, 1); err != ecs.ErrDeadEntity {
		t.Fatalf("got %v, want ErrDeadEntity", err)
	}
}

func TestWorldDestroyEntityClearsAllComponents(t *testing.T) {
	w := NewWorld(4)
	posID, _ := RegisterBlittable[position](w, "Position")
	labelID, _ := RegisterManaged[label](w, "Label")

	e := w.CreateEntity()
	_ = Set(w, posID, e, position{1, 1}, 1)
	_ = Set(w, labelID, e, label{Name: "hero"}, 1)

	if err := w.DestroyEntity(e); err != nil {
		t.Fatalf("DestroyEntity: %v", err)
	}

	if _, ok, _ := Get[position](w, posID, e); ok {
		t.Fatal("position should be cleared after destroy")
	}
	if _, ok, _ := Get[label](w, labelID, e); ok {
		t.Fatal("label should be cleared after destroy")
	}
}

func TestWorldGetWrongTypeReturnsTierMismatch(t *testing.T) {
	w := NewWorld(4)
	posID, _ := RegisterBlittable[position](w, "Position")
	e := w.CreateEntity()
	_ = Set(w, posID, e, position{1, 1}, 1)
	if _, _, err := Get[label](w, posID, e); err != ErrTierMismatch {
		t.Fatalf("got %v, want ErrTierMismatch", err)
	}
}

func TestWorldQueryByMask(t *testing.T) {
	w := NewWorld(4)
	posID, _ := RegisterBlittable[position](w, "Position")
	labelID, _ := RegisterManaged[label](w, "Label")

	both := w.CreateEntity()
	_ = Set(w, posID, both, position{0, 0}, 1)
	_ = Set(w, labelID, both, label{Name: "both"}, 1)

	onlyPos := w.CreateEntity()
	_ = Set(w, posID, onlyPos, position{9, 9}, 1)

	mask := ecs.NewBitmask(posID, labelID)
	got := w.Query(mask).Collect()
	if len(got) != 1 || got[0] != both {
		t.Fatalf("Query(pos&label) = %v, want [%v]", got, both)
	}

	posOnlyMask := ecs.NewBitmask(posID)
	got = w.Query(posOnlyMask).Collect()
	if len(got) != 2 {
		t.Fatalf("Query(pos) = %v, want 2 entities", got)
	}
}

func TestWorldQuerySkipsDeadEntitiesInMatchingChunk(t *testing.T) {
	w := NewWorld(4)
	posID, _ := RegisterBlittable[position](w, "Position")

	e1 := w.CreateEntity()
	e2 := w.CreateEntity()
	_ = Set(w, posID, e1, position{1, 1}, 1)
	_ = Set(w, posID, e2, position{2, 2}, 1)

	if err := w.DestroyEntity(e1); err != nil {
		t.Fatalf("DestroyEntity: %v", err)
	}

	got := w.Query(ecs.NewBitmask(posID)).Collect()
	if len(got) != 1 || got[0] != e2 {
		t.Fatalf("Query after destroy = %v, want [%v]", got, e2)
	}
}

package view

import (
	"testing"

	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/store"
)

type hp struct{ Value int32 }
type died struct{ Who uint32 }

func TestViewReadsComponentsAndEvents(t *testing.T) {
	w := store.NewWorld(4)
	hpID, err := store.RegisterBlittable[hp](w, "HP")
	if err != nil {
		t.Fatalf("RegisterBlittable: %v", err)
	}
	e := w.CreateEntity()
	if err := store.Set(w, hpID, e, hp{Value: 42}, 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	diedID := 7
	batch := event.FrameEventBatch{FrameTick: 1, Events: map[int][]any{diedID: {died{Who: e.ID()}}}}

	v := New(w, 1, 0.1, []event.FrameEventBatch{batch}, false)

	if !v.IsAlive(e) {
		t.Fatal("entity should be alive in the view")
	}
	if v.Tick() != 1 {
		t.Fatalf("Tick() = %d, want 1", v.Tick())
	}

	got, ok, err := GetBlittable[hp](v, hpID, e)
	if err != nil || !ok || got.Value != 42 {
		t.Fatalf("GetBlittable = %+v, %v, %v", got, ok, err)
	}

	events, err := ConsumeEvents[died](v, diedID)
	if err != nil {
		t.Fatalf("ConsumeEvents: %v", err)
	}
	if len(events) != 1 || events[0].Who != e.ID() {
		t.Fatalf("ConsumeEvents = %+v", events)
	}
}

func TestViewDeadEntityReadsAbsent(t *testing.T) {
	w := store.NewWorld(4)
	hpID, _ := store.RegisterBlittable[hp](w, "HP")
	e := w.CreateEntity()
	_ = store.Set(w, hpID, e, hp{Value: 1}, 1)
	if err := w.DestroyEntity(e); err != nil {
		t.Fatalf("DestroyEntity: %v", err)
	}

	v := New(w, 2, 0.2, nil, false)
	if v.IsAlive(e) {
		t.Fatal("destroyed entity should read dead in the view")
	}
	if _, ok, _ := GetBlittable[hp](v, hpID, e); ok {
		t.Fatal("destroyed entity's component should read absent")
	}
}

func TestViewQueryByMask(t *testing.T) {
	w := store.NewWorld(4)
	hpID, _ := store.RegisterBlittable[hp](w, "HP")
	e1 := w.CreateEntity()
	_ = store.Set(w, hpID, e1, hp{Value: 5}, 1)

	v := New(w, 1, 0.1, nil, false)
	got := v.Query(ecs.NewBitmask(hpID)).Collect()
	if len(got) != 1 || got[0] != e1 {
		t.Fatalf("Query = %v, want [%v]", got, e1)
	}
}

package cmdbuffer

import (
	"testing"

	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/store"
)

type hp struct{ Value int32 }
type spawned struct{ At uint32 }

func newWorld(t *testing.T) (*store.World, int) {
	t.Helper()
	w := store.NewWorld(4)
	id, err := store.RegisterBlittable[hp](w, "HP")
	if err != nil {
		t.Fatalf("RegisterBlittable: %v", err)
	}
	return w, id
}

func TestPlaybackCreateAndSetViaTempID(t *testing.T) {
	w, hpID := newWorld(t)
	bus := event.NewBus()

	b := New()
	target := b.CreateEntity()
	SetComponent(b, hpID, target, hp{Value: 10})

	res := Playback(b, w, bus, 1)
	if res.Failed != 0 {
		t.Fatalf("Failed = %d, errors = %v", res.Failed, res.Errors)
	}
	if res.Applied != 2 {
		t.Fatalf("Applied = %d, want 2", res.Applied)
	}
	if len(res.Temps) != 1 {
		t.Fatalf("Temps = %v, want 1 entry", res.Temps)
	}
	var real ecs.Entity
	for _, e := range res.Temps {
		real = e
	}
	v, ok, err := store.Get[hp](w, hpID, real)
	if err != nil || !ok || v.Value != 10 {
		t.Fatalf("Get = %+v, %v, %v", v, ok, err)
	}
}

func TestPlaybackStaleTargetFailsSoftWithoutAbortingBuffer(t *testing.T) {
	w, hpID := newWorld(t)
	bus := event.NewBus()

	e := w.CreateEntity()
	if err := w.DestroyEntity(e); err != nil {
		t.Fatalf("DestroyEntity: %v", err)
	}

	b := New()
	SetComponent(b, hpID, Real(e), hp{Value: 99}) // stale: e is dead
	second := b.CreateEntity()
	SetComponent(b, hpID, second, hp{Value: 5}) // should still apply

	res := Playback(b, w, bus, 1)
	if res.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", res.Failed)
	}
	if res.Applied != 2 {
		t.Fatalf("Applied = %d, want 2 (create + second set)", res.Applied)
	}
	var real ecs.Entity
	for _, ent := range res.Temps {
		real = ent
	}
	v, ok, _ := store.Get[hp](w, hpID, real)
	if !ok || v.Value != 5 {
		t.Fatalf("second entity's component = %+v, %v", v, ok)
	}
}

func TestPlaybackPublishEventLandsInCurrentFrameBus(t *testing.T) {
	w, _ := newWorld(t)
	bus := event.NewBus()
	spawnID := 1
	event.RegisterType[spawned](bus, spawnID)

	b := New()
	PublishEvent(b, spawnID, spawned{At: 7})

	res := Playback(b, w, bus, 3)
	if res.Failed != 0 {
		t.Fatalf("Failed = %d", res.Failed)
	}
	batch := bus.Retire(3, event.NewBatchID())
	got, err := event.Consume[spawned](batch, spawnID)
	if err != nil || len(got) != 1 || got[0].At != 7 {
		t.Fatalf("Consume = %+v, %v", got, err)
	}
}

func TestPlaybackUnresolvedTempFails(t *testing.T) {
	w, hpID := newWorld(t)
	bus := event.NewBus()

	b := New()
	SetComponent(b, hpID, tempTarget(999), hp{Value: 1})
	res := Playback(b, w, bus, 1)
	if res.Failed != 1 || res.Applied != 0 {
		t.Fatalf("res = %+v", res)
	}
}

func TestBufferMergeCombinesOperationsInOrder(t *testing.T) {
	w, hpID := newWorld(t)
	bus := event.NewBus()

	main := New()
	worker := New()

	e := w.CreateEntity()
	SetComponent(worker, hpID, Real(e), hp{Value: 42})
	main.Merge(worker)

	if worker.Len() != 0 {
		t.Fatalf("worker.Len() after Merge = %d, want 0", worker.Len())
	}
	if main.Len() != 1 {
		t.Fatalf("main.Len() after Merge = %d, want 1", main.Len())
	}

	res := Playback(main, w, bus, 1)
	if res.Failed != 0 || res.Applied != 1 {
		t.Fatalf("res = %+v", res)
	}
}

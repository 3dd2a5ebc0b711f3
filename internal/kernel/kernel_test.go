package kernel

import (
	"testing"
	"time"

	"simkernel/internal/kernel/cmdbuffer"
	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/scheduler"
	"simkernel/internal/kernel/store"
	"simkernel/internal/kernel/view"
)

type counter struct{ N int32 }

func registerCounter(w *store.World, bus *event.Bus) error {
	_, err := store.RegisterBlittable[counter](w, "counter")
	return err
}

func counterTypeID(t *testing.T, k *Kernel) int {
	t.Helper()
	id, ok := k.Live().Registry.Lookup("counter")
	if !ok {
		t.Fatal("counter type was not registered")
	}
	return id
}

func TestRunFrameDrivesSynchronousSystem(t *testing.T) {
	k, err := New(Config{Clock: func() time.Time { return time.Unix(0, 0) }}, registerCounter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	typeID := counterTypeID(t, k)
	e := k.Live().CreateEntity()
	if err := store.Set(k.Live(), typeID, e, counter{N: 0}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	err = k.RegisterSystem(scheduler.Input, "increment", func(world *store.World, tick uint64, dt float64) error {
		v, _, err := store.Get[counter](world, typeID, e)
		if err != nil {
			return err
		}
		v.N++
		return store.Set(world, typeID, e, v, tick)
	}, nil, nil)
	if err != nil {
		t.Fatalf("RegisterSystem: %v", err)
	}

	if err := k.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer k.Stop()

	for i := 0; i < 3; i++ {
		if err := k.RunFrame(1.0 / 60); err != nil {
			t.Fatalf("RunFrame %d: %v", i, err)
		}
	}

	got, _, err := store.Get[counter](k.Live(), typeID, e)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.N != 3 {
		t.Fatalf("counter = %d, want 3", got.N)
	}
	if k.Tick() != 3 {
		t.Fatalf("Tick() = %d, want 3", k.Tick())
	}
}

func TestRunFrameDispatchesAndHarvestsAsyncModule(t *testing.T) {
	k, err := New(Config{Clock: func() time.Time { return time.Unix(0, 0) }}, registerCounter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	typeID := counterTypeID(t, k)
	e := k.Live().CreateEntity()

	ranCh := make(chan struct{}, 8)
	spec := scheduler.ModuleSpec{
		Name:               "async-counter",
		FrequencyHz:        1000,
		ExecutionMode:      scheduler.Asynchronous,
		DataStrategy:       scheduler.DataSoD,
		RequiredComponents: ecs.NewBitmask(typeID),
		Run: func(v *view.View, buf *cmdbuffer.Buffer) error {
			cmdbuffer.SetComponent[counter](buf, typeID, cmdbuffer.Real(e), counter{N: 99})
			ranCh <- struct{}{}
			return nil
		},
	}
	if _, err := k.RegisterModule(spec); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}
	if err := k.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer k.Stop()

	if err := k.RunFrame(1.0 / 60); err != nil {
		t.Fatalf("RunFrame 1: %v", err)
	}
	select {
	case <-ranCh:
	case <-time.After(5 * time.Second):
		t.Fatal("async module never ran")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := k.RunFrame(1.0 / 60); err != nil {
			t.Fatalf("RunFrame harvest: %v", err)
		}
		got, ok, err := store.Get[counter](k.Live(), typeID, e)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok && got.N == 99 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("async module result was never harvested onto Live")
		}
	}
}

func TestStatsReportsRegisteredModules(t *testing.T) {
	k, err := New(Config{}, registerCounter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := k.RegisterModule(scheduler.ModuleSpec{
		Name:          "noop",
		ExecutionMode: scheduler.Asynchronous,
		DataStrategy:  scheduler.DataSoD,
		Run:           func(*view.View, *cmdbuffer.Buffer) error { return nil },
	})
	if err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}
	if err := k.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer k.Stop()

	stats := k.Stats()
	if len(stats.Modules) != 1 || stats.Modules[0].ID != id {
		t.Fatalf("Stats().Modules = %+v, want one entry for %v", stats.Modules, id)
	}
}

func TestConfigDefaultsMinAndMaxHistoryFrames(t *testing.T) {
	cfg := Config{FrameRateHz: 60}.withDefaults()
	if cfg.MinHistoryFrames != 180 {
		t.Fatalf("MinHistoryFrames = %d, want 180 (60Hz * 3s)", cfg.MinHistoryFrames)
	}
	if cfg.MaxHistoryFrames != cfg.MinHistoryFrames*4 {
		t.Fatalf("MaxHistoryFrames = %d, want %d", cfg.MaxHistoryFrames, cfg.MinHistoryFrames*4)
	}
}

func TestEventsSinceReflectsRetiredBatches(t *testing.T) {
	k, err := New(Config{}, registerCounter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	damageID := 5
	event.RegisterType[int](k.Bus(), damageID)
	if err := event.Publish(k.Bus(), damageID, 7); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	batch := k.Bus().Retire(1, event.NewBatchID())
	k.acc.Push(batch)

	if !k.eventsSince(damageID, 0) {
		t.Fatal("eventsSince should see the publish retired into frame 1")
	}
	if k.eventsSince(damageID, 1) {
		t.Fatal("eventsSince should not see a publish at or before the cursor tick")
	}
}

package scheduler

import (
	"testing"
	"time"

	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/store"
)

func TestIsDueTimerClause(t *testing.T) {
	w := store.NewWorld(0)
	st := &moduleState{}
	spec := ModuleSpec{FrequencyHz: 10}
	limiter := newLimiter(spec.FrequencyHz)

	base := time.Unix(0, 0)
	dc := dueContext{now: base, world: w}
	if !isDue(spec, limiter, st, dc) {
		t.Fatal("first check should be due: fresh limiter starts with a full bucket")
	}
	dc.now = base.Add(10 * time.Millisecond)
	if isDue(spec, limiter, st, dc) {
		t.Fatal("immediately after consuming the token, should not be due again")
	}
	dc.now = base.Add(200 * time.Millisecond)
	if !isDue(spec, limiter, st, dc) {
		t.Fatal("after the refill interval elapses, should be due again")
	}
}

func TestIsDueComponentClause(t *testing.T) {
	w := store.NewWorld(0)
	typeID, err := store.RegisterBlittable[int](w, "health")
	if err != nil {
		t.Fatalf("RegisterBlittable: %v", err)
	}
	e := w.CreateEntity()
	if err := store.Set(w, typeID, e, 10, 5); err != nil {
		t.Fatalf("Set: %v", err)
	}

	spec := ModuleSpec{WatchedComponents: ecs.NewBitmask(typeID)}
	st := &moduleState{LastRunTick: 4}
	dc := dueContext{now: time.Now(), world: w}
	if !isDue(spec, nil, st, dc) {
		t.Fatal("a write at tick 5 after last run at tick 4 should make the module due")
	}

	st.LastRunTick = 5
	if isDue(spec, nil, st, dc) {
		t.Fatal("a write at tick 5 should not re-trigger a module that already ran at tick 5")
	}
}

func TestIsDueEventClause(t *testing.T) {
	w := store.NewWorld(0)
	spec := ModuleSpec{WatchedEvents: ecs.NewBitmask(7)}
	st := &moduleState{LastRunTick: 2}
	called := false
	dc := dueContext{
		now:   time.Now(),
		world: w,
		eventsSince: func(typeID int, sinceTick uint64) bool {
			called = true
			return typeID == 7 && sinceTick == 2
		},
	}
	if !isDue(spec, nil, st, dc) {
		t.Fatal("eventsSince reporting a landed publish should make the module due")
	}
	if !called {
		t.Fatal("eventsSince was never consulted")
	}
}

func TestIsDueNoneOfTheClausesFire(t *testing.T) {
	w := store.NewWorld(0)
	spec := ModuleSpec{}
	st := &moduleState{}
	dc := dueContext{now: time.Now(), world: w}
	if isDue(spec, nil, st, dc) {
		t.Fatal("a module with no timer/watched component/watched event should never be due")
	}
}

func TestNewLimiterNilForZeroFrequency(t *testing.T) {
	if newLimiter(0) != nil {
		t.Fatal("newLimiter(0) should be nil: no timer clause")
	}
	if newLimiter(-1) != nil {
		t.Fatal("newLimiter(-1) should be nil: no timer clause")
	}
	if newLimiter(1) == nil {
		t.Fatal("newLimiter(1) should return a limiter")
	}
}

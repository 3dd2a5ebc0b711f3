package scheduler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"simkernel/internal/kernel/cmdbuffer"
	"simkernel/internal/kernel/view"
)

// moduleState is the per-module runtime state of spec section 4.6
// ("Per-module state"): last_run_tick, circuit_state, failure_count are
// carried on CircuitSnapshot/LastRunTick; current_task_handle and
// last_run_view_lease are the done channel and leased View below.
type moduleState struct {
	LastRunTick uint64
	Circuit     CircuitSnapshot

	// Running is true from dispatch until Harvest observes completion (or
	// discards a late result). Gates against re-dispatching a module that
	// already holds a lease, and against a half-open trial overlapping a
	// second concurrent trial.
	Running bool

	buf      *cmdbuffer.Buffer
	lease    *view.View
	done     chan struct{}
	timedOut bool
	err      error
}

// moduleEntry bundles a module's immutable spec with its mutable state and
// the timer-clause rate limiter derived from its frequency at registration
// time.
type moduleEntry struct {
	id      ModuleID
	spec    ModuleSpec
	limiter *rate.Limiter

	// onOpen is invoked (outside e.mu) the instant a failure transitions
	// this module's breaker into CircuitOpen, so the Scheduler can arrange
	// the reset_timeout half-open trial via its gocron job.
	onOpen func(*moduleEntry)

	mu    sync.Mutex
	state moduleState
}

func newModuleEntry(id ModuleID, spec ModuleSpec, onOpen func(*moduleEntry)) *moduleEntry {
	return &moduleEntry{
		id:      id,
		spec:    spec,
		limiter: newLimiter(spec.FrequencyHz),
		onOpen:  onOpen,
	}
}

// tryBeginDispatch atomically checks due+permit+idle and, if all hold,
// marks the entry Running and returns true. Returns false without mutating
// state otherwise, so a failed check never consumes a timer token except
// through isDue's own AllowN side effect on the (a) clause.
func (e *moduleEntry) tryBeginDispatch(dc dueContext) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := &e.state
	if st.Running {
		return false
	}
	if !st.Circuit.Permits() {
		return false
	}
	if !isDue(e.spec, e.limiter, st, dc) {
		return false
	}
	st.Running = true
	st.timedOut = false
	st.err = nil
	st.done = make(chan struct{})
	return true
}

func (e *moduleEntry) beginRun(buf *cmdbuffer.Buffer, lease *view.View) chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.buf = buf
	e.state.lease = lease
	return e.state.done
}

func (e *moduleEntry) markTimedOut(threshold int) {
	e.mu.Lock()
	prev := e.state.Circuit.State
	e.state.timedOut = true
	e.state.Circuit = e.state.Circuit.RecordFailure(threshold)
	opened := prev != CircuitOpen && e.state.Circuit.State == CircuitOpen
	e.mu.Unlock()
	if opened && e.onOpen != nil {
		e.onOpen(e)
	}
}

func (e *moduleEntry) finishRun(err error) {
	e.mu.Lock()
	done := e.state.done
	e.state.err = err
	e.mu.Unlock()
	close(done)
}

// pollHarvest returns the snapshot needed to harvest this module if its
// task has completed, or ok=false if it is still running.
type harvestSnapshot struct {
	buf      *cmdbuffer.Buffer
	lease    *view.View
	err      error
	timedOut bool
}

func (e *moduleEntry) pollHarvest() (harvestSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Running {
		return harvestSnapshot{}, false
	}
	select {
	case <-e.state.done:
	default:
		return harvestSnapshot{}, false
	}
	snap := harvestSnapshot{buf: e.state.buf, lease: e.state.lease, err: e.state.err, timedOut: e.state.timedOut}
	return snap, true
}

// completeHarvest records the outcome of a harvested run (success or
// failure) on the breaker and resets the entry to idle. For a run that
// timed out nothing further is recorded, since the timeout already
// recorded its failure at the moment it fired.
func (e *moduleEntry) completeHarvest(tick uint64, ok bool) {
	e.mu.Lock()
	opened := false
	if !e.state.timedOut {
		if ok {
			e.state.Circuit = e.state.Circuit.RecordSuccess()
		} else {
			prev := e.state.Circuit.State
			e.state.Circuit = e.state.Circuit.RecordFailure(e.spec.CircuitBreakerThreshold)
			opened = prev != CircuitOpen && e.state.Circuit.State == CircuitOpen
		}
	}
	e.state.LastRunTick = tick
	e.state.Running = false
	e.state.buf = nil
	e.state.lease = nil
	e.state.done = nil
	e.state.timedOut = false
	e.state.err = nil
	e.mu.Unlock()
	if opened && e.onOpen != nil {
		e.onOpen(e)
	}
}

func (e *moduleEntry) circuitSnapshot() CircuitSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Circuit
}

func (e *moduleEntry) setHalfOpen() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Circuit = e.state.Circuit.HalfOpen()
}

func (e *moduleEntry) lastRunTick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.LastRunTick
}

func (e *moduleEntry) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Running
}

// watchdogDeadline returns the wall-clock point at which a dispatched run
// is considered timed out, or zero if the module declares no
// max_expected_runtime.
func (e *moduleEntry) watchdogDeadline(start time.Time) time.Time {
	if e.spec.MaxExpectedRuntime <= 0 {
		return time.Time{}
	}
	return start.Add(e.spec.MaxExpectedRuntime)
}

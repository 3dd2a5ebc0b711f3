// Package scheduler implements the frame-tick-driven module scheduler of
// spec section 4.6: module registration, the due predicate, the circuit
// breaker, convoy grouping of modules onto shared providers, and dispatch
// (synchronous, frame-synced-parallel, asynchronous) plus harvesting of
// completed asynchronous work.
//
// A Scheduler does not own the live World; it is handed one by the caller
// at each phase/dispatch/harvest call, the same separation of concerns the
// teacher's orchestrator.Scheduler keeps between cron bookkeeping and the
// chunk managers it triggers.
package scheduler

import "errors"

var (
	// ErrCircularDependency is returned by Start when a phase's declared
	// before/after constraints form a cycle. Fatal at start-up per spec
	// section 7.
	ErrCircularDependency = errors.New("scheduler: circular system dependency")

	// ErrAlreadyStarted is returned by RegisterSystem/RegisterModule once
	// Start has been called; registration must complete before start-up
	// (spec section 9, "Global state").
	ErrAlreadyStarted = errors.New("scheduler: already started")

	// ErrUnknownModule is returned when a ModuleID does not belong to this
	// Scheduler.
	ErrUnknownModule = errors.New("scheduler: unknown module")

	// ErrDuplicateSystem is returned when two systems register under the
	// same name within a phase.
	ErrDuplicateSystem = errors.New("scheduler: duplicate system name")
)

// errTimeoutExceeded marks a module-internal timeout event. It is not
// returned to the module (spec section 7: "surfaced as an internal
// scheduler event, not to the module") and is only ever observed via the
// circuit breaker's failure count and log output.
var errTimeoutExceeded = errors.New("scheduler: module exceeded max_expected_runtime")

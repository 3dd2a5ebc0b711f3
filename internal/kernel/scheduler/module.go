package scheduler

import (
	"time"

	"github.com/google/uuid"

	"simkernel/internal/kernel/cmdbuffer"
	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/view"
)

// ModuleID identifies a registered module for the lifetime of a Kernel.
// Mirrors the role chunk.ChunkID plays for sealed chunks, minus the
// custom base32 string form: module ids are never persisted or compared
// lexicographically, so the uuid package's own type is used directly.
type ModuleID uuid.UUID

// NewModuleID allocates a fresh, random module id.
func NewModuleID() ModuleID { return ModuleID(uuid.New()) }

func (id ModuleID) String() string { return uuid.UUID(id).String() }

// ExecutionMode selects how a due module's Run function is dispatched
// (spec section 4.6, "Dispatch").
type ExecutionMode int

const (
	// Synchronous modules run inline, in declared phase order, against the
	// Live World.
	Synchronous ExecutionMode = iota
	// FrameSyncedParallel modules run on the fork-join pool against a view
	// from the provider their DataStrategy selects; the driver thread waits
	// for the group.
	FrameSyncedParallel
	// Asynchronous modules are spawned on the worker pool against a
	// provider-acquired view and harvested on a later frame.
	Asynchronous
)

func (m ExecutionMode) String() string {
	switch m {
	case Synchronous:
		return "synchronous"
	case FrameSyncedParallel:
		return "frame-synced-parallel"
	case Asynchronous:
		return "asynchronous"
	default:
		return "unknown"
	}
}

// DataStrategy selects which provider kind supplies a module's View (spec
// section 4.5/4.6).
type DataStrategy int

const (
	// DataDirect is only valid for Synchronous modules: they read/write the
	// Live World directly, no provider involved.
	DataDirect DataStrategy = iota
	DataGDB
	DataSoD
	DataShared
)

func (s DataStrategy) String() string {
	switch s {
	case DataDirect:
		return "direct"
	case DataGDB:
		return "gdb"
	case DataSoD:
		return "sod"
	case DataShared:
		return "shared"
	default:
		return "unknown"
	}
}

// ModuleFunc is the body of a frame-synced-parallel or asynchronous
// module. It observes v and records writes into buf; buf is played back
// onto Live by the scheduler's harvesting step (spec section 4.6).
type ModuleFunc func(v *view.View, buf *cmdbuffer.Buffer) error

// ModuleSpec is a module's registration-time declaration (spec section 6,
// "Module registration").
type ModuleSpec struct {
	Name string

	// FrequencyHz is the timer clause of the due predicate; 0 means the
	// module is never due on a timer and only runs when a watched
	// component/event triggers it.
	FrequencyHz float64

	ExecutionMode ExecutionMode
	DataStrategy  DataStrategy

	// WatchedComponents/WatchedEvents drive due-predicate clauses (b)/(c):
	// a write to any of these since the module's last run makes it due
	// even if its timer hasn't elapsed.
	WatchedComponents ecs.Bitmask
	WatchedEvents     ecs.Bitmask

	// RequiredComponents/RequiredEvents are the types the module's Run
	// actually reads; combined with the watched masks to size a convoy's
	// shared provider (spec section 4.6, "Convoy grouping").
	RequiredComponents ecs.Bitmask
	RequiredEvents     ecs.Bitmask

	MaxExpectedRuntime      time.Duration
	CircuitBreakerThreshold int

	// Run is invoked for FrameSyncedParallel and Asynchronous modules.
	// Synchronous modules instead register one or more SyncFunc systems
	// via Scheduler.RegisterSystem.
	Run ModuleFunc
}

// componentMask is the union of what a module watches and what it
// actually requires to run: the replica/snapshot its provider builds must
// cover both.
func (s ModuleSpec) componentMask() ecs.Bitmask {
	return s.RequiredComponents.Union(s.WatchedComponents)
}

func (s ModuleSpec) eventMask() ecs.Bitmask {
	return s.RequiredEvents.Union(s.WatchedEvents)
}

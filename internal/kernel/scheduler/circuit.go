package scheduler

// CircuitState is one module's breaker state (spec section 4.6, "Circuit
// breaker").
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitSnapshot is an immutable record of a module's breaker state,
// playing the same role the teacher's chunk.ActiveChunkState plays for
// rotation policies: every transition below is a pure function from one
// snapshot to the next, with no IO, no locks, no wall-clock read. Timing
// (the reset_timeout half-open trial) is driven externally by the
// scheduler's gocron job, not by this type comparing timestamps.
type CircuitSnapshot struct {
	State        CircuitState
	FailureCount int
}

// RecordSuccess returns the snapshot after a successful (or first,
// trial) execution: the breaker fully resets.
func (CircuitSnapshot) RecordSuccess() CircuitSnapshot {
	return CircuitSnapshot{State: CircuitClosed}
}

// RecordFailure returns the snapshot after an exception or a
// max_expected_runtime overrun, given the module's configured threshold.
// Reaching the threshold opens the breaker; a failed half-open trial
// (FailureCount already at or above threshold) reopens it immediately.
func (s CircuitSnapshot) RecordFailure(threshold int) CircuitSnapshot {
	count := s.FailureCount + 1
	if threshold <= 0 || count >= threshold {
		return CircuitSnapshot{State: CircuitOpen, FailureCount: count}
	}
	return CircuitSnapshot{State: CircuitClosed, FailureCount: count}
}

// HalfOpen returns the snapshot after the reset_timeout cooldown elapses,
// admitting exactly one trial execution. Called from the scheduler's
// gocron callback, never from the due-predicate hot path.
func (s CircuitSnapshot) HalfOpen() CircuitSnapshot {
	return CircuitSnapshot{State: CircuitHalfOpen, FailureCount: s.FailureCount}
}

// Permits reports whether a module in this state may be dispatched this
// frame. Open never permits; HalfOpen permits exactly the trial the
// caller is about to make (the scheduler's running flag prevents a second
// concurrent trial before the first's outcome is recorded).
func (s CircuitSnapshot) Permits() bool {
	return s.State != CircuitOpen
}

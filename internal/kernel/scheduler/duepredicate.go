package scheduler

import (
	"time"

	"golang.org/x/time/rate"

	"simkernel/internal/kernel/store"
)

// dueContext carries the per-call facts the due predicate (spec section
// 4.6) checks against one module's state.
type dueContext struct {
	now   time.Time
	world *store.World
	// eventsSince reports whether typeID has had a publish landed in the
	// bus retired after sinceTick.
	eventsSince func(typeID int, sinceTick uint64) bool
}

// isDue evaluates the three-clause due predicate for one module. The
// circuit breaker's permission is checked separately by the caller (a
// closed-but-not-due module and an open-circuit module are distinguishable
// for Stats/logging purposes).
//
// Clause (a), the timer, is backed by a per-module token-bucket
// (golang.org/x/time/rate) instead of a hand-rolled
// "(currentTick-lastRunTick)*periodPerTick >= 1/frequencyHz" comparison:
// AllowN both answers the clause and consumes the token, so a module that
// is due on its timer and actually gets dispatched this frame does not
// immediately re-trigger on the same elapsed interval.
func isDue(spec ModuleSpec, limiter *rate.Limiter, st *moduleState, dc dueContext) bool {
	if limiter != nil {
		if limiter.AllowN(dc.now, 1) {
			return true
		}
	}
	for _, id := range spec.WatchedComponents.Bits() {
		if dc.world.LastWriteTick(id) > st.LastRunTick {
			return true
		}
	}
	if dc.eventsSince != nil {
		for _, id := range spec.WatchedEvents.Bits() {
			if dc.eventsSince(id, st.LastRunTick) {
				return true
			}
		}
	}
	return false
}

// newLimiter builds the per-module rate limiter backing clause (a), or nil
// if the module has no timer clause (frequency_hz == 0: purely
// event/component-triggered).
func newLimiter(frequencyHz float64) *rate.Limiter {
	if frequencyHz <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(frequencyHz), 1)
}

// Package view implements the read-only handle a module's update function
// receives each frame: a consistent tick/time stamp, entity liveness,
// component reads, event consumption, and mask queries, all backed by
// whichever synchronization provider (package provider) produced it.
//
// View is read-only by construction, not by runtime enforcement: it
// exposes no mutating method over the world it wraps, the same convention
// the teacher's Register* methods rely on ("enforced by convention, not by
// the type system") rather than by wrapping every field behind an
// interface boundary that would need to be defeated with reflection.
package view

import (
	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/store"
)

// View is a point-in-time, read-only snapshot of kernel state, handed to a
// module's update function for the duration of one invocation.
type View struct {
	world   *store.World
	tick    uint64
	timeSec float64
	batches []event.FrameEventBatch
	dataLoss bool
}

// New constructs a View over a replica world whose Index and tables have
// already been synced by a provider, stamped with tick/timeSec, carrying
// the event batches a provider's Acquire has decided this view should
// observe (see package provider for how GDB/SoD/Shared differ in what
// they pass here).
func New(world *store.World, tick uint64, timeSec float64, batches []event.FrameEventBatch, dataLoss bool) *View {
	return &View{world: world, tick: tick, timeSec: timeSec, batches: batches, dataLoss: dataLoss}
}

// Tick returns the simulation frame counter this view was produced for.
func (v *View) Tick() uint64 { return v.tick }

// Time returns the simulation clock, in seconds, this view was produced
// for.
func (v *View) Time() float64 { return v.timeSec }

// DataLoss reports whether an event history gap occurred before this view
// was produced (spec section 9, decision 1): some batches between this
// view's last observation and now were evicted before being seen.
func (v *View) DataLoss() bool { return v.dataLoss }

// IsAlive reports whether e was alive at the moment this view's underlying
// snapshot was taken.
func (v *View) IsAlive(e ecs.Entity) bool { return v.world.Index.IsAlive(e) }

// GetBlittable reads a blittable component/event value for e.
func GetBlittable[T any](v *View, typeID int, e ecs.Entity) (T, bool, error) {
	return readTyped[T](v, typeID, e)
}

// GetManaged reads a managed component/event value for e. Distinct name
// from GetBlittable purely for call-site clarity; package store's
// generic accessor doesn't distinguish tiers either, for the reasons
// documented on store.Column.
func GetManaged[T any](v *View, typeID int, e ecs.Entity) (T, bool, error) {
	return readTyped[T](v, typeID, e)
}

func readTyped[T any](v *View, typeID int, e ecs.Entity) (T, bool, error) {
	var zero T
	if !v.IsAlive(e) {
		return zero, false, nil
	}
	return store.Get[T](v.world, typeID, e)
}

// ConsumeEvents returns every event of type typeID published across the
// batches this view carries, oldest frame first.
func ConsumeEvents[T any](v *View, typeID int) ([]T, error) {
	var out []T
	for _, b := range v.batches {
		part, err := event.Consume[T](b, typeID)
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// Query returns a cursor over entities matching mask, as of this view's
// snapshot.
func (v *View) Query(mask ecs.Bitmask) *store.Cursor { return v.world.Query(mask) }

// WorldOf exposes the replica world a View wraps, for use by
// synchronization providers reclaiming pooled buffers on Release. Not
// meant for module code: nothing stops a caller from mutating the world
// through it, the same convention-not-enforcement tradeoff documented on
// the package doc comment above.
func WorldOf(v *View) *store.World { return v.world }

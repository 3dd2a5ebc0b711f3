package cmdbuffer

import (
	"fmt"

	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/store"
)

// Result summarizes one Playback call.
type Result struct {
	Applied int
	Failed  int
	Errors  []error
	// Temps maps the buffer's temp entity ids to the real handles they
	// resolved to, for a caller that needs to react to freshly created
	// entities after playback (e.g. logging, test assertions).
	Temps map[int64]ecs.Entity
}

// Playback applies every recorded command in b, in record order, against
// world and bus at the given frame tick. It never aborts partway: a
// command whose target is no longer alive is counted in Result.Failed and
// playback continues with the next command (spec section 4.6's fail-soft
// optimistic-concurrency validation). b is left with its operations
// intact; call Reset separately once the caller is done inspecting them.
func Playback(b *Buffer, world *store.World, bus *event.Bus, tick uint64) Result {
	b.mu.Lock()
	ops := make([]op, len(b.ops))
	copy(ops, b.ops)
	b.mu.Unlock()

	pc := &playbackCtx{world: world, bus: bus, tick: tick, temps: make(map[int64]ecs.Entity)}
	res := Result{Temps: pc.temps}
	for _, o := range ops {
		if err := o.run(pc); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Errorf("%s: %w", o.label, err))
			continue
		}
		res.Applied++
	}
	return res
}

package cmdbuffer

import "simkernel/internal/kernel/ecs"

// Target identifies the entity a recorded command applies to: either a
// real handle captured from a View earlier in the frame, or a temp id
// returned by a CreateEntity call recorded earlier in the same buffer.
// Temp ids let a module script "create an entity, then configure it" in
// one buffer without waiting for playback to learn the real handle.
type Target struct {
	real   ecs.Entity
	temp   int64
	isTemp bool
}

// Real wraps an already-known entity handle as a command target.
func Real(e ecs.Entity) Target { return Target{real: e} }

func tempTarget(id int64) Target { return Target{temp: id, isTemp: true} }

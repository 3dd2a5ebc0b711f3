// Package cmdbuffer implements the deferred command recording and
// playback of spec sections 4.6/5: a module records create/destroy/
// set/remove/publish operations against a Target (a real entity handle or
// a same-buffer temp id) while it runs, and the driver thread replays
// those operations against the live store.World and event.Bus once the
// module's frame slice is done.
//
// Playback is fail-soft: a command whose target entity has died or been
// reused since the module recorded it (stale generation) is skipped and
// counted as a failure, the rest of the buffer still applies. This is the
// same fan-out-with-partial-failure discipline the teacher's Orchestrator
// uses for multi-target ingest, adapted to not abort the remaining
// commands — a stale command here is an expected race against concurrent
// module execution, not a configuration error worth stopping a whole
// frame over.
package cmdbuffer

import "errors"

// ErrUnresolvedTemp is returned when a command references a temp id no
// preceding create_entity command in the same buffer produced.
var ErrUnresolvedTemp = errors.New("cmdbuffer: reference to unresolved temp entity id")

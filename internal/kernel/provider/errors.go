package provider

import "errors"

var (
	// ErrNotSynced is returned by Shared.Acquire when called for a tick the
	// convoy hasn't had SyncForFrame run for yet.
	ErrNotSynced = errors.New("provider: shared replica not synced for this tick")
)

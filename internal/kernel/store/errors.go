package store

import "errors"

var (
	// ErrTierMismatch is returned when a typed accessor or a sync operation
	// is applied against a Table whose concrete element type does not match
	// the type parameter or source column involved.
	ErrTierMismatch = errors.New("store: type/tier mismatch")
	// ErrUnknownType is returned when a component/event type id has no
	// table registered for it in this World.
	ErrUnknownType = errors.New("store: unknown component type")
	// ErrAlreadyRegistered is returned when a type id already has a table.
	ErrAlreadyRegistered = errors.New("store: type already has a table")
)

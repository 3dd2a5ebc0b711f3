// Package ecs implements the entity/component data model: the Entity
// handle, the sparse entity index, the component-type registry with its
// blittable/managed tier split, and the fixed-width component bitmask.
//
// Everything in this package runs on the driver thread only, except reads
// that go through a provider-delivered View (package view), which never
// touches the live Index directly.
package ecs

import "errors"

// Caller-facing error kinds, per spec section 7.
var (
	// ErrDeadEntity is returned when an operation targets an entity that is
	// not alive (either its slot was never allocated, or its generation no
	// longer matches).
	ErrDeadEntity = errors.New("ecs: dead entity")

	// ErrUnknownType is returned when a component or event type id has not
	// been registered.
	ErrUnknownType = errors.New("ecs: unknown component type")

	// ErrTierMismatch is returned when a blittable-path operation targets a
	// managed type or vice versa.
	ErrTierMismatch = errors.New("ecs: tier mismatch")

	// ErrImmutabilityViolation is returned at managed-type registration time
	// when the type exposes a mutator. Fatal: aborts registration.
	ErrImmutabilityViolation = errors.New("ecs: managed type is not deeply immutable")

	// ErrTypeAlreadyRegistered is returned when a name is registered twice.
	ErrTypeAlreadyRegistered = errors.New("ecs: component type already registered")
)

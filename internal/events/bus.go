package events

import "backoffice_portal_backend/platform/events"

// InMemoryBus re-exports the platform bus implementation.
type InMemoryBus = events.InMemoryBus

// NewInMemoryBus re-exports the platform bus constructor.
var NewInMemoryBus = events.NewInMemoryBus

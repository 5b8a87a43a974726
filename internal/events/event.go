// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"backoffice_portal_backend/internal/location/transport"
	"backoffice_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Location Domain Events
// =============================================================================

// LocationCommitted is published on every atomic location commit. It carries
// the full committed record so subscribers never need to read session state.
type LocationCommitted struct {
	BaseEvent
	SessionID uuid.UUID                  `json:"sessionId"`
	Variant   string                     `json:"variant"`
	Source    string                     `json:"source"`
	Location  transport.SelectedLocation `json:"location"`
}

func (e LocationCommitted) EventName() string { return "location.committed" }

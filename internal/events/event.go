// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"guest_registry_backend/platform/events"
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
// Guests Domain Events
// =============================================================================

// GuestCreated is published after a guest is persisted by the add operation.
type GuestCreated struct {
	BaseEvent
	GuestID int64   `json:"guestId"`
	Phone   string  `json:"phone"`
	Country *string `json:"country,omitempty"`
}

func (e GuestCreated) EventName() string { return "guests.guest.created" }

// GuestUpdated is published after an edit is persisted.
type GuestUpdated struct {
	BaseEvent
	GuestID       int64    `json:"guestId"`
	Phone         string   `json:"phone"`
	ChangedFields []string `json:"changedFields"`
}

func (e GuestUpdated) EventName() string { return "guests.guest.updated" }

// GuestDeleted is published after a guest is removed.
type GuestDeleted struct {
	BaseEvent
	GuestID int64  `json:"guestId"`
	Phone   string `json:"phone"`
}

func (e GuestDeleted) EventName() string { return "guests.guest.deleted" }

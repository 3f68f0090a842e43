package echeance

import (
	"fmt"
	"time"
)

// EventType identifies a cache-mutation or deadline notification event.
type EventType string

const (
	// EventCreated is emitted after a new échéance enters the cache.
	EventCreated EventType = "created"

	// EventUpdated is emitted after an existing échéance is merged.
	EventUpdated EventType = "updated"

	// EventDeleted is emitted after an échéance is removed.
	EventDeleted EventType = "deleted"

	// EventApproaching is emitted by the approaching-deadline scan for
	// non-terminal records due within the configured window.
	EventApproaching EventType = "deadline_approaching"

	// EventOverdue is emitted by the overdue scan for non-terminal records
	// whose due date has passed.
	EventOverdue EventType = "overdue"
)

// Validate checks if the EventType is a valid enum value.
func (t EventType) Validate() error {
	switch t {
	case EventCreated, EventUpdated, EventDeleted, EventApproaching, EventOverdue:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// Event is the envelope delivered to subscribers and carried on the push
// channels. Echeance is present for created/updated/approaching/overdue
// events; deleted events carry only the ID.
//
// CorrelationID echoes the X-Correlation-ID of the mutation that produced
// the event, so a caller can recognize its own writes coming back through a
// push channel and avoid applying them twice.
type Event struct {
	Type          EventType `json:"type"`
	EcheanceID    string    `json:"echeance_id"`
	Echeance      *Echeance `json:"echeance,omitempty"`
	JoursRestants int       `json:"jours_restants,omitempty"` // deadline_approaching only
	JoursRetard   int       `json:"jours_retard,omitempty"`   // overdue only
	CorrelationID string    `json:"correlation_id,omitempty"`
	At            time.Time `json:"at"`
}

// Validate checks structural consistency of the event envelope.
func (ev *Event) Validate() error {
	if err := ev.Type.Validate(); err != nil {
		return err
	}
	if ev.EcheanceID == "" {
		return fmt.Errorf("event echeance_id cannot be empty")
	}
	if ev.Type != EventDeleted && ev.Echeance == nil {
		return fmt.Errorf("event %s requires an echeance payload", ev.Type)
	}
	return nil
}

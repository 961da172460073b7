package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pulseroute/platform/internal/shared/types"
)

// Transfer lifecycle event types. The transport layer subscribes to these
// to push updates to EMS and hospital clients.
const (
	TypePatientRegistered = "patient.registered"
	TypeTransferRequested = "transfer.requested"
	TypeTransferAccepted  = "transfer.accepted"
	TypeTransferRejected  = "transfer.rejected"
	TypeChatCreated       = "chat.created"
)

// Event represents a domain event
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`

	// Actor information
	ActorID   types.ID `json:"actor_id"`
	ActorType string   `json:"actor_type"` // ems, hospital, system

	// Event data
	Data any `json:"data"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType, source string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithActor sets the actor information on the event
func (e Event) WithActor(actorID types.ID, actorType string) Event {
	e.ActorID = actorID
	e.ActorType = actorType
	return e
}

// WithCorrelation sets the correlation ID for request tracing
func (e Event) WithCorrelation(correlationID string) Event {
	e.CorrelationID = correlationID
	return e
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

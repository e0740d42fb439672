package outbound

import (
	"context"
	"fmt"

	"inputbid-service/internal/domain/shared"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeBidSubmitted   EventType = "bid.submitted"
	EventTypeBidAccepted    EventType = "bid.accepted"
	EventTypeBidRejected    EventType = "bid.rejected"
	EventTypeBidWithdrawn   EventType = "bid.withdrawn"
	EventTypeRequestClosed  EventType = "request.closed"
	EventTypeRequestDeleted EventType = "request.deleted"
)

// Event represents a state change of one entity
type Event struct {
	Type EventType `json:"type"`
	// Seq orders events emitted by the same operation, starting at 1.
	Seq        int                    `json:"seq"`
	RequestID  uuid.UUID              `json:"request_id"`
	BidID      *uuid.UUID             `json:"bid_id,omitempty"`
	Status     string                 `json:"status"`
	BusinessID uuid.UUID              `json:"business_id"`
	RetailerID *uuid.UUID             `json:"retailer_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// IsBidEvent reports whether the event concerns a single bid
func (e Event) IsBidEvent() bool {
	return e.BidID != nil
}

// Audience is the set of sessions belonging to one party
type Audience struct {
	Kind shared.PartyKind
	ID   uuid.UUID
}

// AudienceOf returns the audience a party's sessions listen on
func AudienceOf(party shared.Party) Audience {
	return Audience{Kind: party.Kind, ID: party.ID}
}

// Channel is the pub/sub channel name of the audience
func (a Audience) Channel() string {
	return fmt.Sprintf("bidmarket:%s:%s", a.Kind, a.ID)
}

// Broadcaster defines the interface for broadcasting events
type Broadcaster interface {
	// Subscribe subscribes a client to events for an audience.
	// When a client subscribes to multiple audiences, all events are delivered to the same channel
	Subscribe(ctx context.Context, audience Audience, clientID string, eventChan chan Event) error

	// Unsubscribe unsubscribes a client from an audience
	Unsubscribe(ctx context.Context, audience Audience, clientID string) error

	// Publish publishes an event to all sessions of an audience
	Publish(ctx context.Context, audience Audience, event Event) error

	// IsSubscribed checks if a client is subscribed to an audience
	IsSubscribed(ctx context.Context, audience Audience, clientID string) bool
}

package app

import (
	"context"
	"time"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier fans ordered state-change events out to the parties involved
type Notifier struct {
	broadcaster outbound.Broadcaster
	logger      zerolog.Logger
}

type NotifierParams struct {
	Broadcaster outbound.Broadcaster
	Logger      zerolog.Logger
}

// NewNotifier creates a notifier. A nil broadcaster disables delivery.
func NewNotifier(params NotifierParams) *Notifier {
	return &Notifier{
		broadcaster: params.Broadcaster,
		logger:      params.Logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify stamps Seq on the events and publishes them in order to the
// owning business and, for bid events, to the bidding retailer. Delivery
// is best-effort: failures are logged and never returned.
func (n *Notifier) Notify(ctx context.Context, events []outbound.Event) {
	if n == nil || n.broadcaster == nil || len(events) == 0 {
		return
	}

	// Publishing outlives the caller's context.
	ctx = context.WithoutCancel(ctx)

	for i := range events {
		event := events[i]
		event.Seq = i + 1

		audiences := []outbound.Audience{outbound.AudienceOf(shared.Business(event.BusinessID))}
		if event.IsBidEvent() && event.RetailerID != nil {
			audiences = append(audiences, outbound.AudienceOf(shared.Retailer(*event.RetailerID)))
		}

		for _, audience := range audiences {
			if err := n.broadcaster.Publish(ctx, audience, event); err != nil {
				n.logger.Error().
					Err(err).
					Str("event_type", string(event.Type)).
					Str("request_id", event.RequestID.String()).
					Str("channel", audience.Channel()).
					Msg("Failed to publish event")
			}
		}
	}
}

func bidEvent(eventType outbound.EventType, bid *offer.RetailerBid, businessID uuid.UUID, at time.Time) outbound.Event {
	bidID, retailerID := bid.ID, bid.RetailerID
	return outbound.Event{
		Type:       eventType,
		RequestID:  bid.RequestID,
		BidID:      &bidID,
		Status:     string(bid.Status),
		BusinessID: businessID,
		RetailerID: &retailerID,
		Data: map[string]interface{}{
			"total_delivered_price": bid.TotalDeliveredPrice.String(),
		},
		Timestamp: at.Unix(),
	}
}

func requestEvent(eventType outbound.EventType, req *request.BidRequest, at time.Time) outbound.Event {
	return outbound.Event{
		Type:       eventType,
		RequestID:  req.ID,
		Status:     string(req.Status),
		BusinessID: req.BusinessID,
		Timestamp:  at.Unix(),
	}
}

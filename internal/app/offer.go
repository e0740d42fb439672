package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/domain/units"
	"inputbid-service/internal/ports/inbound"
	"inputbid-service/internal/ports/outbound"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OfferService implements the retailer bid use cases
type OfferService struct {
	store    outbound.Store
	access   outbound.AccessGate
	notifier *Notifier
	clock    clock.Clock
	logger   zerolog.Logger
}

type OfferServiceParams struct {
	Store    outbound.Store
	Access   outbound.AccessGate
	Notifier *Notifier
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// NewOfferService creates a new offer service
func NewOfferService(params OfferServiceParams) *OfferService {
	c := params.Clock
	if c == nil {
		c = clock.NewClock()
	}
	return &OfferService{
		store:    params.Store,
		access:   params.Access,
		notifier: params.Notifier,
		clock:    c,
		logger:   params.Logger.With().Str("component", "offer_service").Logger(),
	}
}

// SubmitBid places a new PENDING bid on an OPEN request
func (service *OfferService) SubmitBid(ctx context.Context, in inbound.SubmitBidInput) (*offer.RetailerBid, error) {
	service.logger.Info().
		Str("request_id", in.RequestID.String()).
		Str("retailer_id", in.RetailerID.String()).
		Str("total_delivered_price", in.TotalDeliveredPrice.String()).
		Msg("Attempting to submit bid")

	if in.RetailerID == uuid.Nil {
		return nil, shared.ErrInvalidParty
	}

	req, err := service.store.Requests().GetByID(ctx, in.RequestID)
	if err != nil {
		service.logger.Warn().Err(err).Str("request_id", in.RequestID.String()).Msg("Bid request not found")
		return nil, err
	}

	ok, err := service.access.HasAccess(ctx, in.RetailerID, req.BusinessID, shared.CapabilityInputs)
	if err != nil {
		service.logger.Error().Err(err).Str("retailer_id", in.RetailerID.String()).Msg("Failed to check retailer access")
		return nil, fmt.Errorf("failed to check retailer access: %w", err)
	}
	if !ok {
		service.logger.Warn().
			Str("retailer_id", in.RetailerID.String()).
			Str("business_id", req.BusinessID.String()).
			Msg("Retailer has no inputs access")
		return nil, shared.ErrAccessDenied
	}

	submittedAt := now(service.clock)
	if err := checkAcceptingBids(req, submittedAt); err != nil {
		service.logger.Warn().Err(err).Str("request_id", req.ID.String()).Msg("Bid request stopped accepting bids")
		return nil, err
	}

	bid, err := buildBid(in, req, submittedAt)
	if err != nil {
		service.logger.Warn().Err(err).Str("request_id", in.RequestID.String()).Msg("Rejected bid")
		return nil, err
	}

	err = service.store.WithinTx(ctx, func(tx outbound.Store) error {
		// Shared lock orders this insert against a concurrent close or accept.
		current, err := tx.Requests().GetForShare(ctx, req.ID)
		if err != nil {
			return err
		}
		if err := checkAcceptingBids(current, submittedAt); err != nil {
			return err
		}
		return tx.Bids().Create(ctx, bid)
	})
	if err != nil {
		if errors.Is(err, shared.ErrInvalidState) {
			service.logger.Warn().Err(err).Str("request_id", req.ID.String()).Msg("Bid request stopped accepting bids")
		} else {
			service.logger.Error().Err(err).Str("bid_id", bid.ID.String()).Msg("Failed to save bid")
		}
		return nil, err
	}

	service.logger.Info().
		Str("bid_id", bid.ID.String()).
		Str("request_id", req.ID.String()).
		Msg("Bid submitted successfully")

	service.notifier.Notify(ctx, []outbound.Event{
		bidEvent(outbound.EventTypeBidSubmitted, bid, req.BusinessID, submittedAt),
	})
	return bid, nil
}

// checkAcceptingBids rejects closed requests and those past their deadline
func checkAcceptingBids(req *request.BidRequest, at time.Time) error {
	if !req.IsOpen() {
		return shared.ErrRequestClosed
	}
	if req.BidsDueAt != nil && !at.Before(*req.BidsDueAt) {
		return shared.ErrBiddingDeadline
	}
	return nil
}

func buildBid(in inbound.SubmitBidInput, req *request.BidRequest, submittedAt time.Time) (*offer.RetailerBid, error) {
	if !in.TotalDeliveredPrice.IsPositive() {
		return nil, shared.ErrInvalidTotalPrice
	}
	if in.GuaranteedDeliveryDate.IsZero() {
		return nil, shared.ErrDeliveryDateRequired
	}

	bid := &offer.RetailerBid{
		ID:                     uuid.New(),
		RequestID:              req.ID,
		RetailerID:             in.RetailerID,
		Status:                 offer.StatusPending,
		TotalDeliveredPrice:    in.TotalDeliveredPrice,
		GuaranteedDeliveryDate: in.GuaranteedDeliveryDate.UTC().Truncate(time.Microsecond),
		Notes:                  in.Notes,
		SubmittedAt:            submittedAt,
		Items:                  make([]offer.BidItem, 0, len(in.LineOffers)),
	}

	seen := make(map[uuid.UUID]bool, len(in.LineOffers))
	for i, line := range in.LineOffers {
		if _, ok := req.Item(line.RequestItemID); !ok {
			return nil, fmt.Errorf("%w: line %d item %s", shared.ErrForeignRequestItem, i, line.RequestItemID)
		}
		if seen[line.RequestItemID] {
			return nil, fmt.Errorf("%w: item %s", shared.ErrDuplicateLineOffer, line.RequestItemID)
		}
		seen[line.RequestItemID] = true

		if line.PricePerUnit.IsNegative() {
			return nil, fmt.Errorf("%w: line %d", shared.ErrInvalidLinePrice, i)
		}

		item := offer.BidItem{
			ID:            uuid.New(),
			BidID:         bid.ID,
			RequestItemID: line.RequestItemID,
			PricePerUnit:  line.PricePerUnit,
		}
		if line.Unit != "" {
			unit, err := units.Parse(line.Unit)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i, err)
			}
			item.Unit = &unit
		}
		bid.Items = append(bid.Items, item)
	}

	return bid, nil
}

// WithdrawBid deletes a PENDING bid while its request is OPEN. Both the
// buyer and the submitting retailer may withdraw it.
func (service *OfferService) WithdrawBid(ctx context.Context, bidID uuid.UUID, actor shared.Party) error {
	service.logger.Info().Str("bid_id", bidID.String()).Str("actor", actor.String()).Msg("Withdrawing bid")

	bid, req, err := service.participantBid(ctx, bidID, actor)
	if err != nil {
		return err
	}

	withdrawnAt := now(service.clock)
	err = service.store.WithinTx(ctx, func(tx outbound.Store) error {
		current, err := tx.Requests().GetForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}
		if !current.IsOpen() {
			return shared.ErrRequestClosed
		}

		bid, err = tx.Bids().GetByID(ctx, bidID)
		if err != nil {
			return err
		}
		if !bid.IsPending() {
			return shared.ErrBidNotPending
		}
		return tx.Bids().Delete(ctx, bidID)
	})
	if err != nil {
		service.logger.Warn().Err(err).Str("bid_id", bidID.String()).Msg("Failed to withdraw bid")
		return err
	}

	service.logger.Info().Str("bid_id", bidID.String()).Msg("Bid withdrawn successfully")

	service.notifier.Notify(ctx, []outbound.Event{
		bidEvent(outbound.EventTypeBidWithdrawn, bid, req.BusinessID, withdrawnAt),
	})
	return nil
}

// GetBid retrieves a bid for its buyer or its retailer
func (service *OfferService) GetBid(ctx context.Context, bidID uuid.UUID, viewer shared.Party) (*offer.RetailerBid, error) {
	bid, _, err := service.participantBid(ctx, bidID, viewer)
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// ListBids lists all bids of a request for its buyer, or the viewer's own
// bids for a retailer.
func (service *OfferService) ListBids(ctx context.Context, requestID uuid.UUID, viewer shared.Party) ([]*offer.RetailerBid, error) {
	req, err := service.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	switch {
	case viewer.IsBusiness(req.BusinessID):
		return service.store.Bids().ListByRequest(ctx, requestID)
	case viewer.Kind == shared.PartyRetailer && viewer.ID != uuid.Nil:
		return service.store.Bids().ListByRequestAndRetailer(ctx, requestID, viewer.ID)
	default:
		return nil, shared.ErrNotBidParticipant
	}
}

func (service *OfferService) participantBid(ctx context.Context, bidID uuid.UUID, actor shared.Party) (*offer.RetailerBid, *request.BidRequest, error) {
	bid, err := service.store.Bids().GetByID(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	req, err := service.store.Requests().GetByID(ctx, bid.RequestID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsBusiness(req.BusinessID) && !actor.IsRetailer(bid.RetailerID) {
		service.logger.Warn().Str("bid_id", bidID.String()).Str("actor", actor.String()).Msg("Actor is not a bid participant")
		return nil, nil, shared.ErrNotBidParticipant
	}
	return bid, req, nil
}

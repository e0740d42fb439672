package app

import (
	"context"
	"errors"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/ports/outbound"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AcceptanceCoordinator selects the single winning bid of a request
type AcceptanceCoordinator struct {
	store    outbound.Store
	notifier *Notifier
	clock    clock.Clock
	logger   zerolog.Logger
}

type AcceptanceCoordinatorParams struct {
	Store    outbound.Store
	Notifier *Notifier
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// NewAcceptanceCoordinator creates a new acceptance coordinator
func NewAcceptanceCoordinator(params AcceptanceCoordinatorParams) *AcceptanceCoordinator {
	c := params.Clock
	if c == nil {
		c = clock.NewClock()
	}
	return &AcceptanceCoordinator{
		store:    params.Store,
		notifier: params.Notifier,
		clock:    c,
		logger:   params.Logger.With().Str("component", "acceptance_coordinator").Logger(),
	}
}

/*
AcceptBid accepts one PENDING bid on behalf of the request owner.
 1. Lock the parent request and re-read the target bid
 2. Mark the target ACCEPTED with a status-guarded update
 3. Reject every other PENDING bid of the request
 4. Close the request
All writes commit together. A store-level write conflict reruns the whole
unit once; a second conflict is returned to the caller.
*/
func (coordinator *AcceptanceCoordinator) AcceptBid(ctx context.Context, bidID uuid.UUID, actor shared.Party) (*offer.RetailerBid, error) {
	coordinator.logger.Info().Str("bid_id", bidID.String()).Str("actor", actor.String()).Msg("Attempting to accept bid")

	bid, err := coordinator.store.Bids().GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	req, err := coordinator.store.Requests().GetByID(ctx, bid.RequestID)
	if err != nil {
		return nil, err
	}
	if !actor.IsBusiness(req.BusinessID) {
		coordinator.logger.Warn().Str("bid_id", bidID.String()).Str("actor", actor.String()).Msg("Actor does not own bid request")
		return nil, shared.ErrNotRequestOwner
	}

	accepted, events, err := coordinator.accept(ctx, bidID)
	if errors.Is(err, shared.ErrConcurrentWrite) {
		coordinator.logger.Warn().Err(err).Str("bid_id", bidID.String()).Msg("Concurrent write during acceptance, retrying once")
		accepted, events, err = coordinator.accept(ctx, bidID)
	}
	if err != nil {
		coordinator.logFailure(err, bidID)
		return nil, err
	}

	coordinator.logger.Info().
		Str("bid_id", accepted.ID.String()).
		Str("request_id", accepted.RequestID.String()).
		Int("rejected", len(events)-2).
		Msg("Bid accepted successfully")

	coordinator.notifier.Notify(ctx, events)
	return accepted, nil
}

func (coordinator *AcceptanceCoordinator) accept(ctx context.Context, bidID uuid.UUID) (*offer.RetailerBid, []outbound.Event, error) {
	var accepted *offer.RetailerBid
	var events []outbound.Event

	err := coordinator.store.WithinTx(ctx, func(tx outbound.Store) error {
		bid, err := tx.Bids().GetByID(ctx, bidID)
		if err != nil {
			return err
		}
		req, err := tx.Requests().GetForUpdate(ctx, bid.RequestID)
		if err != nil {
			return err
		}

		// Re-read under the request lock.
		bid, err = tx.Bids().GetByID(ctx, bidID)
		if err != nil {
			return err
		}
		if !bid.IsPending() {
			return shared.ErrBidAlreadyDecided
		}

		if req.IsClosed() {
			count, err := tx.Bids().CountByStatus(ctx, req.ID, offer.StatusAccepted)
			if err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrClosedWithoutAccepted
			}
			return shared.ErrBidAlreadyDecided
		}

		decidedAt := now(coordinator.clock)
		ok, err := tx.Bids().MarkAccepted(ctx, bidID, decidedAt)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrBidAlreadyDecided
		}
		bid.Accept(decidedAt)

		rejected, err := tx.Bids().RejectPendingSiblings(ctx, req.ID, bidID, decidedAt)
		if err != nil {
			return err
		}

		if _, err := tx.Requests().Close(ctx, req.ID, decidedAt); err != nil {
			return err
		}
		req.Close(decidedAt)

		rejections, err := rejectionEvents(ctx, tx, req, rejected, decidedAt)
		if err != nil {
			return err
		}

		events = make([]outbound.Event, 0, len(rejections)+2)
		events = append(events, bidEvent(outbound.EventTypeBidAccepted, bid, req.BusinessID, decidedAt))
		events = append(events, rejections...)
		events = append(events, requestEvent(outbound.EventTypeRequestClosed, req, decidedAt))
		accepted = bid
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return accepted, events, nil
}

func (coordinator *AcceptanceCoordinator) logFailure(err error, bidID uuid.UUID) {
	switch {
	case errors.Is(err, shared.ErrIntegrity):
		coordinator.logger.Error().Err(err).Str("bid_id", bidID.String()).Msg("Inconsistent state during acceptance")
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrInvalidState):
		coordinator.logger.Warn().Err(err).Str("bid_id", bidID.String()).Msg("Bid acceptance lost")
	default:
		coordinator.logger.Error().Err(err).Str("bid_id", bidID.String()).Msg("Failed to accept bid")
	}
}

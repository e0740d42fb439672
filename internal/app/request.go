package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/pricing"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/domain/units"
	"inputbid-service/internal/ports/inbound"
	"inputbid-service/internal/ports/outbound"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestService implements the bid request use cases and scheduler.RequestCloser
type RequestService struct {
	store     outbound.Store
	access    outbound.AccessGate
	notifier  *Notifier
	scheduler outbound.DeadlineScheduler
	clock     clock.Clock
	logger    zerolog.Logger
}

type RequestServiceParams struct {
	Store     outbound.Store
	Access    outbound.AccessGate
	Notifier  *Notifier
	Scheduler outbound.DeadlineScheduler
	Clock     clock.Clock
	Logger    zerolog.Logger
}

// NewRequestService creates a new bid request service
func NewRequestService(params RequestServiceParams) *RequestService {
	c := params.Clock
	if c == nil {
		c = clock.NewClock()
	}
	return &RequestService{
		store:     params.Store,
		access:    params.Access,
		notifier:  params.Notifier,
		scheduler: params.Scheduler,
		clock:     c,
		logger:    params.Logger.With().Str("component", "request_service").Logger(),
	}
}

// SetScheduler sets the deadline scheduler
func (service *RequestService) SetScheduler(scheduler outbound.DeadlineScheduler) {
	service.scheduler = scheduler
}

// CreateRequest validates and stores a new OPEN bid request
func (service *RequestService) CreateRequest(ctx context.Context, in inbound.CreateRequestInput) (*request.BidRequest, error) {
	service.logger.Info().
		Str("business_id", in.BusinessID.String()).
		Int("items", len(in.Items)).
		Msg("Attempting to create bid request")

	createdAt := now(service.clock)
	req, err := buildRequest(in, createdAt)
	if err != nil {
		service.logger.Warn().Err(err).Str("business_id", in.BusinessID.String()).Msg("Rejected bid request")
		return nil, err
	}

	err = service.store.WithinTx(ctx, func(tx outbound.Store) error {
		return tx.Requests().Create(ctx, req)
	})
	if err != nil {
		service.logger.Error().Err(err).Str("request_id", req.ID.String()).Msg("Failed to save bid request")
		return nil, err
	}

	service.logger.Info().Str("request_id", req.ID.String()).Msg("Bid request created successfully")

	if req.BidsDueAt != nil && service.scheduler != nil {
		if err := service.scheduler.Schedule(ctx, req.ID, *req.BidsDueAt); err != nil {
			// The request stays OPEN until its owner closes it.
			service.logger.Error().Err(err).Str("request_id", req.ID.String()).Msg("Failed to schedule bidding deadline")
		}
	}

	return req, nil
}

func buildRequest(in inbound.CreateRequestInput, createdAt time.Time) (*request.BidRequest, error) {
	if in.BusinessID == uuid.Nil {
		return nil, shared.ErrInvalidParty
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, shared.ErrTitleRequired
	}
	if len(in.Items) == 0 {
		return nil, shared.ErrRequestItemsEmpty
	}
	if in.BidsDueAt != nil && !in.BidsDueAt.After(createdAt) {
		return nil, shared.ErrInvalidDeadline
	}

	req := &request.BidRequest{
		ID:                  uuid.New(),
		BusinessID:          in.BusinessID,
		Title:               title,
		Notes:               in.Notes,
		DesiredDeliveryDate: utcPtr(in.DesiredDeliveryDate),
		BidsDueAt:           utcPtr(in.BidsDueAt),
		Status:              request.StatusOpen,
		CreatedAt:           createdAt,
		Items:               make([]request.Item, 0, len(in.Items)),
	}

	for i, item := range in.Items {
		if !item.Category.Valid() {
			return nil, fmt.Errorf("%w: item %d category %q", shared.ErrInvalidCategory, i, item.Category)
		}
		name := strings.TrimSpace(item.ProductName)
		if name == "" {
			return nil, fmt.Errorf("%w: item %d", shared.ErrProductNameRequired, i)
		}
		if !item.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: item %d", shared.ErrInvalidQuantity, i)
		}
		unit, err := units.Parse(item.Unit)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if item.ReferencePrice != nil && item.ReferencePrice.IsNegative() {
			return nil, fmt.Errorf("%w: item %d", shared.ErrInvalidReference, i)
		}

		req.Items = append(req.Items, request.Item{
			ID:             uuid.New(),
			RequestID:      req.ID,
			Category:       item.Category,
			ProductName:    name,
			Quantity:       item.Quantity,
			Unit:           unit,
			ReferencePrice: item.ReferencePrice,
		})
	}

	return req, nil
}

// GetRequest retrieves a request visible to the viewer
func (service *RequestService) GetRequest(ctx context.Context, requestID uuid.UUID, viewer shared.Party) (*request.BidRequest, error) {
	service.logger.Debug().Str("request_id", requestID.String()).Str("viewer", viewer.String()).Msg("Retrieving bid request")

	req, err := service.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := service.authorizeView(ctx, req, viewer); err != nil {
		service.logger.Warn().Err(err).Str("request_id", requestID.String()).Str("viewer", viewer.String()).Msg("Bid request not visible to viewer")
		return nil, err
	}
	return req, nil
}

// authorizeView lets the owner and retailers granted inputs access see a request
func (service *RequestService) authorizeView(ctx context.Context, req *request.BidRequest, viewer shared.Party) error {
	if viewer.IsBusiness(req.BusinessID) {
		return nil
	}
	if viewer.Kind != shared.PartyRetailer {
		return shared.ErrNotRequestOwner
	}
	ok, err := service.access.HasAccess(ctx, viewer.ID, req.BusinessID, shared.CapabilityInputs)
	if err != nil {
		return fmt.Errorf("failed to check retailer access: %w", err)
	}
	if !ok {
		return shared.ErrAccessDenied
	}
	return nil
}

// ListRequests retrieves a buyer's own requests, or the OPEN requests a retailer may bid on
func (service *RequestService) ListRequests(ctx context.Context, viewer shared.Party, in inbound.ListRequestsInput) ([]*request.BidRequest, error) {
	if in.Page <= 0 {
		in.Page = 1
	}
	if in.PageSize <= 0 {
		in.PageSize = 10
	}

	switch viewer.Kind {
	case shared.PartyBusiness:
		return service.store.Requests().ListByBusiness(ctx, viewer.ID, in.Status, in.Page, in.PageSize)
	case shared.PartyRetailer:
		if in.Status != nil && *in.Status != request.StatusOpen {
			return []*request.BidRequest{}, nil
		}
		return service.store.Requests().ListOpenForRetailer(ctx, viewer.ID, shared.CapabilityInputs, in.Page, in.PageSize)
	default:
		return nil, shared.ErrInvalidParty
	}
}

// UpdateNotes replaces the notes of an OPEN request
func (service *RequestService) UpdateNotes(ctx context.Context, requestID uuid.UUID, actor shared.Party, notes string) (*request.BidRequest, error) {
	req, err := service.ownedRequest(ctx, requestID, actor)
	if err != nil {
		return nil, err
	}

	updated, err := service.store.Requests().UpdateNotes(ctx, requestID, notes)
	if err != nil {
		service.logger.Error().Err(err).Str("request_id", requestID.String()).Msg("Failed to update notes")
		return nil, err
	}
	if !updated {
		return nil, shared.ErrRequestClosed
	}

	req.Notes = notes
	return req, nil
}

// CloseRequest closes an OPEN request on behalf of its owner and rejects
// every PENDING bid on it in the same transaction. A request that is
// already CLOSED yields shared.ErrRequestClosed.
func (service *RequestService) CloseRequest(ctx context.Context, requestID uuid.UUID, actor shared.Party) error {
	service.logger.Info().Str("request_id", requestID.String()).Str("actor", actor.String()).Msg("Closing bid request")

	if _, err := service.ownedRequest(ctx, requestID, actor); err != nil {
		return err
	}

	events, err := service.close(ctx, requestID)
	if err != nil {
		if !errors.Is(err, shared.ErrRequestClosed) {
			service.logger.Error().Err(err).Str("request_id", requestID.String()).Msg("Failed to close bid request")
		}
		return err
	}

	service.cancelDeadline(ctx, requestID)
	service.notifier.Notify(ctx, events)
	return nil
}

// CloseExpired closes a request whose bidding deadline passed. It is a
// no-op for requests that are already CLOSED or no longer exist.
func (service *RequestService) CloseExpired(ctx context.Context, requestID uuid.UUID) error {
	events, err := service.close(ctx, requestID)
	switch {
	case errors.Is(err, shared.ErrRequestClosed), errors.Is(err, shared.ErrRequestNotFound):
		service.logger.Debug().Str("request_id", requestID.String()).Msg("Expired request needs no close")
		return nil
	case err != nil:
		return err
	}

	service.logger.Info().Str("request_id", requestID.String()).Int("rejected", len(events)-1).Msg("Closed bid request at deadline")
	service.notifier.Notify(ctx, events)
	return nil
}

// close moves the request to CLOSED and rejects its outstanding PENDING
// bids in one transaction.
func (service *RequestService) close(ctx context.Context, requestID uuid.UUID) ([]outbound.Event, error) {
	var events []outbound.Event
	err := service.store.WithinTx(ctx, func(tx outbound.Store) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if !req.IsOpen() {
			return shared.ErrRequestClosed
		}

		closedAt := now(service.clock)
		closed, err := tx.Requests().Close(ctx, requestID, closedAt)
		if err != nil {
			return err
		}
		if !closed {
			return shared.ErrRequestClosed
		}
		req.Close(closedAt)

		rejected, err := tx.Bids().RejectPendingSiblings(ctx, requestID, uuid.Nil, closedAt)
		if err != nil {
			return err
		}

		events, err = rejectionEvents(ctx, tx, req, rejected, closedAt)
		if err != nil {
			return err
		}
		events = append(events, requestEvent(outbound.EventTypeRequestClosed, req, closedAt))
		return nil
	})
	return events, err
}

// DeleteRequest removes an OPEN request and every bid on it
func (service *RequestService) DeleteRequest(ctx context.Context, requestID uuid.UUID, actor shared.Party) error {
	service.logger.Info().Str("request_id", requestID.String()).Str("actor", actor.String()).Msg("Deleting bid request")

	if _, err := service.ownedRequest(ctx, requestID, actor); err != nil {
		return err
	}

	var events []outbound.Event
	err := service.store.WithinTx(ctx, func(tx outbound.Store) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if !req.IsOpen() {
			return shared.ErrRequestClosed
		}

		bids, err := tx.Bids().ListByRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if err := tx.Requests().Delete(ctx, requestID); err != nil {
			return err
		}

		deletedAt := now(service.clock)
		for _, bid := range bids {
			events = append(events, bidEvent(outbound.EventTypeBidWithdrawn, bid, req.BusinessID, deletedAt))
		}
		events = append(events, requestEvent(outbound.EventTypeRequestDeleted, req, deletedAt))
		return nil
	})
	if err != nil {
		if !errors.Is(err, shared.ErrRequestClosed) {
			service.logger.Error().Err(err).Str("request_id", requestID.String()).Msg("Failed to delete bid request")
		}
		return err
	}

	service.logger.Info().Str("request_id", requestID.String()).Int("bids_removed", len(events)-1).Msg("Bid request deleted successfully")

	service.cancelDeadline(ctx, requestID)
	service.notifier.Notify(ctx, events)
	return nil
}

// PricingSummary derives the advisory pricing views for the owner
func (service *RequestService) PricingSummary(ctx context.Context, requestID uuid.UUID, actor shared.Party) (*pricing.Summary, error) {
	req, err := service.ownedRequest(ctx, requestID, actor)
	if err != nil {
		return nil, err
	}

	bids, err := service.store.Bids().ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	summary := pricing.Summarize(req, bids)
	return &summary, nil
}

// RestoreDeadlines re-registers the deadlines of every OPEN request
func (service *RequestService) RestoreDeadlines(ctx context.Context) error {
	if service.scheduler == nil {
		return nil
	}

	reqs, err := service.store.Requests().ListOpenWithDeadline(ctx)
	if err != nil {
		return err
	}

	for _, req := range reqs {
		if err := service.scheduler.Schedule(ctx, req.ID, *req.BidsDueAt); err != nil {
			return fmt.Errorf("failed to restore deadline of request %s: %w", req.ID, err)
		}
	}

	service.logger.Info().Int("requests", len(reqs)).Msg("Restored bidding deadlines")
	return nil
}

func (service *RequestService) ownedRequest(ctx context.Context, requestID uuid.UUID, actor shared.Party) (*request.BidRequest, error) {
	req, err := service.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !actor.IsBusiness(req.BusinessID) {
		service.logger.Warn().Str("request_id", requestID.String()).Str("actor", actor.String()).Msg("Actor does not own bid request")
		return nil, shared.ErrNotRequestOwner
	}
	return req, nil
}

func (service *RequestService) cancelDeadline(ctx context.Context, requestID uuid.UUID) {
	if service.scheduler == nil {
		return
	}
	if err := service.scheduler.Cancel(ctx, requestID); err != nil {
		service.logger.Warn().Err(err).Str("request_id", requestID.String()).Msg("Failed to cancel bidding deadline")
	}
}

// rejectionEvents builds bid.rejected events for the given ids in order
func rejectionEvents(ctx context.Context, tx outbound.Store, req *request.BidRequest, rejected []uuid.UUID, at time.Time) ([]outbound.Event, error) {
	if len(rejected) == 0 {
		return nil, nil
	}

	bids, err := tx.Bids().ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*offer.RetailerBid, len(bids))
	for _, bid := range bids {
		byID[bid.ID] = bid
	}

	events := make([]outbound.Event, 0, len(rejected))
	for _, id := range rejected {
		bid, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: rejected bid %s vanished", shared.ErrIntegrity, id)
		}
		events = append(events, bidEvent(outbound.EventTypeBidRejected, bid, req.BusinessID, at))
	}
	return events, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Microsecond)
	return &v
}

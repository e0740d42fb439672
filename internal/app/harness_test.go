package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"inputbid-service/internal/adapters/db"
	"inputbid-service/internal/adapters/db/dbtest"
	"inputbid-service/internal/app"
	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/ports/inbound"
	"inputbid-service/internal/ports/outbound"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var startTime = time.Date(2026, 4, 6, 8, 0, 0, 0, time.UTC)

type published struct {
	audience outbound.Audience
	event    outbound.Event
}

// recordingBroadcaster keeps every published event in order
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBroadcaster) Subscribe(ctx context.Context, audience outbound.Audience, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (b *recordingBroadcaster) Unsubscribe(ctx context.Context, audience outbound.Audience, clientID string) error {
	return nil
}

func (b *recordingBroadcaster) IsSubscribed(ctx context.Context, audience outbound.Audience, clientID string) bool {
	return false
}

func (b *recordingBroadcaster) Publish(ctx context.Context, audience outbound.Audience, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{audience: audience, event: event})
	return nil
}

// sentTo returns the event types delivered to the audience, in order
func (b *recordingBroadcaster) sentTo(audience outbound.Audience) []outbound.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	var types []outbound.EventType
	for _, p := range b.events {
		if p.audience == audience {
			types = append(types, p.event.Type)
		}
	}
	return types
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
}

func (s *recordingScheduler) Schedule(ctx context.Context, requestID uuid.UUID, dueAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduled == nil {
		s.scheduled = make(map[uuid.UUID]time.Time)
	}
	s.scheduled[requestID] = dueAt
	return nil
}

func (s *recordingScheduler) Cancel(ctx context.Context, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled, requestID)
	return nil
}

// helperT is satisfied by both *testing.T and *rapid.T
type helperT interface {
	require.TestingT
	Helper()
}

type harness struct {
	ctx         context.Context
	clock       *fakeclock.FakeClock
	store       *db.Store
	access      *db.AccessRepository
	broadcaster *recordingBroadcaster
	scheduler   *recordingScheduler
	requests    *app.RequestService
	offers      *app.OfferService
	acceptance  *app.AcceptanceCoordinator
}

func newHarness(t testing.TB) *harness {
	t.Helper()

	conn := dbtest.Open(t)
	h := &harness{
		ctx:         context.Background(),
		clock:       fakeclock.NewFakeClock(startTime),
		store:       db.NewStore(conn),
		access:      db.NewAccessRepository(conn),
		broadcaster: &recordingBroadcaster{},
		scheduler:   &recordingScheduler{},
	}

	logger := zerolog.Nop()
	notifier := app.NewNotifier(app.NotifierParams{Broadcaster: h.broadcaster, Logger: logger})

	h.requests = app.NewRequestService(app.RequestServiceParams{
		Store:     h.store,
		Access:    h.access,
		Notifier:  notifier,
		Scheduler: h.scheduler,
		Clock:     h.clock,
		Logger:    logger,
	})
	h.offers = app.NewOfferService(app.OfferServiceParams{
		Store:    h.store,
		Access:   h.access,
		Notifier: notifier,
		Clock:    h.clock,
		Logger:   logger,
	})
	h.acceptance = app.NewAcceptanceCoordinator(app.AcceptanceCoordinatorParams{
		Store:    h.store,
		Notifier: notifier,
		Clock:    h.clock,
		Logger:   logger,
	})
	return h
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// createRequest creates the two-line request used across tests:
// A = 10 GAL at $2.00, B = 5 BAG at $4.00.
func (h *harness) createRequest(t helperT, businessID uuid.UUID) *request.BidRequest {
	t.Helper()
	req, err := h.requests.CreateRequest(h.ctx, inbound.CreateRequestInput{
		BusinessID: businessID,
		Title:      "Spring burndown",
		Items: []inbound.ItemInput{
			{Category: request.CategoryChemical, ProductName: "Glyphosate", Quantity: dec("10"), Unit: "GAL", ReferencePrice: decPtr("2.00")},
			{Category: request.CategorySeed, ProductName: "Soybean seed", Quantity: dec("5"), Unit: "BAG", ReferencePrice: decPtr("4.00")},
		},
	})
	require.NoError(t, err)
	return req
}

// retailer returns a retailer granted inputs access to the business
func (h *harness) retailer(t helperT, businessID uuid.UUID) uuid.UUID {
	t.Helper()
	retailerID := uuid.New()
	require.NoError(t, h.access.Grant(h.ctx, retailerID, businessID, shared.CapabilityInputs, h.clock.Now()))
	return retailerID
}

func (h *harness) submit(t helperT, req *request.BidRequest, retailerID uuid.UUID, total string) *offer.RetailerBid {
	t.Helper()
	h.clock.Increment(time.Second)
	bid, err := h.offers.SubmitBid(h.ctx, h.bidInput(req, retailerID, total))
	require.NoError(t, err)
	return bid
}

func (h *harness) bidInput(req *request.BidRequest, retailerID uuid.UUID, total string) inbound.SubmitBidInput {
	return inbound.SubmitBidInput{
		RetailerID:             retailerID,
		RequestID:              req.ID,
		TotalDeliveredPrice:    dec(total),
		GuaranteedDeliveryDate: startTime.Add(7 * 24 * time.Hour),
		LineOffers: []inbound.LineOfferInput{
			{RequestItemID: req.Items[0].ID, PricePerUnit: dec("1.90")},
		},
	}
}

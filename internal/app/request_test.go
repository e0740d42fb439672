package app_test

import (
	"testing"
	"time"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/ports/inbound"
	"inputbid-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRequestValidation(t *testing.T) {
	h := newHarness(t)
	businessID := uuid.New()
	past := startTime.Add(-time.Minute)

	valid := func() inbound.CreateRequestInput {
		return inbound.CreateRequestInput{
			BusinessID: businessID,
			Title:      "Fall fertilizer",
			Items: []inbound.ItemInput{
				{Category: request.CategoryFertilizer, ProductName: "Potash", Quantity: dec("2"), Unit: "TON"},
			},
		}
	}

	cases := []struct {
		name   string
		mutate func(*inbound.CreateRequestInput)
		want   error
	}{
		{"no items", func(in *inbound.CreateRequestInput) { in.Items = nil }, shared.ErrRequestItemsEmpty},
		{"blank title", func(in *inbound.CreateRequestInput) { in.Title = "  " }, shared.ErrTitleRequired},
		{"zero quantity", func(in *inbound.CreateRequestInput) { in.Items[0].Quantity = dec("0") }, shared.ErrInvalidQuantity},
		{"negative quantity", func(in *inbound.CreateRequestInput) { in.Items[0].Quantity = dec("-1") }, shared.ErrInvalidQuantity},
		{"unknown category", func(in *inbound.CreateRequestInput) { in.Items[0].Category = "FEED" }, shared.ErrInvalidCategory},
		{"unknown unit", func(in *inbound.CreateRequestInput) { in.Items[0].Unit = "BUSHEL" }, shared.ErrUnknownUnit},
		{"negative reference", func(in *inbound.CreateRequestInput) { in.Items[0].ReferencePrice = decPtr("-0.01") }, shared.ErrInvalidReference},
		{"deadline in the past", func(in *inbound.CreateRequestInput) { in.BidsDueAt = &past }, shared.ErrInvalidDeadline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid()
			tc.mutate(&in)
			_, err := h.requests.CreateRequest(h.ctx, in)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	req, err := h.requests.CreateRequest(h.ctx, valid())
	require.NoError(t, err)
	assert.Equal(t, request.StatusOpen, req.Status)
	assert.Equal(t, "TON", string(req.Items[0].Unit))
}

func TestCreateRequestSchedulesDeadline(t *testing.T) {
	h := newHarness(t)
	due := startTime.Add(24 * time.Hour)

	req, err := h.requests.CreateRequest(h.ctx, inbound.CreateRequestInput{
		BusinessID: uuid.New(),
		Title:      "Seed corn",
		BidsDueAt:  &due,
		Items: []inbound.ItemInput{
			{Category: request.CategorySeed, ProductName: "Corn", Quantity: dec("40"), Unit: "bag"},
		},
	})
	require.NoError(t, err)
	assert.True(t, h.scheduler.scheduled[req.ID].Equal(due))

	require.NoError(t, h.requests.CloseRequest(h.ctx, req.ID, shared.Business(req.BusinessID)))
	assert.NotContains(t, h.scheduler.scheduled, req.ID)
}

func TestCloseRequestTwiceFails(t *testing.T) {
	h := newHarness(t)
	businessID := uuid.New()
	req := h.createRequest(t, businessID)
	owner := shared.Business(businessID)

	require.NoError(t, h.requests.CloseRequest(h.ctx, req.ID, owner))

	err := h.requests.CloseRequest(h.ctx, req.ID, owner)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	got, err := h.requests.GetRequest(h.ctx, req.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, request.StatusClosed, got.Status)
}

func TestCloseRequestRequiresOwner(t *testing.T) {
	h := newHarness(t)
	businessID := uuid.New()
	req := h.createRequest(t, businessID)

	err := h.requests.CloseRequest(h.ctx, req.ID, shared.Business(uuid.New()))
	assert.ErrorIs(t, err, shared.ErrNotAuthorized)

	err = h.requests.CloseRequest(h.ctx, req.ID, shared.Retailer(h.retailer(t, businessID)))
	assert.ErrorIs(t, err, shared.ErrNotAuthorized)

	err = h.requests.CloseRequest(h.ctx, uuid.New(), shared.Business(businessID))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCloseRequestRejectsPendingBids(t *testing.T) {
	h := newHarness(t)
	businessID := uuid.New()
	req := h.createRequest(t, businessID)
	retailerID := h.retailer(t, businessID)
	bid := h.submit(t, req, retailerID, "30.00")
	h.broadcaster.reset()

	require.NoError(t, h.requests.CloseRequest(h.ctx, req.ID, shared.Business(businessID)))

	got, err := h.offers.GetBid(h.ctx, bid.ID, shared.Retailer(retailerID))
	require.NoError(t, err)
	assert.Equal(t, offer.StatusRejected, got.Status)
	assert.NotNil(t, got.DecidedAt)
	assert.Nil(t, got.AcceptedAt)

	assert.Equal(t,
		[]outbound.EventType{outbound.EventTypeBidRejected, outbound.EventTypeRequestClosed},
		h.broadcaster.sentTo(outbound.AudienceOf(shared.Business(businessID))))
	assert.Equal(t,
		[]outbound.EventType{outbound.EventTypeBidRejected},
		h.broadcaster.sentTo(outbound.AudienceOf(shared.Retailer(retailerID))))
}

func TestCloseExpired(t *testing.T) {
	h := newHarness(t)
	businessID := uuid.New()
	req := h.createRequest(t, businessID)

	require.NoError(t, h.requests.CloseExpired(h.ctx, req.ID))
	require.NoError(t, h.requests.CloseExpired(h.ctx, req.ID))
	require.NoError(t, h.requests.CloseExpired(h.ctx, uuid.New()))

	got, err := h.requests.GetRequest(h.ctx, req.ID, shared.Business(businessID))
	require.NoError(t, err)
	assert.True(t, got.IsClosed())
}

func TestDeleteRequest(t *testing.T) {
	h := newHarness(t)
	businessID := uuid.New()
	owner := shared.Business(businessID)

	empty := h.createRequest(t, businessID)
	require.NoError(t, h.requests.DeleteRequest(h.ctx, empty.ID, owner))
	_, err := h.requests.GetRequest(h.ctx, empty.ID, owner)
	assert.ErrorIs(t, err, shared.ErrRequestNotFound)

	withBids := h.createRequest(t, businessID)
	retailerID := h.retailer(t, businessID)
	bid := h.submit(t, withBids, retailerID, "25.00")
	h.broadcaster.reset()

	assert.ErrorIs(t, h.requests.DeleteRequest(h.ctx, withBids.ID, shared.Retailer(retailerID)), shared.ErrNotAuthorized)
	require.NoError(t, h.requests.DeleteRequest(h.ctx, withBids.ID, owner))

	_, err = h.offers.GetBid(h.ctx, bid.ID, shared.Retailer(retailerID))
	assert.ErrorIs(t, err, shared.ErrBidNotFound)
	assert.Equal(t,
		[]outbound.EventType{outbound.EventTypeBidWithdrawn, outbound.EventTypeRequestDeleted},
		h.broadcaster.sentTo(outbound.AudienceOf(owner)))

	closed := h.createRequest(t, businessID)
	require.NoError(t, h.requests.CloseRequest(h.ctx, closed.ID, owner))
	assert.ErrorIs(t, h.requests.DeleteRequest(h.ctx, closed.ID, owner), shared.ErrInvalidState)
}

func TestUpdateNotes(t *testing.T) {
	h := newHarness(t)
	businessID := uuid.New()
	owner := shared.Business(businessID)
	req := h.createRequest(t, businessID)

	updated, err := h.requests.UpdateNotes(h.ctx, req.ID, owner, "deliver to north barn")
	require.NoError(t, err)
	assert.Equal(t, "deliver to north barn", updated.Notes)

	got, err := h.requests.GetRequest(h.ctx, req.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "deliver to north barn", got.Notes)

	require.NoError(t, h.requests.CloseRequest(h.ctx, req.ID, owner))
	_, err = h.requests.UpdateNotes(h.ctx, req.ID, owner, "late")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRequestVisibility(t *testing.T) {
	h := newHarness(t)
	businessID := uuid.New()
	req := h.createRequest(t, businessID)
	approved := h.retailer(t, businessID)
	stranger := uuid.New()

	_, err := h.requests.GetRequest(h.ctx, req.ID, shared.Retailer(approved))
	assert.NoError(t, err)

	_, err = h.requests.GetRequest(h.ctx, req.ID, shared.Retailer(stranger))
	assert.ErrorIs(t, err, shared.ErrNotAuthorized)

	_, err = h.requests.GetRequest(h.ctx, req.ID, shared.Business(uuid.New()))
	assert.ErrorIs(t, err, shared.ErrNotAuthorized)

	visible, err := h.requests.ListRequests(h.ctx, shared.Retailer(approved), inbound.ListRequestsInput{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, req.ID, visible[0].ID)

	hidden, err := h.requests.ListRequests(h.ctx, shared.Retailer(stranger), inbound.ListRequestsInput{})
	require.NoError(t, err)
	assert.Empty(t, hidden)

	own, err := h.requests.ListRequests(h.ctx, shared.Business(businessID), inbound.ListRequestsInput{})
	require.NoError(t, err)
	assert.Len(t, own, 1)
}

func TestRestoreDeadlines(t *testing.T) {
	h := newHarness(t)
	due := startTime.Add(time.Hour)
	req, err := h.requests.CreateRequest(h.ctx, inbound.CreateRequestInput{
		BusinessID: uuid.New(),
		Title:      "Herbicide",
		BidsDueAt:  &due,
		Items: []inbound.ItemInput{
			{Category: request.CategoryChemical, ProductName: "Dicamba", Quantity: dec("3"), Unit: "GAL"},
		},
	})
	require.NoError(t, err)

	h.scheduler.scheduled = nil
	require.NoError(t, h.requests.RestoreDeadlines(h.ctx))
	assert.True(t, h.scheduler.scheduled[req.ID].Equal(due))
}

package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/units"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func scenarioRequest() *request.BidRequest {
	reqID := uuid.New()
	return &request.BidRequest{
		ID:     reqID,
		Status: request.StatusOpen,
		Items: []request.Item{
			{ID: uuid.New(), RequestID: reqID, Category: request.CategoryChemical, ProductName: "A", Quantity: dec("10"), Unit: units.Gallon, ReferencePrice: decPtr("2.00")},
			{ID: uuid.New(), RequestID: reqID, Category: request.CategoryFertilizer, ProductName: "B", Quantity: dec("5"), Unit: units.Bag, ReferencePrice: decPtr("4.00")},
		},
	}
}

func pendingBid(req *request.BidRequest, total string, at time.Time) *offer.RetailerBid {
	return &offer.RetailerBid{
		ID:                  uuid.New(),
		RequestID:           req.ID,
		RetailerID:          uuid.New(),
		Status:              offer.StatusPending,
		TotalDeliveredPrice: dec(total),
		SubmittedAt:         at,
	}
}

func TestSummarizeScenario(t *testing.T) {
	req := scenarioRequest()
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	x := pendingBid(req, "35.00", now)
	y := pendingBid(req, "33.00", now.Add(time.Minute))

	summary := Summarize(req, []*offer.RetailerBid{x, y})

	assert.Equal(t, "40.00", summary.StartingTotal.Total.StringFixed(2))
	assert.Empty(t, summary.StartingTotal.MissingReference)
	require.NotNil(t, summary.BestOffer)
	assert.Equal(t, y.ID, summary.BestOffer.ID)
	require.NotNil(t, summary.Savings)
	assert.Equal(t, "7.00", summary.Savings.Amount.StringFixed(2))
	require.NotNil(t, summary.Savings.Percent)
	assert.Equal(t, "17.50", summary.Savings.Percent.StringFixed(2))
}

func TestStartingTotalFlagsMissingReference(t *testing.T) {
	req := scenarioRequest()
	req.Items[1].ReferencePrice = nil

	start := ComputeStartingTotal(req.Items)

	assert.Equal(t, "20.00", start.Total.StringFixed(2))
	assert.Equal(t, []uuid.UUID{req.Items[1].ID}, start.MissingReference)
}

func TestBestPendingOfferTieBreaksOnSubmission(t *testing.T) {
	req := scenarioRequest()
	now := time.Now()
	late := pendingBid(req, "30", now.Add(time.Second))
	early := pendingBid(req, "30", now)

	best := BestPendingOffer(req, []*offer.RetailerBid{late, early})
	assert.Equal(t, early.ID, best.ID)
}

func TestBestPendingOfferIgnoresDecidedAndClosed(t *testing.T) {
	req := scenarioRequest()
	cheap := pendingBid(req, "10", time.Now())
	cheap.Status = offer.StatusRejected
	other := pendingBid(req, "20", time.Now())

	assert.Equal(t, other.ID, BestPendingOffer(req, []*offer.RetailerBid{cheap, other}).ID)

	req.Status = request.StatusClosed
	assert.Nil(t, BestPendingOffer(req, []*offer.RetailerBid{other}))
}

func TestProjectedSavingsWithoutStartingTotal(t *testing.T) {
	req := scenarioRequest()
	savings := ProjectedSavings(decimal.Zero, pendingBid(req, "12", time.Now()))

	require.NotNil(t, savings)
	assert.Equal(t, "-12", savings.Amount.String())
	assert.Nil(t, savings.Percent)

	assert.Nil(t, ProjectedSavings(dec("40"), nil))
}

func TestLineComparisonNormalizesUnits(t *testing.T) {
	req := scenarioRequest()
	chem := req.Items[0]
	seed := req.Items[1]
	quart := units.Quart
	pound := units.Pound

	// 0.60/qt is 2.40/gal, cheaper than 2.50/gal.
	perQuart := pendingBid(req, "34", time.Now())
	perQuart.Items = []offer.BidItem{{RequestItemID: chem.ID, PricePerUnit: dec("0.60"), Unit: &quart}}
	perGallon := pendingBid(req, "36", time.Now())
	perGallon.Items = []offer.BidItem{
		{RequestItemID: chem.ID, PricePerUnit: dec("2.50")},
		{RequestItemID: seed.ID, PricePerUnit: dec("3.90"), Unit: &pound},
	}

	lines := LineComparison(req, []*offer.RetailerBid{perQuart, perGallon})
	require.Len(t, lines, 2)

	assert.Equal(t, 2, lines[0].Quotes)
	assert.Equal(t, perQuart.ID, *lines[0].BestBidID)
	assert.Equal(t, "2.40", lines[0].BestPrice.StringFixed(2))

	assert.Equal(t, 0, lines[1].Quotes)
	assert.Nil(t, lines[1].BestPrice)
	assert.Equal(t, []uuid.UUID{perGallon.ID}, lines[1].NotComparable)
}

func TestProperty_BestPendingOfferIsMinimal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		req := scenarioRequest()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		n := rapid.IntRange(0, 12).Draw(t, "bids")

		bids := make([]*offer.RetailerBid, 0, n)
		for i := 0; i < n; i++ {
			cents := rapid.Int64Range(1, 10000).Draw(t, "cents")
			b := pendingBid(req, decimal.New(cents, -2).String(), base.Add(time.Duration(rapid.IntRange(0, 5).Draw(t, "offset"))*time.Second))
			b.Status = rapid.SampledFrom([]offer.Status{offer.StatusPending, offer.StatusPending, offer.StatusRejected}).Draw(t, "status")
			bids = append(bids, b)
		}

		best := BestPendingOffer(req, bids)
		var pending int
		for _, b := range bids {
			if !b.IsPending() {
				continue
			}
			pending++
			if best == nil {
				t.Fatalf("pending bid %s exists but no best offer returned", b.ID)
			}
			if b.TotalDeliveredPrice.LessThan(best.TotalDeliveredPrice) {
				t.Fatalf("bid %s at %s is cheaper than best %s", b.ID, b.TotalDeliveredPrice, best.TotalDeliveredPrice)
			}
			if b.TotalDeliveredPrice.Equal(best.TotalDeliveredPrice) && b.SubmittedAt.Before(best.SubmittedAt) {
				t.Fatalf("tie must go to earliest submission")
			}
		}
		if pending == 0 && best != nil {
			t.Fatalf("no pending bids but best offer %s returned", best.ID)
		}
	})
}

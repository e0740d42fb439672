// Package pricing derives advisory, read-only views over a bid request and
// its offers. Nothing here is consulted on the write path.
package pricing

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/units"
)

var hundred = decimal.NewFromInt(100)

// StartingTotal is the buyer's reference cost for the whole request
type StartingTotal struct {
	Total decimal.Decimal `json:"total"`
	// MissingReference lists items that contributed zero because the buyer
	// gave no reference price.
	MissingReference []uuid.UUID `json:"missing_reference,omitempty"`
}

// Savings compares the starting total with the best pending offer
type Savings struct {
	Amount  decimal.Decimal  `json:"amount"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
}

// LineQuote is the lowest pending per-unit price for one request item,
// normalized into the item's unit.
type LineQuote struct {
	RequestItemID uuid.UUID        `json:"request_item_id"`
	Unit          units.Unit       `json:"unit"`
	BestBidID     *uuid.UUID       `json:"best_bid_id,omitempty"`
	BestPrice     *decimal.Decimal `json:"best_price_per_unit,omitempty"`
	Quotes        int              `json:"quotes"`
	NotComparable []uuid.UUID      `json:"not_comparable,omitempty"`
}

// Summary bundles every pricing view for one request
type Summary struct {
	RequestID     uuid.UUID          `json:"request_id"`
	StartingTotal StartingTotal      `json:"starting_total"`
	BestOffer     *offer.RetailerBid `json:"best_offer,omitempty"`
	Savings       *Savings           `json:"savings,omitempty"`
	Lines         []LineQuote        `json:"lines"`
}

// ComputeStartingTotal sums reference price × quantity over the items.
func ComputeStartingTotal(items []request.Item) StartingTotal {
	result := StartingTotal{Total: decimal.Zero}
	for _, item := range items {
		if item.ReferencePrice == nil {
			result.MissingReference = append(result.MissingReference, item.ID)
			continue
		}
		result.Total = result.Total.Add(item.ReferencePrice.Mul(item.Quantity))
	}
	return result
}

// BestPendingOffer returns the cheapest PENDING bid on an OPEN request.
// Ties go to the earliest submission, then to the lowest id so the result
// is deterministic.
func BestPendingOffer(req *request.BidRequest, bids []*offer.RetailerBid) *offer.RetailerBid {
	if req == nil || !req.IsOpen() {
		return nil
	}
	var best *offer.RetailerBid
	for _, b := range bids {
		if b.RequestID != req.ID || !b.IsPending() {
			continue
		}
		if best == nil || better(b, best) {
			best = b
		}
	}
	return best
}

func better(a, b *offer.RetailerBid) bool {
	if c := a.TotalDeliveredPrice.Cmp(b.TotalDeliveredPrice); c != 0 {
		return c < 0
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// ProjectedSavings returns nil when there is no offer to compare against.
func ProjectedSavings(startingTotal decimal.Decimal, best *offer.RetailerBid) *Savings {
	if best == nil {
		return nil
	}
	savings := &Savings{Amount: startingTotal.Sub(best.TotalDeliveredPrice)}
	if startingTotal.IsPositive() {
		pct := savings.Amount.Div(startingTotal).Mul(hundred).Round(2)
		savings.Percent = &pct
	}
	return savings
}

// LineComparison finds, per request item, the lowest pending line price.
func LineComparison(req *request.BidRequest, bids []*offer.RetailerBid) []LineQuote {
	lines := make([]LineQuote, 0, len(req.Items))
	for _, item := range req.Items {
		line := LineQuote{RequestItemID: item.ID, Unit: item.Unit}
		for _, b := range bids {
			if !b.IsPending() {
				continue
			}
			for _, bi := range b.Items {
				if bi.RequestItemID != item.ID {
					continue
				}
				price := bi.PricePerUnit
				if bi.Unit != nil && *bi.Unit != item.Unit {
					converted, err := units.ConvertPrice(bi.PricePerUnit, *bi.Unit, item.Unit)
					if err != nil {
						line.NotComparable = append(line.NotComparable, b.ID)
						continue
					}
					price = converted
				}
				line.Quotes++
				if line.BestPrice == nil || price.LessThan(*line.BestPrice) {
					bidID := b.ID
					line.BestBidID = &bidID
					line.BestPrice = &price
				}
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// Summarize computes every view for the request.
func Summarize(req *request.BidRequest, bids []*offer.RetailerBid) Summary {
	start := ComputeStartingTotal(req.Items)
	best := BestPendingOffer(req, bids)
	return Summary{
		RequestID:     req.ID,
		StartingTotal: start,
		BestOffer:     best,
		Savings:       ProjectedSavings(start.Total, best),
		Lines:         LineComparison(req, bids),
	}
}

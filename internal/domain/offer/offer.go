package offer

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"inputbid-service/internal/domain/units"
)

// Status represents the decision state of a retailer bid
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// RetailerBid is one seller's complete offer against a bid request
type RetailerBid struct {
	ID                     uuid.UUID       `json:"id"`
	RequestID              uuid.UUID       `json:"request_id"`
	RetailerID             uuid.UUID       `json:"retailer_id"`
	Status                 Status          `json:"status"`
	TotalDeliveredPrice    decimal.Decimal `json:"total_delivered_price"`
	GuaranteedDeliveryDate time.Time       `json:"guaranteed_delivery_date"`
	Notes                  string          `json:"notes,omitempty"`
	AcceptedAt             *time.Time      `json:"accepted_at,omitempty"`
	DecidedAt              *time.Time      `json:"decided_at,omitempty"`
	SubmittedAt            time.Time       `json:"submitted_at"`
	Items                  []BidItem       `json:"items"`
}

// BidItem is a seller's per-line price
type BidItem struct {
	ID            uuid.UUID       `json:"id"`
	BidID         uuid.UUID       `json:"bid_id"`
	RequestItemID uuid.UUID       `json:"request_item_id"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	// Unit is the unit the price is quoted in; nil means the request
	// item's own unit.
	Unit *units.Unit `json:"unit,omitempty"`
}

// IsPending returns true while the buyer has not decided on the bid
func (b *RetailerBid) IsPending() bool {
	return b.Status == StatusPending
}

// IsAccepted returns true if the bid won the request
func (b *RetailerBid) IsAccepted() bool {
	return b.Status == StatusAccepted
}

// IsRejected returns true if a sibling bid was accepted
func (b *RetailerBid) IsRejected() bool {
	return b.Status == StatusRejected
}

// Accept marks the bid as accepted
func (b *RetailerBid) Accept(at time.Time) {
	b.Status = StatusAccepted
	b.AcceptedAt = &at
	b.DecidedAt = &at
}

// Reject marks the bid as rejected
func (b *RetailerBid) Reject(at time.Time) {
	b.Status = StatusRejected
	b.DecidedAt = &at
}

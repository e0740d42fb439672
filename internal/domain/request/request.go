package request

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"inputbid-service/internal/domain/units"
)

// Status represents the lifecycle state of a bid request
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Category is the input product family of a request line
type Category string

const (
	CategoryChemical   Category = "CHEMICAL"
	CategoryFertilizer Category = "FERTILIZER"
	CategorySeed       Category = "SEED"
)

// Valid reports whether the category is one of the known input families
func (c Category) Valid() bool {
	switch c {
	case CategoryChemical, CategoryFertilizer, CategorySeed:
		return true
	}
	return false
}

// BidRequest is one buyer's call for quotes
type BidRequest struct {
	ID                  uuid.UUID  `json:"id"`
	BusinessID          uuid.UUID  `json:"business_id"`
	Title               string     `json:"title"`
	Notes               string     `json:"notes,omitempty"`
	DesiredDeliveryDate *time.Time `json:"desired_delivery_date,omitempty"`
	BidsDueAt           *time.Time `json:"bids_due_at,omitempty"`
	Status              Status     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
	Items               []Item     `json:"items"`
}

// Item is one requested line
type Item struct {
	ID             uuid.UUID        `json:"id"`
	RequestID      uuid.UUID        `json:"request_id"`
	Category       Category         `json:"category"`
	ProductName    string           `json:"product_name"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Unit           units.Unit       `json:"unit"`
	ReferencePrice *decimal.Decimal `json:"reference_price,omitempty"`
}

// IsOpen returns true while offers may still be placed
func (r *BidRequest) IsOpen() bool {
	return r.Status == StatusOpen
}

// IsClosed returns true once the request has been closed
func (r *BidRequest) IsClosed() bool {
	return r.Status == StatusClosed
}

// OwnedBy reports whether businessID owns the request.
func (r *BidRequest) OwnedBy(businessID uuid.UUID) bool {
	return r.BusinessID == businessID
}

// Close marks the request as closed. Closing twice keeps the first timestamp.
func (r *BidRequest) Close(at time.Time) {
	if r.IsClosed() {
		return
	}
	r.Status = StatusClosed
	r.ClosedAt = &at
}

// Item returns the request line with the given id.
func (r *BidRequest) Item(itemID uuid.UUID) (Item, bool) {
	for _, item := range r.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}

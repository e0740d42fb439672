package inbound

import (
	"context"
	"time"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/pricing"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestService defines the interface for bid request operations
type RequestService interface {
	// CreateRequest publishes a new OPEN bid request
	CreateRequest(ctx context.Context, req CreateRequestInput) (*request.BidRequest, error)

	// GetRequest retrieves a request visible to the viewer
	GetRequest(ctx context.Context, requestID uuid.UUID, viewer shared.Party) (*request.BidRequest, error)

	// ListRequests retrieves the requests visible to the viewer
	ListRequests(ctx context.Context, viewer shared.Party, req ListRequestsInput) ([]*request.BidRequest, error)

	// UpdateNotes replaces the free-text notes of an OPEN request
	UpdateNotes(ctx context.Context, requestID uuid.UUID, actor shared.Party, notes string) (*request.BidRequest, error)

	// CloseRequest stops a request from receiving further offers
	CloseRequest(ctx context.Context, requestID uuid.UUID, actor shared.Party) error

	// DeleteRequest removes an OPEN request and every offer on it
	DeleteRequest(ctx context.Context, requestID uuid.UUID, actor shared.Party) error

	// PricingSummary derives the advisory pricing views for the owner
	PricingSummary(ctx context.Context, requestID uuid.UUID, actor shared.Party) (*pricing.Summary, error)
}

// OfferService defines the interface for retailer bid operations
type OfferService interface {
	// SubmitBid places a new PENDING bid on an OPEN request
	SubmitBid(ctx context.Context, req SubmitBidInput) (*offer.RetailerBid, error)

	// WithdrawBid deletes a PENDING bid of an OPEN request
	WithdrawBid(ctx context.Context, bidID uuid.UUID, actor shared.Party) error

	// GetBid retrieves one bid visible to the viewer
	GetBid(ctx context.Context, bidID uuid.UUID, viewer shared.Party) (*offer.RetailerBid, error)

	// ListBids retrieves the bids of a request visible to the viewer
	ListBids(ctx context.Context, requestID uuid.UUID, viewer shared.Party) ([]*offer.RetailerBid, error)
}

// AcceptanceService defines the single-winner acceptance operation
type AcceptanceService interface {
	// AcceptBid selects the winning bid of a request
	AcceptBid(ctx context.Context, bidID uuid.UUID, actor shared.Party) (*offer.RetailerBid, error)
}

// request to create a bid request
type CreateRequestInput struct {
	BusinessID          uuid.UUID   `json:"business_id"`
	Title               string      `json:"title"`
	Notes               string      `json:"notes"`
	DesiredDeliveryDate *time.Time  `json:"desired_delivery_date,omitempty"`
	BidsDueAt           *time.Time  `json:"bids_due_at,omitempty"`
	Items               []ItemInput `json:"items"`
}

// one requested line
type ItemInput struct {
	Category       request.Category `json:"category"`
	ProductName    string           `json:"product_name"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Unit           string           `json:"unit"`
	ReferencePrice *decimal.Decimal `json:"reference_price,omitempty"`
}

// request to list bid requests
type ListRequestsInput struct {
	Status   *request.Status `json:"status,omitempty"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// request to place a bid
type SubmitBidInput struct {
	RetailerID             uuid.UUID        `json:"retailer_id"`
	RequestID              uuid.UUID        `json:"request_id"`
	TotalDeliveredPrice    decimal.Decimal  `json:"total_delivered_price"`
	GuaranteedDeliveryDate time.Time        `json:"guaranteed_delivery_date"`
	Notes                  string           `json:"notes"`
	LineOffers             []LineOfferInput `json:"line_offers"`
}

// one per-line price
type LineOfferInput struct {
	RequestItemID uuid.UUID       `json:"request_item_id"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	Unit          string          `json:"unit,omitempty"`
}

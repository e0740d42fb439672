package outbound

import (
	"context"
	"time"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/shared"

	"github.com/google/uuid"
)

// Store is the transactional entry point to persistence. Repositories
// obtained from a Store passed into WithinTx operate on that transaction.
type Store interface {
	Requests() RequestRepository
	Bids() BidRepository

	// WithinTx runs fn in one atomic unit of work. fn's error rolls the
	// transaction back; calling WithinTx on a transactional Store reuses
	// the current transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// RequestRepository defines the interface for bid request data operations
type RequestRepository interface {
	// Create inserts a request together with its items
	Create(ctx context.Context, req *request.BidRequest) error

	// GetByID retrieves a request and its items
	GetByID(ctx context.Context, id uuid.UUID) (*request.BidRequest, error)

	// GetForUpdate retrieves a request and locks its row exclusively until
	// the enclosing transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*request.BidRequest, error)

	// GetForShare retrieves a request and takes a shared lock on its row
	GetForShare(ctx context.Context, id uuid.UUID) (*request.BidRequest, error)

	// ListByBusiness retrieves a buyer's requests, newest first
	ListByBusiness(ctx context.Context, businessID uuid.UUID, status *request.Status, page, pageSize int) ([]*request.BidRequest, error)

	// ListOpenForRetailer retrieves OPEN requests of businesses that granted the capability
	ListOpenForRetailer(ctx context.Context, retailerID uuid.UUID, capability shared.Capability, page, pageSize int) ([]*request.BidRequest, error)

	// ListOpenWithDeadline retrieves OPEN requests that carry a bidding deadline
	ListOpenWithDeadline(ctx context.Context) ([]*request.BidRequest, error)

	// Close transitions OPEN to CLOSED; false means the request was not OPEN
	Close(ctx context.Context, id uuid.UUID, closedAt time.Time) (bool, error)

	// UpdateNotes replaces the notes of an OPEN request
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (bool, error)

	// Delete removes the request, its items, and every bid placed on it
	Delete(ctx context.Context, id uuid.UUID) error
}

// BidRepository defines the interface for retailer bid data operations
type BidRepository interface {
	// Create inserts a bid together with its line items
	Create(ctx context.Context, bid *offer.RetailerBid) error

	// GetByID retrieves a bid and its items
	GetByID(ctx context.Context, id uuid.UUID) (*offer.RetailerBid, error)

	// ListByRequest retrieves all bids for a request in submission order
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*offer.RetailerBid, error)

	// ListByRequestAndRetailer retrieves one retailer's bids for a request
	ListByRequestAndRetailer(ctx context.Context, requestID, retailerID uuid.UUID) ([]*offer.RetailerBid, error)

	// CountByStatus counts a request's bids in the given status
	CountByStatus(ctx context.Context, requestID uuid.UUID, status offer.Status) (int, error)

	// MarkAccepted moves a PENDING bid to ACCEPTED; false means it was not PENDING
	MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// RejectPendingSiblings rejects every other PENDING bid of the request
	// and returns their ids in submission order
	RejectPendingSiblings(ctx context.Context, requestID, acceptedID uuid.UUID, at time.Time) ([]uuid.UUID, error)

	// Delete removes a bid and its line items
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccessGate answers whether a retailer may see and bid on a business's requests
type AccessGate interface {
	HasAccess(ctx context.Context, retailerID, businessID uuid.UUID, capability shared.Capability) (bool, error)
}

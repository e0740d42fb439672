package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these so callers can
// branch with errors.Is without knowing the specific failure.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotAuthorized = errors.New("not authorized")
	ErrInvalidState  = errors.New("invalid state")
	ErrConflict      = errors.New("conflict")
	ErrIntegrity     = errors.New("integrity error")
	ErrNotFound      = errors.New("not found")
)

// Domain-specific errors
var (
	// Bid request errors
	ErrRequestNotFound     = fmt.Errorf("%w: bid request not found", ErrNotFound)
	ErrRequestClosed       = fmt.Errorf("%w: bid request is closed", ErrInvalidState)
	ErrBiddingDeadline     = fmt.Errorf("%w: bids are no longer due for this request", ErrInvalidState)
	ErrRequestItemsEmpty   = fmt.Errorf("%w: bid request needs at least one item", ErrValidation)
	ErrTitleRequired       = fmt.Errorf("%w: title is required", ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	ErrInvalidCategory     = fmt.Errorf("%w: unknown product category", ErrValidation)
	ErrProductNameRequired = fmt.Errorf("%w: product name is required", ErrValidation)
	ErrInvalidReference    = fmt.Errorf("%w: reference price cannot be negative", ErrValidation)
	ErrInvalidDeadline     = fmt.Errorf("%w: bids_due_at must be in the future", ErrValidation)
	ErrNotRequestOwner     = fmt.Errorf("%w: actor does not own the bid request", ErrNotAuthorized)

	// Bid errors
	ErrBidNotFound           = fmt.Errorf("%w: bid not found", ErrNotFound)
	ErrBidAlreadyDecided     = fmt.Errorf("%w: bid already decided", ErrConflict)
	ErrBidNotPending         = fmt.Errorf("%w: bid is not pending", ErrInvalidState)
	ErrInvalidTotalPrice     = fmt.Errorf("%w: total delivered price must be greater than 0", ErrValidation)
	ErrInvalidLinePrice      = fmt.Errorf("%w: price per unit cannot be negative", ErrValidation)
	ErrDeliveryDateRequired  = fmt.Errorf("%w: guaranteed delivery date is required", ErrValidation)
	ErrForeignRequestItem    = fmt.Errorf("%w: line offer targets an item outside the request", ErrValidation)
	ErrDuplicateLineOffer    = fmt.Errorf("%w: two line offers target the same item", ErrValidation)
	ErrAccessDenied          = fmt.Errorf("%w: retailer has no inputs access to this business", ErrNotAuthorized)
	ErrNotBidParticipant     = fmt.Errorf("%w: actor is neither the buyer nor the bidding retailer", ErrNotAuthorized)
	ErrClosedWithoutAccepted = fmt.Errorf("%w: request closed without an accepted bid", ErrIntegrity)

	// Store errors
	ErrConcurrentWrite = fmt.Errorf("%w: concurrent write detected", ErrConflict)

	// Unit errors
	ErrUnknownUnit      = fmt.Errorf("%w: unknown unit of measure", ErrValidation)
	ErrIncompatibleUnit = fmt.Errorf("%w: units measure different dimensions", ErrValidation)

	// Identity errors
	ErrInvalidParty = fmt.Errorf("%w: party kind and id are required", ErrValidation)

	// WebSocket message validation errors
	ErrMessageTypeRequired = fmt.Errorf("%w: message type is required", ErrValidation)
	ErrRequestIDRequired   = fmt.Errorf("%w: request_id is required", ErrValidation)
	ErrUnknownMessageType  = fmt.Errorf("%w: unknown message type", ErrValidation)
)

// KindOf returns the error kind sentinel wrapped by err, or nil for errors
// that are not part of the domain taxonomy.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotAuthorized, ErrNotFound, ErrInvalidState, ErrConflict, ErrIntegrity} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName is the wire name of the error kind, used in API responses.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrValidation:
		return "validation"
	case ErrNotAuthorized:
		return "not_authorized"
	case ErrNotFound:
		return "not_found"
	case ErrInvalidState:
		return "invalid_state"
	case ErrConflict:
		return "conflict"
	case ErrIntegrity:
		return "integrity"
	default:
		return "internal"
	}
}

package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// PartyKind distinguishes buyers from sellers.
type PartyKind string

const (
	PartyBusiness PartyKind = "business"
	PartyRetailer PartyKind = "retailer"
	PartySystem   PartyKind = "system"
)

// Party is the authenticated actor behind an operation
type Party struct {
	Kind PartyKind `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// Business returns a buyer party
func Business(id uuid.UUID) Party {
	return Party{Kind: PartyBusiness, ID: id}
}

// Retailer returns a seller party
func Retailer(id uuid.UUID) Party {
	return Party{Kind: PartyRetailer, ID: id}
}

// System is the engine itself, used for scheduled transitions.
func System() Party {
	return Party{Kind: PartySystem}
}

// ParseParty builds a party from its wire representation.
func ParseParty(kind, id string) (Party, error) {
	partyID, err := uuid.Parse(id)
	if err != nil {
		return Party{}, fmt.Errorf("%w: %v", ErrInvalidParty, err)
	}
	party := Party{Kind: PartyKind(kind), ID: partyID}
	if err := party.Validate(); err != nil {
		return Party{}, err
	}
	return party, nil
}

// Validate rejects unknown kinds and nil identifiers
func (p Party) Validate() error {
	switch p.Kind {
	case PartyBusiness, PartyRetailer:
		if p.ID == uuid.Nil {
			return ErrInvalidParty
		}
		return nil
	default:
		return ErrInvalidParty
	}
}

// IsBusiness reports whether the party is the given buyer business.
func (p Party) IsBusiness(businessID uuid.UUID) bool {
	return p.Kind == PartyBusiness && p.ID == businessID
}

// IsRetailer reports whether the party is the given seller.
func (p Party) IsRetailer(retailerID uuid.UUID) bool {
	return p.Kind == PartyRetailer && p.ID == retailerID
}

func (p Party) String() string {
	if p.Kind == PartySystem {
		return string(PartySystem)
	}
	return fmt.Sprintf("%s:%s", p.Kind, p.ID)
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inputbid-service/internal/domain/shared"

	"github.com/google/uuid"
)

// Access grant states
const (
	accessApproved = "APPROVED"
	accessRevoked  = "REVOKED"
)

// AccessRepository stores which retailers a business approved for a
// capability. It implements outbound.AccessGate.
type AccessRepository struct {
	q       querier
	dialect dialect
}

// NewAccessRepository creates a new access repository
func NewAccessRepository(conn *Connection) *AccessRepository {
	return &AccessRepository{q: conn.GetDB(), dialect: conn.dialect}
}

// HasAccess reports whether an APPROVED grant exists
func (r *AccessRepository) HasAccess(ctx context.Context, retailerID, businessID uuid.UUID, capability shared.Capability) (bool, error) {
	query := `
		SELECT status FROM retailer_access
		WHERE retailer_id = ? AND business_id = ? AND capability = ?
	`

	var status string
	err := r.q.QueryRowContext(ctx, r.dialect.rebind(query), retailerID, businessID, capability).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check retailer access: %w", translateError(err))
	}
	return status == accessApproved, nil
}

// Grant approves the retailer for the capability
func (r *AccessRepository) Grant(ctx context.Context, retailerID, businessID uuid.UUID, capability shared.Capability, at time.Time) error {
	return r.upsert(ctx, retailerID, businessID, capability, accessApproved, at)
}

// Revoke withdraws a previous approval. Revoking an unknown pair records
// the revocation anyway.
func (r *AccessRepository) Revoke(ctx context.Context, retailerID, businessID uuid.UUID, capability shared.Capability, at time.Time) error {
	return r.upsert(ctx, retailerID, businessID, capability, accessRevoked, at)
}

func (r *AccessRepository) upsert(ctx context.Context, retailerID, businessID uuid.UUID, capability shared.Capability, status string, at time.Time) error {
	query := `
		INSERT INTO retailer_access (retailer_id, business_id, capability, status, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (retailer_id, business_id, capability)
		DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
	`

	_, err := r.q.ExecContext(ctx, r.dialect.rebind(query), retailerID, businessID, capability, status, at)
	if err != nil {
		return fmt.Errorf("failed to set retailer access: %w", translateError(err))
	}
	return nil
}

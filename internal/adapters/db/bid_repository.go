package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/domain/units"

	"github.com/google/uuid"
)

const bidColumns = `id, request_id, retailer_id, status, total_delivered_price, guaranteed_delivery_date, notes, accepted_at, decided_at, submitted_at`

// BidRepository implements the retailer bid repository interface
type BidRepository struct {
	q       querier
	dialect dialect
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{q: conn.GetDB(), dialect: conn.dialect}
}

// Create inserts the bid row followed by its line items
func (r *BidRepository) Create(ctx context.Context, bid *offer.RetailerBid) error {
	query := `
		INSERT INTO retailer_bids (` + bidColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, r.dialect.rebind(query),
		bid.ID,
		bid.RequestID,
		bid.RetailerID,
		bid.Status,
		bid.TotalDeliveredPrice,
		bid.GuaranteedDeliveryDate,
		bid.Notes,
		nullTime(bid.AcceptedAt),
		nullTime(bid.DecidedAt),
		bid.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", translateError(err))
	}

	itemQuery := r.dialect.rebind(`
		INSERT INTO bid_items (id, bid_id, request_item_id, price_per_unit, unit)
		VALUES (?, ?, ?, ?, ?)
	`)
	for _, item := range bid.Items {
		var unit sql.NullString
		if item.Unit != nil {
			unit = sql.NullString{String: string(*item.Unit), Valid: true}
		}
		_, err := r.q.ExecContext(ctx, itemQuery,
			item.ID,
			bid.ID,
			item.RequestItemID,
			item.PricePerUnit,
			unit,
		)
		if err != nil {
			return fmt.Errorf("failed to create bid item: %w", translateError(err))
		}
	}

	return nil
}

// GetByID retrieves a bid by ID
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*offer.RetailerBid, error) {
	query := `SELECT ` + bidColumns + ` FROM retailer_bids WHERE id = ?`

	bid, err := scanBid(r.q.QueryRowContext(ctx, r.dialect.rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", translateError(err))
	}

	if err := r.loadItems(ctx, []*offer.RetailerBid{bid}); err != nil {
		return nil, err
	}
	return bid, nil
}

// ListByRequest retrieves all bids for a request in submission order
func (r *BidRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*offer.RetailerBid, error) {
	query := `SELECT ` + bidColumns + ` FROM retailer_bids WHERE request_id = ? ORDER BY submitted_at, id`
	return r.list(ctx, query, requestID)
}

// ListByRequestAndRetailer retrieves one retailer's bids for a request
func (r *BidRepository) ListByRequestAndRetailer(ctx context.Context, requestID, retailerID uuid.UUID) ([]*offer.RetailerBid, error) {
	query := `SELECT ` + bidColumns + ` FROM retailer_bids WHERE request_id = ? AND retailer_id = ? ORDER BY submitted_at, id`
	return r.list(ctx, query, requestID, retailerID)
}

func (r *BidRepository) list(ctx context.Context, query string, args ...any) ([]*offer.RetailerBid, error) {
	rows, err := r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", translateError(err))
	}
	defer rows.Close()

	bids := []*offer.RetailerBid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	rows.Close()

	if err := r.loadItems(ctx, bids); err != nil {
		return nil, err
	}
	return bids, nil
}

// CountByStatus counts a request's bids in the given status
func (r *BidRepository) CountByStatus(ctx context.Context, requestID uuid.UUID, status offer.Status) (int, error) {
	query := `SELECT COUNT(*) FROM retailer_bids WHERE request_id = ? AND status = ?`

	var count int
	if err := r.q.QueryRowContext(ctx, r.dialect.rebind(query), requestID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", translateError(err))
	}
	return count, nil
}

// MarkAccepted moves a PENDING bid to ACCEPTED. The status guard in the
// WHERE clause makes a lost race visible as zero affected rows.
func (r *BidRepository) MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE retailer_bids
		SET status = ?, accepted_at = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.q.ExecContext(ctx, r.dialect.rebind(query), offer.StatusAccepted, at, at, id, offer.StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to accept bid: %w", translateError(err))
	}
	return affectedOne(result)
}

// RejectPendingSiblings rejects every other PENDING bid of the request
func (r *BidRepository) RejectPendingSiblings(ctx context.Context, requestID, acceptedID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	selectQuery := `
		SELECT id FROM retailer_bids
		WHERE request_id = ? AND id <> ? AND status = ?
		ORDER BY submitted_at, id` + r.dialect.forUpdate()

	rows, err := r.q.QueryContext(ctx, r.dialect.rebind(selectQuery), requestID, acceptedID, offer.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending bids: %w", translateError(err))
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bid id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending bids: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	args := []any{offer.StatusRejected, at, offer.StatusPending}
	for _, id := range ids {
		args = append(args, id)
	}
	updateQuery := `
		UPDATE retailer_bids
		SET status = ?, decided_at = ?
		WHERE status = ? AND id IN (` + placeholders(len(ids)) + `)
	`
	if _, err := r.q.ExecContext(ctx, r.dialect.rebind(updateQuery), args...); err != nil {
		return nil, fmt.Errorf("failed to reject pending bids: %w", translateError(err))
	}

	return ids, nil
}

// Delete removes a bid and its line items
func (r *BidRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM retailer_bids WHERE id = ?`

	result, err := r.q.ExecContext(ctx, r.dialect.rebind(query), id)
	if err != nil {
		return fmt.Errorf("failed to delete bid: %w", translateError(err))
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrBidNotFound
	}
	return nil
}

func (r *BidRepository) loadItems(ctx context.Context, bids []*offer.RetailerBid) error {
	if len(bids) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*offer.RetailerBid, len(bids))
	args := make([]any, 0, len(bids))
	for _, bid := range bids {
		bid.Items = []offer.BidItem{}
		byID[bid.ID] = bid
		args = append(args, bid.ID)
	}

	query := `
		SELECT id, bid_id, request_item_id, price_per_unit, unit
		FROM bid_items
		WHERE bid_id IN (` + placeholders(len(args)) + `)
		ORDER BY bid_id, id
	`
	rows, err := r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to get bid items: %w", translateError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var item offer.BidItem
		var unit sql.NullString
		if err := rows.Scan(&item.ID, &item.BidID, &item.RequestItemID, &item.PricePerUnit, &unit); err != nil {
			return fmt.Errorf("failed to scan bid item: %w", err)
		}
		if unit.Valid {
			u := units.Unit(unit.String)
			item.Unit = &u
		}
		if bid, ok := byID[item.BidID]; ok {
			bid.Items = append(bid.Items, item)
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating bid items: %w", err)
	}
	return nil
}

func scanBid(row rowScanner) (*offer.RetailerBid, error) {
	var bid offer.RetailerBid
	var accepted, decided sql.NullTime
	err := row.Scan(
		&bid.ID,
		&bid.RequestID,
		&bid.RetailerID,
		&bid.Status,
		&bid.TotalDeliveredPrice,
		&bid.GuaranteedDeliveryDate,
		&bid.Notes,
		&accepted,
		&decided,
		&bid.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	bid.AcceptedAt = timePtr(accepted)
	bid.DecidedAt = timePtr(decided)
	return &bid, nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const requestColumns = `id, business_id, title, notes, desired_delivery_date, bids_due_at, status, created_at, closed_at`

// RequestRepository implements the bid request repository interface
type RequestRepository struct {
	q       querier
	dialect dialect
}

// NewRequestRepository creates a new bid request repository
func NewRequestRepository(conn *Connection) *RequestRepository {
	return &RequestRepository{q: conn.GetDB(), dialect: conn.dialect}
}

// Create inserts the request row followed by its items in order
func (r *RequestRepository) Create(ctx context.Context, req *request.BidRequest) error {
	query := `
		INSERT INTO bid_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, r.dialect.rebind(query),
		req.ID,
		req.BusinessID,
		req.Title,
		req.Notes,
		nullTime(req.DesiredDeliveryDate),
		nullTime(req.BidsDueAt),
		req.Status,
		req.CreatedAt,
		nullTime(req.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create bid request: %w", translateError(err))
	}

	itemQuery := r.dialect.rebind(`
		INSERT INTO bid_request_items (id, request_id, position, category, product_name, quantity, unit, reference_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for i, item := range req.Items {
		_, err := r.q.ExecContext(ctx, itemQuery,
			item.ID,
			req.ID,
			i,
			item.Category,
			item.ProductName,
			item.Quantity,
			item.Unit,
			nullDecimal(item.ReferencePrice),
		)
		if err != nil {
			return fmt.Errorf("failed to create bid request item: %w", translateError(err))
		}
	}

	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*request.BidRequest, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate retrieves a request and holds an exclusive row lock
func (r *RequestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*request.BidRequest, error) {
	return r.get(ctx, id, r.dialect.forUpdate())
}

// GetForShare retrieves a request and holds a shared row lock
func (r *RequestRepository) GetForShare(ctx context.Context, id uuid.UUID) (*request.BidRequest, error) {
	return r.get(ctx, id, r.dialect.forShare())
}

func (r *RequestRepository) get(ctx context.Context, id uuid.UUID, lock string) (*request.BidRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM bid_requests WHERE id = ?` + lock

	req, err := scanRequest(r.q.QueryRowContext(ctx, r.dialect.rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get bid request: %w", translateError(err))
	}

	if err := r.loadItems(ctx, []*request.BidRequest{req}); err != nil {
		return nil, err
	}
	return req, nil
}

// ListByBusiness retrieves a buyer's requests, newest first
func (r *RequestRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, status *request.Status, page, pageSize int) ([]*request.BidRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM bid_requests WHERE business_id = ?`
	args := []any{businessID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	limit, offset := pagination(page, pageSize)
	args = append(args, limit, offset)

	return r.list(ctx, query, args...)
}

// ListOpenForRetailer retrieves OPEN requests of businesses that approved the capability for the retailer
func (r *RequestRepository) ListOpenForRetailer(ctx context.Context, retailerID uuid.UUID, capability shared.Capability, page, pageSize int) ([]*request.BidRequest, error) {
	query := `
		SELECT r.id, r.business_id, r.title, r.notes, r.desired_delivery_date, r.bids_due_at, r.status, r.created_at, r.closed_at
		FROM bid_requests r
		JOIN retailer_access a ON a.business_id = r.business_id
		WHERE a.retailer_id = ? AND a.capability = ? AND a.status = ? AND r.status = ?
		ORDER BY r.created_at DESC, r.id
		LIMIT ? OFFSET ?
	`
	limit, offset := pagination(page, pageSize)

	return r.list(ctx, query, retailerID, capability, accessApproved, request.StatusOpen, limit, offset)
}

// ListOpenWithDeadline retrieves OPEN requests that carry bids_due_at
func (r *RequestRepository) ListOpenWithDeadline(ctx context.Context) ([]*request.BidRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM bid_requests WHERE status = ? AND bids_due_at IS NOT NULL ORDER BY bids_due_at`
	return r.list(ctx, query, request.StatusOpen)
}

func (r *RequestRepository) list(ctx context.Context, query string, args ...any) ([]*request.BidRequest, error) {
	rows, err := r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bid requests: %w", translateError(err))
	}
	defer rows.Close()

	var reqs []*request.BidRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid request: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bid requests: %w", err)
	}
	rows.Close()

	if err := r.loadItems(ctx, reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// Close moves an OPEN request to CLOSED with a conditional update
func (r *RequestRepository) Close(ctx context.Context, id uuid.UUID, closedAt time.Time) (bool, error) {
	query := `UPDATE bid_requests SET status = ?, closed_at = ? WHERE id = ? AND status = ?`

	result, err := r.q.ExecContext(ctx, r.dialect.rebind(query), request.StatusClosed, closedAt, id, request.StatusOpen)
	if err != nil {
		return false, fmt.Errorf("failed to close bid request: %w", translateError(err))
	}
	return affectedOne(result)
}

// UpdateNotes replaces the notes of an OPEN request
func (r *RequestRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (bool, error) {
	query := `UPDATE bid_requests SET notes = ? WHERE id = ? AND status = ?`

	result, err := r.q.ExecContext(ctx, r.dialect.rebind(query), notes, id, request.StatusOpen)
	if err != nil {
		return false, fmt.Errorf("failed to update bid request notes: %w", translateError(err))
	}
	return affectedOne(result)
}

// Delete removes a request; items, bids and bid items cascade
func (r *RequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM bid_requests WHERE id = ?`

	result, err := r.q.ExecContext(ctx, r.dialect.rebind(query), id)
	if err != nil {
		return fmt.Errorf("failed to delete bid request: %w", translateError(err))
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrRequestNotFound
	}
	return nil
}

func (r *RequestRepository) loadItems(ctx context.Context, reqs []*request.BidRequest) error {
	if len(reqs) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*request.BidRequest, len(reqs))
	args := make([]any, 0, len(reqs))
	for _, req := range reqs {
		req.Items = []request.Item{}
		byID[req.ID] = req
		args = append(args, req.ID)
	}

	query := `
		SELECT id, request_id, category, product_name, quantity, unit, reference_price
		FROM bid_request_items
		WHERE request_id IN (` + placeholders(len(args)) + `)
		ORDER BY request_id, position
	`
	rows, err := r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to get bid request items: %w", translateError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var item request.Item
		var ref decimal.NullDecimal
		err := rows.Scan(
			&item.ID,
			&item.RequestID,
			&item.Category,
			&item.ProductName,
			&item.Quantity,
			&item.Unit,
			&ref,
		)
		if err != nil {
			return fmt.Errorf("failed to scan bid request item: %w", err)
		}
		if ref.Valid {
			item.ReferencePrice = &ref.Decimal
		}
		if req, ok := byID[item.RequestID]; ok {
			req.Items = append(req.Items, item)
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating bid request items: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*request.BidRequest, error) {
	var req request.BidRequest
	var desired, due, closed sql.NullTime
	err := row.Scan(
		&req.ID,
		&req.BusinessID,
		&req.Title,
		&req.Notes,
		&desired,
		&due,
		&req.Status,
		&req.CreatedAt,
		&closed,
	)
	if err != nil {
		return nil, err
	}
	req.DesiredDeliveryDate = timePtr(desired)
	req.BidsDueAt = timePtr(due)
	req.ClosedAt = timePtr(closed)
	return &req, nil
}

func pagination(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}

func affectedOne(result sql.Result) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

func scanRequest(row pgx.Row) (*lifecycle.ServiceRequest, error) {
	var r lifecycle.ServiceRequest
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.WorkerID, &r.ListingType, &r.Price, &r.Duration, &r.ScheduledAt,
		&r.Address, &r.Message, &r.Status, &r.IsPaid, &r.PaymentRef, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateRequest(ctx context.Context, req *lifecycle.ServiceRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO service_requests
			(id, customer_id, worker_id, listing_type, price, duration, scheduled_at,
			 address, message, status, is_paid, payment_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		req.ID, req.CustomerID, req.WorkerID, req.ListingType, req.Price, req.Duration, req.ScheduledAt,
		req.Address, req.Message, req.Status, req.IsPaid, req.PaymentRef, req.CreatedAt, req.UpdatedAt,
	)
	return errors.Wrap(err, "insert service request")
}

func (s *Store) GetRequest(ctx context.Context, id string) (*lifecycle.ServiceRequest, error) {
	req, err := scanRequest(s.pool.QueryRow(ctx, `
		SELECT id, customer_id, worker_id, listing_type, price, duration, scheduled_at,
		       address, message, status, is_paid, payment_ref, created_at, updated_at
		FROM service_requests WHERE id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err, "request", id)
	}
	return req, nil
}

// UpdateRequestStatus only writes when the row still holds expected.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, expected, next lifecycle.Status, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE service_requests SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, expected, next, at,
	)
	if err != nil {
		return false, errors.Wrap(err, "update request status")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListRequests(ctx context.Context, f lifecycle.RequestFilter) ([]lifecycle.ServiceRequest, error) {
	query, args, err := listRequestsQuery(f)
	if err != nil {
		return nil, errors.Wrap(err, "build request list query")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list requests")
	}
	defer rows.Close()

	out := make([]lifecycle.ServiceRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan request")
		}
		out = append(out, *req)
	}
	return out, errors.Wrap(rows.Err(), "iterate requests")
}

func (s *Store) MarkRequestPaid(ctx context.Context, id, paymentRef string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE service_requests SET is_paid = TRUE, payment_ref = $2, updated_at = $3
		WHERE id = $1 AND status = 'completed' AND is_paid = FALSE`,
		id, paymentRef, at,
	)
	if err != nil {
		return false, errors.Wrap(err, "mark request paid")
	}
	return tag.RowsAffected() == 1, nil
}

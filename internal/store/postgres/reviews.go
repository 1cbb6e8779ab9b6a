package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

func scanReview(row pgx.Row) (*lifecycle.Review, error) {
	var r lifecycle.Review
	if err := row.Scan(&r.ID, &r.RequestID, &r.CustomerID, &r.WorkerID, &r.WorkerProfileID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateReview(ctx context.Context, review *lifecycle.Review) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reviews (id, request_id, customer_id, worker_id, worker_profile_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		review.ID, review.RequestID, review.CustomerID, review.WorkerID, review.WorkerProfileID,
		review.Rating, review.Comment, review.CreatedAt,
	)
	if isUniqueViolation(err) {
		return lifecycle.ErrDuplicateReview
	}
	return errors.Wrap(err, "insert review")
}

func (s *Store) DeleteReview(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete review")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(lifecycle.ErrNotFound, "review %s", id)
	}
	return nil
}

func (s *Store) GetReviewByRequest(ctx context.Context, requestID string) (*lifecycle.Review, error) {
	r, err := scanReview(s.pool.QueryRow(ctx, `
		SELECT id, request_id, customer_id, worker_id, worker_profile_id, rating, comment, created_at
		FROM reviews WHERE request_id = $1`, requestID))
	if err != nil {
		return nil, mapNoRows(err, "review for request", requestID)
	}
	return r, nil
}

func (s *Store) ListReviewsForProfile(ctx context.Context, profileID string) ([]lifecycle.Review, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, customer_id, worker_id, worker_profile_id, rating, comment, created_at
		FROM reviews WHERE worker_profile_id = $1
		ORDER BY created_at DESC, id`, profileID)
	if err != nil {
		return nil, errors.Wrap(err, "list reviews")
	}
	defer rows.Close()

	out := make([]lifecycle.Review, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan review")
		}
		out = append(out, *r)
	}
	return out, errors.Wrap(rows.Err(), "iterate reviews")
}

func (s *Store) UpdateProfileRating(ctx context.Context, profileID string, summary lifecycle.RatingSummary) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE worker_profiles SET rating = $2, total_reviews = $3 WHERE id = $1`,
		profileID, summary.Average, summary.Count,
	)
	if err != nil {
		return errors.Wrap(err, "update profile rating")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(lifecycle.ErrNotFound, "worker profile %s", profileID)
	}
	return nil
}

func (s *Store) WorkerProfileID(ctx context.Context, workerUserID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM worker_profiles WHERE user_id = $1`, workerUserID).Scan(&id)
	if err != nil {
		return "", mapNoRows(err, "worker profile for user", workerUserID)
	}
	return id, nil
}

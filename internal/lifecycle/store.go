package lifecycle

import (
	"context"
	"time"
)

// RequestStore persists service requests.
//
// UpdateRequestStatus and MarkRequestPaid are conditional writes: they return
// false, nil when the stored document no longer matches the expectation.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *ServiceRequest) error
	GetRequest(ctx context.Context, id string) (*ServiceRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, expected, next Status, at time.Time) (bool, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]ServiceRequest, error)
	MarkRequestPaid(ctx context.Context, id, paymentRef string, at time.Time) (bool, error)
}

// ReviewStore persists reviews and the rating aggregate they feed.
//
// CreateReview must return ErrDuplicateReview when a review for the same
// request already exists. DeleteReview removes a review whose rating
// recompute could not be written.
type ReviewStore interface {
	CreateReview(ctx context.Context, review *Review) error
	DeleteReview(ctx context.Context, id string) error
	GetReviewByRequest(ctx context.Context, requestID string) (*Review, error)
	ListReviewsForProfile(ctx context.Context, profileID string) ([]Review, error)
	UpdateProfileRating(ctx context.Context, profileID string, summary RatingSummary) error
	WorkerProfileID(ctx context.Context, workerUserID string) (string, error)
}

type Store interface {
	RequestStore
	ReviewStore
}

package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	maxCommentLength    = 1000
	ratingWriteAttempts = 2
)

// CompletionHook runs once for the transition that lands a request on completed.
type CompletionHook interface {
	OnCompleted(ctx context.Context, req ServiceRequest) error
}

// TransitionListener observes every applied transition.
type TransitionListener interface {
	OnTransition(ctx context.Context, req ServiceRequest, from Status)
}

// RatingListener observes rating recomputations.
type RatingListener interface {
	OnRatingChanged(ctx context.Context, profileID string, summary RatingSummary)
}

type Option func(*Manager)

func WithCompletionHook(h CompletionHook) Option {
	return func(m *Manager) { m.completionHooks = append(m.completionHooks, h) }
}

func WithTransitionListener(l TransitionListener) Option {
	return func(m *Manager) { m.transitionListeners = append(m.transitionListeners, l) }
}

func WithRatingListener(l RatingListener) Option {
	return func(m *Manager) { m.ratingListeners = append(m.ratingListeners, l) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the service request state machine and the review/rating
// side effects that hang off its terminal states.
type Manager struct {
	store  Store
	locker Locker
	now    func() time.Time

	completionHooks     []CompletionHook
	transitionListeners []TransitionListener
	ratingListeners     []RatingListener
}

func NewManager(store Store, locker Locker, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a new request in pending on behalf of a customer.
func (m *Manager) Create(ctx context.Context, actor Actor, workerID string, terms Terms) (*ServiceRequest, error) {
	if actor.Role != RoleCustomer || actor.UserID == "" {
		return nil, errors.Wrap(ErrInvalidRole, "only customers can create requests")
	}
	if workerID == "" {
		return nil, errors.Wrap(ErrInvalidInput, "worker_id is required")
	}
	if workerID == actor.UserID {
		return nil, errors.Wrap(ErrInvalidInput, "you cannot request your own services")
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if _, err := m.store.WorkerProfileID(ctx, workerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "worker %s", workerID)
		}
		return nil, errors.Wrap(err, "lookup worker")
	}

	now := m.now()
	req := &ServiceRequest{
		ID:          uuid.New().String(),
		CustomerID:  actor.UserID,
		WorkerID:    workerID,
		ListingType: terms.ListingType,
		Price:       terms.Price,
		Duration:    terms.Duration,
		ScheduledAt: terms.ScheduledAt,
		Address:     terms.Address,
		Message:     terms.Message,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.CreateRequest(ctx, req); err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	log.Ctx(ctx).Info().
		Str("request_id", req.ID).
		Str("customer_id", req.CustomerID).
		Str("worker_id", req.WorkerID).
		Msg("service request created")
	return req, nil
}

// Transition moves a request to target on behalf of actor. The write is
// conditioned on the status observed at load time, so of two racing calls
// at most one is applied.
func (m *Manager) Transition(ctx context.Context, requestID string, actor Actor, target Status) (*ServiceRequest, error) {
	req, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	from := req.Status

	if !CanTransition(from, target) {
		recordTransition(from, target, "illegal")
		return nil, errors.Wrapf(ErrIllegalTransition, "%s -> %s", from, target)
	}
	if !Permits(req, actor, from, target) {
		recordTransition(from, target, "forbidden")
		return nil, errors.Wrapf(ErrForbidden, "%s may not move request %s -> %s", actor.Role, from, target)
	}

	at := m.now()
	applied, err := m.store.UpdateRequestStatus(ctx, req.ID, from, target, at)
	if err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	if !applied {
		recordTransition(from, target, "conflict")
		return nil, m.lostRace(ctx, requestID, from, target)
	}

	req.Status = target
	req.UpdatedAt = at
	recordTransition(from, target, "applied")

	log.Ctx(ctx).Info().
		Str("request_id", req.ID).
		Str("from", string(from)).
		Str("to", string(target)).
		Str("actor", actor.UserID).
		Msg("request status changed")

	m.afterTransition(ctx, *req, from)
	return req, nil
}

// lostRace classifies a failed conditional update. If the request already
// moved somewhere target is unreachable from, the caller gets
// ErrIllegalTransition; otherwise ErrConflict tells it to reload and retry.
func (m *Manager) lostRace(ctx context.Context, requestID string, from, target Status) error {
	current, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if current.Status != from && !CanTransition(current.Status, target) {
		return errors.Wrapf(ErrIllegalTransition, "request moved to %s", current.Status)
	}
	return errors.Wrapf(ErrConflict, "expected %s, found %s", from, current.Status)
}

func (m *Manager) afterTransition(ctx context.Context, req ServiceRequest, from Status) {
	for _, l := range m.transitionListeners {
		l.OnTransition(ctx, req, from)
	}
	if req.Status == StatusCompleted {
		m.onCompleted(ctx, req)
	}
}

// onCompleted opens the review gate and payment eligibility. Both gates are
// derived from the stored status, so the hooks here only notify.
func (m *Manager) onCompleted(ctx context.Context, req ServiceRequest) {
	for _, h := range m.completionHooks {
		if err := h.OnCompleted(ctx, req); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("request_id", req.ID).Msg("completion hook failed")
		}
	}
}

// RecordReview stores the customer's review of a completed request and
// recomputes the worker profile rating from every review it has.
func (m *Manager) RecordReview(ctx context.Context, requestID string, actor Actor, rating int, comment string) (*Review, RatingSummary, error) {
	if rating < 1 || rating > 5 {
		return nil, RatingSummary{}, errors.Wrap(ErrInvalidInput, "rating must be between 1 and 5")
	}
	if len(comment) > maxCommentLength {
		return nil, RatingSummary{}, errors.Wrap(ErrInvalidInput, "comment too long (max 1000 characters)")
	}

	req, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, RatingSummary{}, err
	}
	if actor.Role != RoleCustomer || actor.UserID != req.CustomerID {
		reviewsTotal.WithLabelValues("forbidden").Inc()
		return nil, RatingSummary{}, errors.Wrap(ErrForbidden, "only the request's customer can review it")
	}
	if req.Status != StatusCompleted {
		reviewsTotal.WithLabelValues("not_completed").Inc()
		return nil, RatingSummary{}, errors.Wrapf(ErrNotCompleted, "status is %s", req.Status)
	}
	if _, err := m.store.GetReviewByRequest(ctx, requestID); err == nil {
		reviewsTotal.WithLabelValues("duplicate").Inc()
		return nil, RatingSummary{}, ErrDuplicateReview
	} else if !errors.Is(err, ErrNotFound) {
		return nil, RatingSummary{}, errors.Wrap(err, "check existing review")
	}

	profileID, err := m.store.WorkerProfileID(ctx, req.WorkerID)
	if err != nil {
		return nil, RatingSummary{}, errors.Wrapf(err, "worker profile for %s", req.WorkerID)
	}

	// The profile lock covers the insert too, so a review never lands
	// without its aggregate being rewritten under the same lock.
	unlock, err := m.locker.Lock(ctx, ratingLockKey(profileID))
	if err != nil {
		return nil, RatingSummary{}, errors.Wrap(err, "lock profile rating")
	}
	defer unlock()

	review := &Review{
		ID:              uuid.New().String(),
		RequestID:       req.ID,
		CustomerID:      req.CustomerID,
		WorkerID:        req.WorkerID,
		WorkerProfileID: profileID,
		Rating:          rating,
		Comment:         comment,
		CreatedAt:       m.now(),
	}
	if err := m.store.CreateReview(ctx, review); err != nil {
		if errors.Is(err, ErrDuplicateReview) {
			reviewsTotal.WithLabelValues("duplicate").Inc()
			return nil, RatingSummary{}, ErrDuplicateReview
		}
		return nil, RatingSummary{}, errors.Wrap(err, "create review")
	}

	summary, err := m.recompute(ctx, profileID)
	if err != nil {
		// Take the review back out so the aggregate still matches the
		// review set and the customer can submit again.
		if derr := m.store.DeleteReview(ctx, review.ID); derr != nil {
			log.Ctx(ctx).Error().Err(derr).
				Str("request_id", req.ID).
				Str("profile_id", profileID).
				Msg("failed to roll back review after rating recompute failure")
		}
		reviewsTotal.WithLabelValues("failed").Inc()
		return nil, RatingSummary{}, err
	}
	reviewsTotal.WithLabelValues("created").Inc()

	m.notifyRating(ctx, profileID, summary)
	return review, summary, nil
}

// RecomputeRating rebuilds a profile's rating from a full re-read of its
// reviews. It holds the profile's lock for the read-compute-write.
func (m *Manager) RecomputeRating(ctx context.Context, profileID string) (RatingSummary, error) {
	unlock, err := m.locker.Lock(ctx, ratingLockKey(profileID))
	if err != nil {
		return RatingSummary{}, errors.Wrap(err, "lock profile rating")
	}
	defer unlock()

	summary, err := m.recompute(ctx, profileID)
	if err != nil {
		return RatingSummary{}, err
	}
	m.notifyRating(ctx, profileID, summary)
	return summary, nil
}

func ratingLockKey(profileID string) string {
	return "rating:" + profileID
}

// recompute expects the caller to hold the profile's rating lock. The
// aggregate write is attempted twice before giving up.
func (m *Manager) recompute(ctx context.Context, profileID string) (RatingSummary, error) {
	timer := time.Now()
	reviews, err := m.store.ListReviewsForProfile(ctx, profileID)
	if err != nil {
		return RatingSummary{}, errors.Wrap(err, "list reviews")
	}
	ratings := make([]int, len(reviews))
	for i, r := range reviews {
		ratings[i] = r.Rating
	}
	summary := ComputeRating(ratings)

	for attempt := 1; ; attempt++ {
		err = m.store.UpdateProfileRating(ctx, profileID, summary)
		if err == nil {
			break
		}
		if attempt == ratingWriteAttempts || ctx.Err() != nil {
			return RatingSummary{}, errors.Wrap(err, "update profile rating")
		}
		log.Ctx(ctx).Warn().Err(err).Str("profile_id", profileID).Msg("profile rating write failed, retrying")
	}
	ratingRecompute.Observe(time.Since(timer).Seconds())

	log.Ctx(ctx).Debug().
		Str("profile_id", profileID).
		Float64("rating", summary.Average).
		Int("total_reviews", summary.Count).
		Msg("profile rating recomputed")
	return summary, nil
}

func (m *Manager) notifyRating(ctx context.Context, profileID string, summary RatingSummary) {
	for _, l := range m.ratingListeners {
		l.OnRatingChanged(ctx, profileID, summary)
	}
}

// Get returns a request readable by either party or an admin.
func (m *Manager) Get(ctx context.Context, requestID string, actor Actor) (*ServiceRequest, error) {
	req, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleAdmin && !req.IsParty(actor.UserID) {
		return nil, errors.Wrap(ErrForbidden, "not a party to this request")
	}
	return req, nil
}

// List returns the requests visible to actor: workers see requests addressed
// to them, admins see everything, everyone else sees what they created.
// Party fields on filter are overwritten by the actor's scope.
func (m *Manager) List(ctx context.Context, actor Actor, filter RequestFilter) ([]ServiceRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.Wrapf(ErrInvalidInput, "unknown status %q", filter.Status)
	}
	switch actor.Role {
	case RoleAdmin:
	case RoleWorker:
		filter.CustomerID = ""
		filter.WorkerID = actor.UserID
	default:
		filter.CustomerID = actor.UserID
		filter.WorkerID = ""
	}
	return m.store.ListRequests(ctx, filter)
}

// RecordPayment is the payment collaborator's entry point: it flags a
// completed request as paid. It never changes status.
func (m *Manager) RecordPayment(ctx context.Context, requestID, paymentRef string) (*ServiceRequest, error) {
	if paymentRef == "" {
		return nil, errors.Wrap(ErrInvalidInput, "payment_ref is required")
	}
	at := m.now()
	applied, err := m.store.MarkRequestPaid(ctx, requestID, paymentRef, at)
	if err != nil {
		return nil, errors.Wrap(err, "mark paid")
	}

	req, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !applied {
		if req.Status != StatusCompleted {
			return nil, errors.Wrapf(ErrNotCompleted, "status is %s", req.Status)
		}
		return nil, errors.Wrap(ErrConflict, "request already paid")
	}

	log.Ctx(ctx).Info().Str("request_id", req.ID).Str("payment_ref", paymentRef).Msg("request marked paid")
	return req, nil
}

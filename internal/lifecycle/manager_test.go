package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/store/memory"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

var (
	customer = lifecycle.Actor{UserID: "c1", Role: lifecycle.RoleCustomer}
	worker   = lifecycle.Actor{UserID: "w1", Role: lifecycle.RoleWorker}
	admin    = lifecycle.Actor{UserID: "a1", Role: lifecycle.RoleAdmin}
	terms    = lifecycle.Terms{ListingType: lifecycle.ListingOnDemand, Price: 500}
)

type fixture struct {
	store     *memory.Store
	mgr       *lifecycle.Manager
	profileID string
}

func newFixture(t *testing.T, opts ...lifecycle.Option) *fixture {
	t.Helper()
	st := memory.New()
	p := &workers.Profile{UserID: worker.UserID, DisplayName: "Wale", Category: "Plumber", Price: 500}
	require.NoError(t, st.UpsertProfile(context.Background(), p))
	return &fixture{
		store:     st,
		mgr:       lifecycle.NewManager(st, lifecycle.NewKeyedLocker(), opts...),
		profileID: p.ID,
	}
}

func (f *fixture) create(t *testing.T) *lifecycle.ServiceRequest {
	t.Helper()
	req, err := f.mgr.Create(context.Background(), customer, worker.UserID, terms)
	require.NoError(t, err)
	return req
}

func (f *fixture) advance(t *testing.T, id string, steps ...lifecycle.Status) {
	t.Helper()
	for _, s := range steps {
		actor := worker
		if s == lifecycle.StatusInProgress {
			actor = customer
		}
		_, err := f.mgr.Transition(context.Background(), id, actor, s)
		require.NoError(t, err)
	}
}

func (f *fixture) profile(t *testing.T) *workers.Profile {
	t.Helper()
	p, err := f.store.GetProfile(context.Background(), f.profileID)
	require.NoError(t, err)
	return p
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.create(t)
	assert.Equal(t, lifecycle.StatusPending, req.Status)
	assert.Equal(t, 500.0, req.Price)
	assert.False(t, req.IsPaid)

	got, err := f.mgr.Transition(ctx, req.ID, worker, lifecycle.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusAccepted, got.Status)

	got, err = f.mgr.Transition(ctx, req.ID, customer, lifecycle.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusInProgress, got.Status)

	got, err = f.mgr.Transition(ctx, req.ID, worker, lifecycle.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, got.Status)

	review, summary, err := f.mgr.RecordReview(ctx, req.ID, customer, 5, "great work")
	require.NoError(t, err)
	assert.Equal(t, f.profileID, review.WorkerProfileID)
	assert.Equal(t, lifecycle.RatingSummary{Average: 5, Count: 1}, summary)

	p := f.profile(t)
	assert.Equal(t, 5.0, p.Rating)
	assert.Equal(t, 1, p.TotalReviews)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Create(ctx, worker, worker.UserID, terms)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidRole)

	_, err = f.mgr.Create(ctx, lifecycle.Actor{UserID: "b1", Role: lifecycle.RoleBusiness}, worker.UserID, terms)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidRole)

	_, err = f.mgr.Create(ctx, customer, "nobody", terms)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, err = f.mgr.Create(ctx, customer, worker.UserID, lifecycle.Terms{ListingType: lifecycle.ListingJob, Price: -5})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidInput)

	_, err = f.mgr.Create(ctx, customer, customer.UserID, terms)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidInput)

	req, err := f.mgr.Create(ctx, customer, worker.UserID, lifecycle.Terms{
		ListingType: lifecycle.ListingProject,
		Price:       1200,
		Duration:    "2 days",
		Address:     &lifecycle.Address{City: "Lagos"},
		Message:     "kitchen sink",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, req.CreatedAt, req.UpdatedAt)

	stored, err := f.store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lagos", stored.Address.City)
	assert.Equal(t, "kitchen sink", stored.Message)
}

func TestTransition_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	_, err := f.mgr.Transition(ctx, "missing", worker, lifecycle.StatusAccepted)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, err = f.mgr.Transition(ctx, req.ID, customer, lifecycle.StatusAccepted)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	_, err = f.mgr.Transition(ctx, req.ID, customer, lifecycle.StatusCancelled)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	_, err = f.mgr.Transition(ctx, req.ID, lifecycle.Actor{UserID: "w2", Role: lifecycle.RoleWorker}, lifecycle.StatusAccepted)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	_, err = f.mgr.Transition(ctx, req.ID, worker, lifecycle.StatusCompleted)
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)

	_, err = f.mgr.Transition(ctx, req.ID, worker, lifecycle.Status("archived"))
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)

	_, err = f.mgr.Transition(ctx, req.ID, worker, lifecycle.StatusPending)
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)

	stored, err := f.store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPending, stored.Status)
}

func TestTransitionToCurrentStatusIsIllegal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		path   []lifecycle.Status
		status lifecycle.Status
	}{
		{nil, lifecycle.StatusPending},
		{[]lifecycle.Status{lifecycle.StatusAccepted}, lifecycle.StatusAccepted},
		{[]lifecycle.Status{lifecycle.StatusAccepted, lifecycle.StatusInProgress}, lifecycle.StatusInProgress},
	}
	for _, tc := range cases {
		req := f.create(t)
		f.advance(t, req.ID, tc.path...)
		for _, actor := range []lifecycle.Actor{customer, worker} {
			_, err := f.mgr.Transition(ctx, req.ID, actor, tc.status)
			assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition, "%s -> %s by %s", tc.status, tc.status, actor.Role)
		}
		stored, err := f.store.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.status, stored.Status)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	completed := f.create(t)
	f.advance(t, completed.ID, lifecycle.StatusAccepted, lifecycle.StatusInProgress, lifecycle.StatusCompleted)
	cancelled := f.create(t)
	f.advance(t, cancelled.ID, lifecycle.StatusCancelled)

	for _, id := range []string{completed.ID, cancelled.ID} {
		for _, target := range lifecycle.Statuses() {
			for _, actor := range []lifecycle.Actor{customer, worker, admin} {
				_, err := f.mgr.Transition(ctx, id, actor, target)
				assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition, "%s -> %s by %s", id, target, actor.Role)
			}
		}
	}
}

func TestWorkerCancelsFromEveryActiveState(t *testing.T) {
	f := newFixture(t)
	paths := [][]lifecycle.Status{
		nil,
		{lifecycle.StatusAccepted},
		{lifecycle.StatusAccepted, lifecycle.StatusInProgress},
	}
	for _, path := range paths {
		req := f.create(t)
		f.advance(t, req.ID, path...)
		got, err := f.mgr.Transition(context.Background(), req.ID, worker, lifecycle.StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusCancelled, got.Status)
	}
}

func TestRecordReview_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	_, _, err := f.mgr.RecordReview(ctx, req.ID, customer, 0, "")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidInput)
	_, _, err = f.mgr.RecordReview(ctx, req.ID, customer, 6, "")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidInput)

	_, _, err = f.mgr.RecordReview(ctx, "missing", customer, 4, "")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, _, err = f.mgr.RecordReview(ctx, req.ID, customer, 4, "")
	assert.ErrorIs(t, err, lifecycle.ErrNotCompleted)

	f.advance(t, req.ID, lifecycle.StatusAccepted, lifecycle.StatusInProgress, lifecycle.StatusCompleted)

	_, _, err = f.mgr.RecordReview(ctx, req.ID, worker, 4, "")
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)
	_, _, err = f.mgr.RecordReview(ctx, req.ID, lifecycle.Actor{UserID: "c2", Role: lifecycle.RoleCustomer}, 4, "")
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	_, _, err = f.mgr.RecordReview(ctx, req.ID, customer, 4, "fine")
	require.NoError(t, err)
	_, _, err = f.mgr.RecordReview(ctx, req.ID, customer, 1, "changed my mind")
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateReview)

	p := f.profile(t)
	assert.Equal(t, 4.0, p.Rating)
	assert.Equal(t, 1, p.TotalReviews)
}

func TestRecordReview_CancelledRequest(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	f.advance(t, req.ID, lifecycle.StatusCancelled)

	_, _, err := f.mgr.RecordReview(context.Background(), req.ID, customer, 5, "")
	assert.ErrorIs(t, err, lifecycle.ErrNotCompleted)
}

func TestRatingIsMeanOfAllReviews(t *testing.T) {
	f := newFixture(t)
	ratings := []int{5, 4, 4}
	for i, r := range ratings {
		c := lifecycle.Actor{UserID: fmt.Sprintf("c%d", i+10), Role: lifecycle.RoleCustomer}
		req, err := f.mgr.Create(context.Background(), c, worker.UserID, terms)
		require.NoError(t, err)
		f.advance(t, req.ID, lifecycle.StatusAccepted)
		_, err = f.mgr.Transition(context.Background(), req.ID, c, lifecycle.StatusInProgress)
		require.NoError(t, err)
		f.advance(t, req.ID, lifecycle.StatusCompleted)
		_, _, err = f.mgr.RecordReview(context.Background(), req.ID, c, r, "")
		require.NoError(t, err)
	}

	p := f.profile(t)
	assert.Equal(t, 4.3, p.Rating)
	assert.Equal(t, 3, p.TotalReviews)
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, l.err
}

// flakyRatingStore fails the next `failures` aggregate writes.
type flakyRatingStore struct {
	*memory.Store
	mu       sync.Mutex
	failures int
}

func (s *flakyRatingStore) UpdateProfileRating(ctx context.Context, profileID string, summary lifecycle.RatingSummary) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("connection reset")
	}
	s.mu.Unlock()
	return s.Store.UpdateProfileRating(ctx, profileID, summary)
}

func completedRequest(t *testing.T, f *fixture) *lifecycle.ServiceRequest {
	t.Helper()
	req := f.create(t)
	f.advance(t, req.ID, lifecycle.StatusAccepted, lifecycle.StatusInProgress, lifecycle.StatusCompleted)
	return req
}

func TestRecordReview_LockFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := completedRequest(t, f)

	broken := lifecycle.NewManager(f.store, failingLocker{err: errors.New("redis down")})
	_, _, err := broken.RecordReview(ctx, req.ID, customer, 5, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock profile rating")

	_, err = f.store.GetReviewByRequest(ctx, req.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	p := f.profile(t)
	assert.Equal(t, 0.0, p.Rating)
	assert.Equal(t, 0, p.TotalReviews)

	_, summary, err := f.mgr.RecordReview(ctx, req.ID, customer, 5, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.RatingSummary{Average: 5, Count: 1}, summary)
}

func TestRecordReview_RetriesRatingWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := completedRequest(t, f)

	st := &flakyRatingStore{Store: f.store, failures: 1}
	mgr := lifecycle.NewManager(st, lifecycle.NewKeyedLocker())
	_, summary, err := mgr.RecordReview(ctx, req.ID, customer, 4, "")
	require.NoError(t, err)
	assert.Equal(t, 4.0, summary.Average)

	p := f.profile(t)
	assert.Equal(t, 4.0, p.Rating)
	assert.Equal(t, 1, p.TotalReviews)
}

func TestRecordReview_RatingWriteFailureRollsBackReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := completedRequest(t, f)

	st := &flakyRatingStore{Store: f.store, failures: 2}
	mgr := lifecycle.NewManager(st, lifecycle.NewKeyedLocker())
	review, _, err := mgr.RecordReview(ctx, req.ID, customer, 3, "")
	require.Error(t, err)
	assert.Nil(t, review)

	_, err = f.store.GetReviewByRequest(ctx, req.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	assert.Equal(t, 0, f.profile(t).TotalReviews)

	_, summary, err := mgr.RecordReview(ctx, req.ID, customer, 3, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.RatingSummary{Average: 3, Count: 1}, summary)
	assert.Equal(t, 3.0, f.profile(t).Rating)
}

// barrierStore holds every status write until n writers have arrived, so
// racing transitions all load the same status first.
type barrierStore struct {
	*memory.Store
	n       int
	mu      sync.Mutex
	arrived int
	release chan struct{}
}

func newBarrierStore(st *memory.Store, n int) *barrierStore {
	return &barrierStore{Store: st, n: n, release: make(chan struct{})}
}

func (b *barrierStore) UpdateRequestStatus(ctx context.Context, id string, expected, next lifecycle.Status, at time.Time) (bool, error) {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.n {
		close(b.release)
	}
	b.mu.Unlock()
	<-b.release
	return b.Store.UpdateRequestStatus(ctx, id, expected, next, at)
}

func TestConcurrentTransitions_ExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)

	bs := newBarrierStore(f.store, 2)
	mgr := lifecycle.NewManager(bs, lifecycle.NewKeyedLocker())

	targets := []lifecycle.Status{lifecycle.StatusAccepted, lifecycle.StatusCancelled}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target lifecycle.Status) {
			defer wg.Done()
			_, errs[i] = mgr.Transition(context.Background(), req.ID, worker, target)
		}(i, target)
	}
	wg.Wait()

	var winner lifecycle.Status
	failures := 0
	for i, err := range errs {
		if err == nil {
			winner = targets[i]
			continue
		}
		failures++
		assert.True(t,
			errorsIsAny(err, lifecycle.ErrConflict, lifecycle.ErrIllegalTransition),
			"unexpected error %v", err)
	}
	require.Equal(t, 1, failures)

	stored, err := f.store.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, winner, stored.Status)
}

type countingHook struct {
	mu    sync.Mutex
	calls []string
}

func (h *countingHook) OnCompleted(_ context.Context, req lifecycle.ServiceRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, req.ID)
	return nil
}

func TestConcurrentCompletion_HookFiresOnce(t *testing.T) {
	hook := &countingHook{}
	f := newFixture(t)
	req := f.create(t)
	f.advance(t, req.ID, lifecycle.StatusAccepted, lifecycle.StatusInProgress)

	mgr := lifecycle.NewManager(newBarrierStore(f.store, 2), lifecycle.NewKeyedLocker(), lifecycle.WithCompletionHook(hook))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []lifecycle.Actor{customer, worker} {
		wg.Add(1)
		go func(i int, actor lifecycle.Actor) {
			defer wg.Done()
			_, errs[i] = mgr.Transition(context.Background(), req.ID, actor, lifecycle.StatusCompleted)
		}(i, actor)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []string{req.ID}, hook.calls)
}

type failingHook struct{}

func (failingHook) OnCompleted(context.Context, lifecycle.ServiceRequest) error {
	return errors.New("smtp down")
}

func TestCompletionHookFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t, lifecycle.WithCompletionHook(failingHook{}))
	req := f.create(t)
	f.advance(t, req.ID, lifecycle.StatusAccepted, lifecycle.StatusInProgress)

	got, err := f.mgr.Transition(context.Background(), req.ID, customer, lifecycle.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, got.Status)
}

func TestConcurrentReviews_RatingMatchesReviewSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 25
	type job struct {
		id     string
		actor  lifecycle.Actor
		rating int
	}
	jobs := make([]job, n)
	for i := range jobs {
		c := lifecycle.Actor{UserID: fmt.Sprintf("cust-%d", i), Role: lifecycle.RoleCustomer}
		req, err := f.mgr.Create(ctx, c, worker.UserID, terms)
		require.NoError(t, err)
		f.advance(t, req.ID, lifecycle.StatusAccepted)
		_, err = f.mgr.Transition(ctx, req.ID, c, lifecycle.StatusInProgress)
		require.NoError(t, err)
		f.advance(t, req.ID, lifecycle.StatusCompleted)
		jobs[i] = job{id: req.ID, actor: c, rating: i%5 + 1}
	}

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			_, _, err := f.mgr.RecordReview(ctx, j.id, j.actor, j.rating, "")
			assert.NoError(t, err)
		}(j)
	}
	wg.Wait()

	reviews, err := f.store.ListReviewsForProfile(ctx, f.profileID)
	require.NoError(t, err)
	ratings := make([]int, len(reviews))
	for i, r := range reviews {
		ratings[i] = r.Rating
	}
	want := lifecycle.ComputeRating(ratings)

	p := f.profile(t)
	assert.Equal(t, n, p.TotalReviews)
	assert.Equal(t, want.Average, p.Rating)
	assert.Equal(t, 3.0, p.Rating)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	other := lifecycle.Actor{UserID: "c2", Role: lifecycle.RoleCustomer}
	_, err := f.mgr.Create(ctx, other, worker.UserID, terms)
	require.NoError(t, err)

	_, err = f.mgr.Get(ctx, req.ID, other)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)
	for _, a := range []lifecycle.Actor{customer, worker, admin} {
		got, err := f.mgr.Get(ctx, req.ID, a)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
	}

	mine, err := f.mgr.List(ctx, customer, lifecycle.RequestFilter{WorkerID: "ignored"})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	assigned, err := f.mgr.List(ctx, worker, lifecycle.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, assigned, 2)

	all, err := f.mgr.List(ctx, admin, lifecycle.RequestFilter{Status: lifecycle.StatusPending})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.mgr.List(ctx, admin, lifecycle.RequestFilter{Status: "archived"})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidInput)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	_, err := f.mgr.RecordPayment(ctx, req.ID, "pay_1")
	assert.ErrorIs(t, err, lifecycle.ErrNotCompleted)

	_, err = f.mgr.RecordPayment(ctx, "missing", "pay_1")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	f.advance(t, req.ID, lifecycle.StatusAccepted, lifecycle.StatusInProgress, lifecycle.StatusCompleted)

	got, err := f.mgr.RecordPayment(ctx, req.ID, "pay_1")
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, lifecycle.StatusCompleted, got.Status)

	_, err = f.mgr.RecordPayment(ctx, req.ID, "pay_2")
	assert.ErrorIs(t, err, lifecycle.ErrConflict)
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

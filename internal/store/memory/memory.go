// Package memory keeps every store in process. Conditional writes take the
// same mutex as reads, which gives them the compare-and-swap semantics of
// the database drivers.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sudo-init-do/servicehub/internal/alerts"
	"github.com/sudo-init-do/servicehub/internal/jobs"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/user"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

type Store struct {
	mu       sync.RWMutex
	requests map[string]lifecycle.ServiceRequest
	reviews  map[string]lifecycle.Review // keyed by request ID
	profiles map[string]workers.Profile
	users    map[string]user.User
	jobs     map[string]jobs.Job
	notes    map[string]alerts.Notification
	now      func() time.Time
}

func New() *Store {
	return &Store{
		requests: make(map[string]lifecycle.ServiceRequest),
		reviews:  make(map[string]lifecycle.Review),
		profiles: make(map[string]workers.Profile),
		users:    make(map[string]user.User),
		jobs:     make(map[string]jobs.Job),
		notes:    make(map[string]alerts.Notification),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ lifecycle.Store = (*Store)(nil)
	_ workers.Store   = (*Store)(nil)
	_ jobs.Store      = (*Store)(nil)
	_ user.Store      = (*Store)(nil)
	_ alerts.Store    = (*Store)(nil)
)

func notFound(kind, id string) error {
	return errors.Wrapf(lifecycle.ErrNotFound, "%s %s", kind, id)
}

// Requests

func (s *Store) CreateRequest(_ context.Context, req *lifecycle.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return errors.Errorf("request %s already exists", req.ID)
	}
	s.requests[req.ID] = *req
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*lifecycle.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, notFound("request", id)
	}
	return &req, nil
}

func (s *Store) UpdateRequestStatus(_ context.Context, id string, expected, next lifecycle.Status, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != expected {
		return false, nil
	}
	req.Status = next
	req.UpdatedAt = at
	s.requests[id] = req
	return true, nil
}

func (s *Store) ListRequests(_ context.Context, f lifecycle.RequestFilter) ([]lifecycle.ServiceRequest, error) {
	s.mu.RLock()
	out := make([]lifecycle.ServiceRequest, 0)
	for _, r := range s.requests {
		if f.CustomerID != "" && r.CustomerID != f.CustomerID {
			continue
		}
		if f.WorkerID != "" && r.WorkerID != f.WorkerID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Offset, f.Limit), nil
}

func (s *Store) MarkRequestPaid(_ context.Context, id, paymentRef string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != lifecycle.StatusCompleted || req.IsPaid {
		return false, nil
	}
	req.IsPaid = true
	req.PaymentRef = paymentRef
	req.UpdatedAt = at
	s.requests[id] = req
	return true, nil
}

// Reviews

func (s *Store) CreateReview(_ context.Context, review *lifecycle.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[review.RequestID]; ok {
		return lifecycle.ErrDuplicateReview
	}
	s.reviews[review.RequestID] = *review
	return nil
}

func (s *Store) DeleteReview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for requestID, r := range s.reviews {
		if r.ID == id {
			delete(s.reviews, requestID)
			return nil
		}
	}
	return notFound("review", id)
}

func (s *Store) GetReviewByRequest(_ context.Context, requestID string) (*lifecycle.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[requestID]
	if !ok {
		return nil, notFound("review for request", requestID)
	}
	return &r, nil
}

func (s *Store) ListReviewsForProfile(_ context.Context, profileID string) ([]lifecycle.Review, error) {
	s.mu.RLock()
	out := make([]lifecycle.Review, 0)
	for _, r := range s.reviews {
		if r.WorkerProfileID == profileID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateProfileRating(_ context.Context, profileID string, summary lifecycle.RatingSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return notFound("worker profile", profileID)
	}
	p.Rating = summary.Average
	p.TotalReviews = summary.Count
	s.profiles[profileID] = p
	return nil
}

func (s *Store) WorkerProfileID(_ context.Context, workerUserID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, p := range s.profiles {
		if p.UserID == workerUserID {
			return id, nil
		}
	}
	return "", notFound("worker profile for user", workerUserID)
}

// Worker profiles

func (s *Store) UpsertProfile(_ context.Context, p *workers.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	stored := workers.Profile{ID: uuid.New().String(), UserID: p.UserID, CreatedAt: now}
	for _, existing := range s.profiles {
		if existing.UserID == p.UserID {
			stored = existing
			break
		}
	}
	stored.DisplayName = p.DisplayName
	stored.Category = p.Category
	stored.Skills = append([]string(nil), p.Skills...)
	stored.Description = p.Description
	stored.ChargeType = p.ChargeType
	stored.Price = p.Price
	stored.ServiceArea = p.ServiceArea
	stored.Availability = p.Availability
	stored.Languages = append([]string(nil), p.Languages...)
	stored.ListingType = p.ListingType
	stored.UpdatedAt = now

	s.profiles[stored.ID] = stored
	*p = stored
	return nil
}

func (s *Store) GetProfile(_ context.Context, id string) (*workers.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, notFound("worker profile", id)
	}
	return &p, nil
}

func (s *Store) GetProfileByUser(_ context.Context, userID string) (*workers.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, notFound("worker profile for user", userID)
}

func (s *Store) SearchProfiles(_ context.Context, f workers.Filter) (workers.Page, error) {
	f = f.Normalize()
	s.mu.RLock()
	matched := make([]workers.Profile, 0)
	for _, p := range s.profiles {
		if f.Matches(p) {
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()

	// Map order is random; fix it before the stable discovery sort.
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	workers.SortForDiscovery(matched)
	return workers.Page{Workers: page(matched, f.Skip, f.Limit), Total: len(matched)}, nil
}

func (s *Store) SetVerified(_ context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return notFound("worker profile", id)
	}
	p.Verified = verified
	p.UpdatedAt = s.now()
	s.profiles[id] = p
	return nil
}

// Users

func (s *Store) EnsureUser(_ context.Context, u *user.User) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ID]; ok {
		return &existing, nil
	}
	stored := *u
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.users[u.ID] = stored
	return &stored, nil
}

func (s *Store) GetUser(_ context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetBlocked(_ context.Context, id string, blocked bool) error {
	return s.updateUser(id, func(u *user.User) { u.IsBlocked = blocked })
}

func (s *Store) SetRole(_ context.Context, id string, role lifecycle.Role) error {
	return s.updateUser(id, func(u *user.User) { u.Role = role })
}

func (s *Store) UpdateName(_ context.Context, id, name string) error {
	return s.updateUser(id, func(u *user.User) { u.Name = name })
}

func (s *Store) updateUser(id string, fn func(*user.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound("user", id)
	}
	fn(&u)
	s.users[id] = u
	return nil
}

// Jobs

func (s *Store) CreateJob(_ context.Context, job *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *job
	stored.Applicants = append([]jobs.Applicant{}, job.Applicants...)
	s.jobs[job.ID] = stored
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, notFound("job", id)
	}
	j.Applicants = append([]jobs.Applicant{}, j.Applicants...)
	return &j, nil
}

func (s *Store) ListJobs(_ context.Context, f jobs.Filter) ([]jobs.Job, error) {
	s.mu.RLock()
	out := make([]jobs.Job, 0)
	for _, j := range s.jobs {
		if f.Category != "" && j.Category != f.Category {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		j.Applicants = append([]jobs.Applicant{}, j.Applicants...)
		out = append(out, j)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return page(out, 0, jobs.ListLimit), nil
}

func (s *Store) AddApplicant(_ context.Context, jobID string, a jobs.Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return notFound("job", jobID)
	}
	if j.Status != jobs.StatusOpen {
		return jobs.ErrJobNotOpen
	}
	for _, existing := range j.Applicants {
		if existing.UserID == a.UserID {
			return jobs.ErrAlreadyApplied
		}
	}
	j.Applicants = append(append([]jobs.Applicant{}, j.Applicants...), a)
	s.jobs[jobID] = j
	return nil
}

// Notifications

func (s *Store) CreateNotification(_ context.Context, n *alerts.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[n.ID]; !ok {
		s.notes[n.ID] = *n
	}
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID string) ([]alerts.Notification, error) {
	s.mu.RLock()
	out := make([]alerts.Notification, 0)
	for _, n := range s.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok || n.UserID != userID || n.ReadAt != nil {
		return false, nil
	}
	n.ReadAt = &at
	s.notes[id] = n
	return true, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

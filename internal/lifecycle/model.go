package lifecycle

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleWorker   Role = "WORKER"
	RoleBusiness Role = "BUSINESS"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleWorker, RoleBusiness, RoleAdmin:
		return true
	}
	return false
}

type ListingType string

const (
	ListingOnDemand ListingType = "on-demand"
	ListingProject  ListingType = "project"
	ListingJob      ListingType = "job"
)

func (l ListingType) Valid() bool {
	return l == ListingOnDemand || l == ListingProject || l == ListingJob
}

// Actor is the authenticated principal supplied by the identity provider.
type Actor struct {
	UserID string
	Role   Role
}

type Address struct {
	Street  string `json:"street,omitempty" bson:"street,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
	State   string `json:"state,omitempty" bson:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty" bson:"zip_code,omitempty"`
	Full    string `json:"full,omitempty" bson:"full,omitempty"`
}

// Terms are the commercial terms a customer proposes when creating a request.
type Terms struct {
	ListingType ListingType `json:"listing_type"`
	Price       float64     `json:"price"`
	Duration    string      `json:"duration,omitempty"`
	ScheduledAt *time.Time  `json:"scheduled_at,omitempty"`
	Address     *Address    `json:"address,omitempty"`
	Message     string      `json:"message,omitempty"`
}

func (t Terms) Validate() error {
	if !t.ListingType.Valid() {
		return errors.Wrapf(ErrInvalidInput, "unknown listing type %q", t.ListingType)
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return errors.Wrap(ErrInvalidInput, "price must be a positive number")
	}
	return nil
}

// ServiceRequest is a customer's request for work from a specific worker.
type ServiceRequest struct {
	ID          string      `json:"id" bson:"_id"`
	CustomerID  string      `json:"customer_id" bson:"customer_id"`
	WorkerID    string      `json:"worker_id" bson:"worker_id"`
	ListingType ListingType `json:"listing_type" bson:"listing_type"`
	Price       float64     `json:"price" bson:"price"`
	Duration    string      `json:"duration,omitempty" bson:"duration,omitempty"`
	ScheduledAt *time.Time  `json:"scheduled_at,omitempty" bson:"scheduled_at,omitempty"`
	Address     *Address    `json:"address,omitempty" bson:"address,omitempty"`
	Message     string      `json:"message,omitempty" bson:"message,omitempty"`
	Status      Status      `json:"status" bson:"status"`
	IsPaid      bool        `json:"is_paid" bson:"is_paid"`
	PaymentRef  string      `json:"payment_ref,omitempty" bson:"payment_ref,omitempty"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at"`
}

// IsParty reports whether the user is the customer or the worker on the request.
func (r *ServiceRequest) IsParty(userID string) bool {
	return userID != "" && (userID == r.CustomerID || userID == r.WorkerID)
}

// Review is a customer's rating of a completed request. Immutable once stored.
type Review struct {
	ID              string    `json:"id" bson:"_id"`
	RequestID       string    `json:"request_id" bson:"request_id"`
	CustomerID      string    `json:"customer_id" bson:"customer_id"`
	WorkerID        string    `json:"worker_id" bson:"worker_id"`
	WorkerProfileID string    `json:"worker_profile_id" bson:"worker_profile_id"`
	Rating          int       `json:"rating" bson:"rating"`
	Comment         string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

// RatingSummary is the derived aggregate stored on a worker profile.
type RatingSummary struct {
	Average float64 `json:"rating"`
	Count   int     `json:"total_reviews"`
}

// RequestFilter narrows request listings. Empty fields match everything.
type RequestFilter struct {
	CustomerID string
	WorkerID   string
	Status     Status
	Limit      int
	Offset     int
}

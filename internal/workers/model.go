package workers

import (
	"context"
	"time"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

type ChargeType string

const (
	ChargeHourly  ChargeType = "hourly"
	ChargeDaily   ChargeType = "daily"
	ChargeFixed   ChargeType = "fixed"
	ChargeMonthly ChargeType = "monthly"
)

type Availability string

const (
	Available   Availability = "available"
	Busy        Availability = "busy"
	Unavailable Availability = "unavailable"
)

// Profile is a worker's public listing. Rating and TotalReviews are derived
// from reviews and only ever written by the rating recomputation.
type Profile struct {
	ID           string                `json:"id" bson:"_id"`
	UserID       string                `json:"user_id" bson:"user_id"`
	DisplayName  string                `json:"display_name" bson:"display_name"`
	Category     string                `json:"category" bson:"category"`
	Skills       []string              `json:"skills" bson:"skills"`
	Description  string                `json:"description,omitempty" bson:"description,omitempty"`
	ChargeType   ChargeType            `json:"charge_type" bson:"charge_type"`
	Price        float64               `json:"price" bson:"price"`
	ServiceArea  string                `json:"service_area,omitempty" bson:"service_area,omitempty"`
	Availability Availability          `json:"availability" bson:"availability"`
	Languages    []string              `json:"languages" bson:"languages"`
	ListingType  lifecycle.ListingType `json:"listing_type" bson:"listing_type"`
	Verified     bool                  `json:"verified" bson:"verified"`
	ProWorker    bool                  `json:"pro_worker" bson:"pro_worker"`
	Rating       float64               `json:"rating" bson:"rating"`
	TotalReviews int                   `json:"total_reviews" bson:"total_reviews"`
	CreatedAt    time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at" bson:"updated_at"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter narrows discovery. Nil pointers and empty strings match everything.
type Filter struct {
	Category     string                `json:"category,omitempty"`
	ListingType  lifecycle.ListingType `json:"listing_type,omitempty"`
	MinPrice     *float64              `json:"min_price,omitempty"`
	MaxPrice     *float64              `json:"max_price,omitempty"`
	Verified     *bool                 `json:"verified,omitempty"`
	MinRating    *float64              `json:"min_rating,omitempty"`
	Availability Availability          `json:"availability,omitempty"`
	Search       string                `json:"search,omitempty"`
	Limit        int                   `json:"limit"`
	Skip         int                   `json:"skip"`
}

// Normalize clamps paging into range.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	return f
}

// Page is one discovery result.
type Page struct {
	Workers []Profile `json:"workers"`
	Total   int       `json:"total"`
}

// Store persists worker profiles. Missing profiles surface as lifecycle.ErrNotFound.
type Store interface {
	// UpsertProfile creates or replaces the caller-editable fields of the
	// profile owned by p.UserID. It never touches rating, verification or
	// pro status, and fills p with the stored record.
	UpsertProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, id string) (*Profile, error)
	GetProfileByUser(ctx context.Context, userID string) (*Profile, error)
	SearchProfiles(ctx context.Context, f Filter) (Page, error)
	SetVerified(ctx context.Context, id string, verified bool) error
}

// ReviewLister reads the reviews that feed a profile, newest first.
type ReviewLister interface {
	ListReviewsForProfile(ctx context.Context, profileID string) ([]lifecycle.Review, error)
}

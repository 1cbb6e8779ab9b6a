package workers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

const latestReviews = 10

type Handler struct {
	store   Store
	reviews ReviewLister
	cache   Cache
}

func NewHandler(store Store, reviews ReviewLister, cache Cache) *Handler {
	if cache == nil {
		cache = NopCache{}
	}
	return &Handler{store: store, reviews: reviews, cache: cache}
}

type UpsertRequest struct {
	DisplayName  string                `json:"display_name" validate:"required,max=120"`
	Category     string                `json:"category" validate:"required,oneof=Plumber Electrician Carpenter Painter Mason Cleaning Cooking Gardening Delivery Other"`
	Skills       []string              `json:"skills" validate:"max=50,dive,max=60"`
	Description  string                `json:"description" validate:"max=2000"`
	ChargeType   ChargeType            `json:"charge_type" validate:"required,oneof=hourly daily fixed monthly"`
	Price        float64               `json:"price" validate:"gt=0"`
	ServiceArea  string                `json:"service_area" validate:"max=200"`
	Availability Availability          `json:"availability" validate:"omitempty,oneof=available busy unavailable"`
	Languages    []string              `json:"languages" validate:"max=20,dive,max=40"`
	ListingType  lifecycle.ListingType `json:"listing_type" validate:"omitempty,oneof=on-demand project job"`
}

// POST /workers
func (h *Handler) UpsertProfile(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req UpsertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Availability == "" {
		req.Availability = Available
	}
	if req.ListingType == "" {
		req.ListingType = lifecycle.ListingOnDemand
	}

	p := &Profile{
		UserID:       uid,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Category:     req.Category,
		Skills:       req.Skills,
		Description:  req.Description,
		ChargeType:   req.ChargeType,
		Price:        req.Price,
		ServiceArea:  req.ServiceArea,
		Availability: req.Availability,
		Languages:    req.Languages,
		ListingType:  req.ListingType,
	}
	ctx := c.Request().Context()
	if err := h.store.UpsertProfile(ctx, p); err != nil {
		log.Error().Err(err).Str("user_id", uid).Msg("upsert worker profile")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not save profile"})
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("discovery cache invalidation failed")
	}

	return c.JSON(http.StatusOK, echo.Map{"worker_profile": p})
}

// GET /workers/me
func (h *Handler) GetMyProfile(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	p, err := h.store.GetProfileByUser(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, err, "no profile found")
	}
	return c.JSON(http.StatusOK, echo.Map{"worker_profile": p})
}

// GET /workers
func (h *Handler) Discover(c echo.Context) error {
	f, err := ParseFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	f = f.Normalize()
	ctx := c.Request().Context()

	page, hit, err := h.cache.Get(ctx, f)
	if err != nil {
		log.Warn().Err(err).Msg("discovery cache read failed")
	}
	if hit {
		return c.JSON(http.StatusOK, page)
	}

	page, err = h.store.SearchProfiles(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("search worker profiles")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch workers"})
	}
	if page.Workers == nil {
		page.Workers = []Profile{}
	}
	if err := h.cache.Set(ctx, f, page); err != nil {
		log.Warn().Err(err).Msg("discovery cache write failed")
	}
	return c.JSON(http.StatusOK, page)
}

// GET /workers/:id
func (h *Handler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.store.GetProfile(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err, "worker not found")
	}
	reviews, err := h.reviews.ListReviewsForProfile(ctx, p.ID)
	if err != nil {
		return h.fail(c, err, "worker not found")
	}
	if len(reviews) > latestReviews {
		reviews = reviews[:latestReviews]
	}
	return c.JSON(http.StatusOK, echo.Map{"worker": p, "reviews": nonNil(reviews)})
}

// GET /workers/:id/reviews
func (h *Handler) ListReviews(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.store.GetProfile(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err, "worker not found")
	}
	reviews, err := h.reviews.ListReviewsForProfile(ctx, p.ID)
	if err != nil {
		return h.fail(c, err, "worker not found")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reviews":       nonNil(reviews),
		"rating":        p.Rating,
		"total_reviews": p.TotalReviews,
	})
}

func (h *Handler) fail(c echo.Context, err error, notFound string) error {
	if errors.Is(err, lifecycle.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFound})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("worker profile lookup")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch worker"})
}

func nonNil(r []lifecycle.Review) []lifecycle.Review {
	if r == nil {
		return []lifecycle.Review{}
	}
	return r
}

// ParseFilter reads discovery filters from the query string.
func ParseFilter(c echo.Context) (Filter, error) {
	f := Filter{
		Category:     c.QueryParam("category"),
		ListingType:  lifecycle.ListingType(c.QueryParam("listing_type")),
		Availability: Availability(c.QueryParam("availability")),
		Search:       strings.TrimSpace(c.QueryParam("search")),
	}
	var err error
	if f.MinPrice, err = floatParam(c, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = floatParam(c, "max_price"); err != nil {
		return f, err
	}
	if f.MinRating, err = floatParam(c, "min_rating"); err != nil {
		return f, err
	}
	if v := c.QueryParam("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.Errorf("verified must be true or false")
		}
		f.Verified = &b
	}
	if f.Limit, err = intParam(c, "limit"); err != nil {
		return f, err
	}
	if f.Skip, err = intParam(c, "skip"); err != nil {
		return f, err
	}
	return f, nil
}

func floatParam(c echo.Context, name string) (*float64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.Errorf("%s must be a number", name)
	}
	return &n, nil
}

func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

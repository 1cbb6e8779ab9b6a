package jobs

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

type Handler struct {
	store Store
	now   func() time.Time
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store, now: func() time.Time { return time.Now().UTC() }}
}

type CreateRequest struct {
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"required,max=5000"`
	Category     string     `json:"category" validate:"required,max=60"`
	Salary       float64    `json:"salary" validate:"gt=0"`
	SalaryType   SalaryType `json:"salary_type" validate:"omitempty,oneof=monthly daily fixed"`
	Location     string     `json:"location" validate:"required,max=200"`
	Requirements []string   `json:"requirements" validate:"max=30,dive,max=200"`
}

// POST /jobs
func (h *Handler) Create(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.SalaryType == "" {
		req.SalaryType = SalaryMonthly
	}
	if req.Requirements == nil {
		req.Requirements = []string{}
	}

	job := &Job{
		ID:           uuid.New().String(),
		EmployerID:   uid,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Category:     req.Category,
		Salary:       req.Salary,
		SalaryType:   req.SalaryType,
		Location:     req.Location,
		Requirements: req.Requirements,
		Status:       StatusOpen,
		Applicants:   []Applicant{},
		CreatedAt:    h.now(),
	}
	if err := h.store.CreateJob(c.Request().Context(), job); err != nil {
		log.Error().Err(err).Str("user_id", uid).Msg("create job")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create job"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"job": job})
}

// GET /jobs
func (h *Handler) List(c echo.Context) error {
	f := Filter{
		Category: c.QueryParam("category"),
		Status:   Status(c.QueryParam("status")),
	}
	switch f.Status {
	case "", StatusOpen, StatusFilled, StatusClosed:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}

	jobs, err := h.store.ListJobs(c.Request().Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("list jobs")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch jobs"})
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return c.JSON(http.StatusOK, echo.Map{"jobs": jobs})
}

// GET /jobs/:id
func (h *Handler) Get(c echo.Context) error {
	job, err := h.store.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
		}
		log.Error().Err(err).Msg("get job")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch job"})
	}
	return c.JSON(http.StatusOK, echo.Map{"job": job})
}

// POST /jobs/:id/apply
func (h *Handler) Apply(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	err := h.store.AddApplicant(c.Request().Context(), c.Param("id"), Applicant{UserID: uid, AppliedAt: h.now()})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"message": "application submitted successfully"})
	case errors.Is(err, lifecycle.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	case errors.Is(err, ErrAlreadyApplied), errors.Is(err, ErrJobNotOpen):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		log.Error().Err(err).Str("user_id", uid).Msg("apply for job")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not apply for job"})
	}
}

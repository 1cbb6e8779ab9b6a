package jobs

import (
	"context"
	"errors"
	"time"
)

type SalaryType string

const (
	SalaryMonthly SalaryType = "monthly"
	SalaryDaily   SalaryType = "daily"
	SalaryFixed   SalaryType = "fixed"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusFilled Status = "filled"
	StatusClosed Status = "closed"
)

var (
	ErrAlreadyApplied = errors.New("already applied for this job")
	ErrJobNotOpen     = errors.New("job is not open for applications")
)

type Applicant struct {
	UserID    string    `json:"user_id" bson:"user_id"`
	AppliedAt time.Time `json:"applied_at" bson:"applied_at"`
}

type Job struct {
	ID           string      `json:"id" bson:"_id"`
	EmployerID   string      `json:"employer_id" bson:"employer_id"`
	Title        string      `json:"title" bson:"title"`
	Description  string      `json:"description" bson:"description"`
	Category     string      `json:"category" bson:"category"`
	Salary       float64     `json:"salary" bson:"salary"`
	SalaryType   SalaryType  `json:"salary_type" bson:"salary_type"`
	Location     string      `json:"location" bson:"location"`
	Requirements []string    `json:"requirements" bson:"requirements"`
	Status       Status      `json:"status" bson:"status"`
	Applicants   []Applicant `json:"applicants" bson:"applicants"`
	CreatedAt    time.Time   `json:"created_at" bson:"created_at"`
}

const ListLimit = 50

type Filter struct {
	Category string
	Status   Status
}

// Store persists job posts. Missing jobs surface as lifecycle.ErrNotFound.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	// ListJobs returns at most ListLimit jobs, newest first.
	ListJobs(ctx context.Context, f Filter) ([]Job, error)
	// AddApplicant appends a to the job atomically. It returns
	// ErrAlreadyApplied or ErrJobNotOpen when the job rejects the application.
	AddApplicant(ctx context.Context, jobID string, a Applicant) error
}

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/sudo-init-do/servicehub/internal/jobs"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

func scanJob(row pgx.Row) (*jobs.Job, error) {
	var j jobs.Job
	err := row.Scan(&j.ID, &j.EmployerID, &j.Title, &j.Description, &j.Category, &j.Salary, &j.SalaryType,
		&j.Location, &j.Requirements, &j.Status, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	j.Applicants = []jobs.Applicant{}
	return &j, nil
}

func (s *Store) CreateJob(ctx context.Context, job *jobs.Job) error {
	requirements := job.Requirements
	if requirements == nil {
		requirements = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_posts (id, employer_id, title, description, category, salary, salary_type,
		                       location, requirements, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.EmployerID, job.Title, job.Description, job.Category, job.Salary, job.SalaryType,
		job.Location, requirements, job.Status, job.CreatedAt,
	)
	return errors.Wrap(err, "insert job")
}

func (s *Store) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `
		SELECT id, employer_id, title, description, category, salary, salary_type,
		       location, requirements, status, created_at
		FROM job_posts WHERE id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err, "job", id)
	}
	if err := s.loadApplicants(ctx, map[string]*jobs.Job{j.ID: j}); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) ListJobs(ctx context.Context, f jobs.Filter) ([]jobs.Job, error) {
	query, args, err := listJobsQuery(f)
	if err != nil {
		return nil, errors.Wrap(err, "build job list query")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	var list []*jobs.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan job")
		}
		list = append(list, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate jobs")
	}

	byID := make(map[string]*jobs.Job, len(list))
	for _, j := range list {
		byID[j.ID] = j
	}
	if err := s.loadApplicants(ctx, byID); err != nil {
		return nil, err
	}
	out := make([]jobs.Job, len(list))
	for i, j := range list {
		out[i] = *j
	}
	return out, nil
}

func (s *Store) loadApplicants(ctx context.Context, byID map[string]*jobs.Job) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, user_id, applied_at FROM job_applicants
		WHERE job_id = ANY($1) ORDER BY applied_at`, ids)
	if err != nil {
		return errors.Wrap(err, "load applicants")
	}
	defer rows.Close()
	for rows.Next() {
		var jobID string
		var a jobs.Applicant
		if err := rows.Scan(&jobID, &a.UserID, &a.AppliedAt); err != nil {
			return errors.Wrap(err, "scan applicant")
		}
		if j, ok := byID[jobID]; ok {
			j.Applicants = append(j.Applicants, a)
		}
	}
	return errors.Wrap(rows.Err(), "iterate applicants")
}

// AddApplicant locks the job row so the open check and the insert see the
// same status.
func (s *Store) AddApplicant(ctx context.Context, jobID string, a jobs.Applicant) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var status jobs.Status
	err = tx.QueryRow(ctx, `SELECT status FROM job_posts WHERE id = $1 FOR UPDATE`, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(lifecycle.ErrNotFound, "job %s", jobID)
	}
	if err != nil {
		return errors.Wrap(err, "lock job")
	}
	if status != jobs.StatusOpen {
		return jobs.ErrJobNotOpen
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO job_applicants (job_id, user_id, applied_at) VALUES ($1, $2, $3)`,
		jobID, a.UserID, a.AppliedAt)
	if isUniqueViolation(err) {
		return jobs.ErrAlreadyApplied
	}
	if err != nil {
		return errors.Wrap(err, "insert applicant")
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

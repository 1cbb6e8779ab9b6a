package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

const selectProfile = `
	SELECT id, user_id, display_name, category, skills, description, charge_type, price,
	       service_area, availability, languages, listing_type, verified, pro_worker,
	       rating, total_reviews, created_at, updated_at
	FROM worker_profiles`

func scanProfile(row pgx.Row) (*workers.Profile, error) {
	var p workers.Profile
	err := row.Scan(
		&p.ID, &p.UserID, &p.DisplayName, &p.Category, &p.Skills, &p.Description, &p.ChargeType, &p.Price,
		&p.ServiceArea, &p.Availability, &p.Languages, &p.ListingType, &p.Verified, &p.ProWorker,
		&p.Rating, &p.TotalReviews, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile leaves verified, pro_worker, rating and total_reviews alone
// on conflict.
func (s *Store) UpsertProfile(ctx context.Context, p *workers.Profile) error {
	now := time.Now().UTC()
	skills, languages := p.Skills, p.Languages
	if skills == nil {
		skills = []string{}
	}
	if languages == nil {
		languages = []string{}
	}
	stored, err := scanProfile(s.pool.QueryRow(ctx, `
		INSERT INTO worker_profiles
			(id, user_id, display_name, category, skills, description, charge_type, price,
			 service_area, availability, languages, listing_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			category     = EXCLUDED.category,
			skills       = EXCLUDED.skills,
			description  = EXCLUDED.description,
			charge_type  = EXCLUDED.charge_type,
			price        = EXCLUDED.price,
			service_area = EXCLUDED.service_area,
			availability = EXCLUDED.availability,
			languages    = EXCLUDED.languages,
			listing_type = EXCLUDED.listing_type,
			updated_at   = EXCLUDED.updated_at
		RETURNING id, user_id, display_name, category, skills, description, charge_type, price,
		          service_area, availability, languages, listing_type, verified, pro_worker,
		          rating, total_reviews, created_at, updated_at`,
		uuid.New().String(), p.UserID, p.DisplayName, p.Category, skills, p.Description, p.ChargeType, p.Price,
		p.ServiceArea, p.Availability, languages, p.ListingType, now,
	))
	if err != nil {
		return errors.Wrap(err, "upsert worker profile")
	}
	*p = *stored
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*workers.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, selectProfile+` WHERE id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err, "worker profile", id)
	}
	return p, nil
}

func (s *Store) GetProfileByUser(ctx context.Context, userID string) (*workers.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, selectProfile+` WHERE user_id = $1`, userID))
	if err != nil {
		return nil, mapNoRows(err, "worker profile for user", userID)
	}
	return p, nil
}

func (s *Store) SearchProfiles(ctx context.Context, f workers.Filter) (workers.Page, error) {
	query, args, err := searchProfilesQuery(f)
	if err != nil {
		return workers.Page{}, errors.Wrap(err, "build profile search")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return workers.Page{}, errors.Wrap(err, "search profiles")
	}
	defer rows.Close()

	page := workers.Page{Workers: make([]workers.Profile, 0)}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return workers.Page{}, errors.Wrap(err, "scan profile")
		}
		page.Workers = append(page.Workers, *p)
	}
	if err := rows.Err(); err != nil {
		return workers.Page{}, errors.Wrap(err, "iterate profiles")
	}

	countSQL, countArgs, err := countProfilesQuery(f)
	if err != nil {
		return workers.Page{}, errors.Wrap(err, "build profile count")
	}
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&page.Total); err != nil {
		return workers.Page{}, errors.Wrap(err, "count profiles")
	}
	return page, nil
}

func (s *Store) SetVerified(ctx context.Context, id string, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE worker_profiles SET verified = $2, updated_at = NOW() WHERE id = $1`, id, verified)
	if err != nil {
		return errors.Wrap(err, "set verified")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(lifecycle.ErrNotFound, "worker profile %s", id)
	}
	return nil
}

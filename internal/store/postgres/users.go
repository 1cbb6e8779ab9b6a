package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/user"
)

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsBlocked, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) EnsureUser(ctx context.Context, u *user.User) (*user.User, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, role, is_blocked, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (id) DO NOTHING`,
		u.ID, u.Name, u.Email, u.Role, u.CreatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT id, name, email, role, is_blocked, created_at FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err, "user", id)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, role, is_blocked, created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	out := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, *u)
	}
	return out, errors.Wrap(rows.Err(), "iterate users")
}

func (s *Store) SetBlocked(ctx context.Context, id string, blocked bool) error {
	return s.updateUser(ctx, id, `UPDATE users SET is_blocked = $2 WHERE id = $1`, blocked)
}

func (s *Store) SetRole(ctx context.Context, id string, role lifecycle.Role) error {
	return s.updateUser(ctx, id, `UPDATE users SET role = $2 WHERE id = $1`, role)
}

func (s *Store) UpdateName(ctx context.Context, id, name string) error {
	return s.updateUser(ctx, id, `UPDATE users SET name = $2 WHERE id = $1`, name)
}

func (s *Store) updateUser(ctx context.Context, id, query string, value interface{}) error {
	tag, err := s.pool.Exec(ctx, query, id, value)
	if err != nil {
		return errors.Wrap(err, "update user")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(lifecycle.ErrNotFound, "user %s", id)
	}
	return nil
}

package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/sudo-init-do/servicehub/internal/alerts"
)

func (s *Store) CreateNotification(ctx context.Context, n *alerts.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.Reference, n.CreatedAt,
	)
	return errors.Wrap(err, "insert notification")
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]alerts.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, title, body, reference, created_at, read_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	defer rows.Close()

	out := make([]alerts.Notification, 0)
	for rows.Next() {
		var n alerts.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Reference, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		out = append(out, n)
	}
	return out, errors.Wrap(rows.Err(), "iterate notifications")
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read_at = $3 WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		id, userID, at)
	if err != nil {
		return false, errors.Wrap(err, "mark notification read")
	}
	return tag.RowsAffected() == 1, nil
}

package alerts

import (
	"context"
	"time"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

// Task type constants
const (
	TaskRequestCompleted = "request:completed"
	TaskReviewRequest    = "review:request"
	TaskRequestStatus    = "request:status"
)

const queueNotifications = "notifications"

// RequestEventPayload is shared by every request task.
type RequestEventPayload struct {
	RequestID  string           `json:"request_id"`
	CustomerID string           `json:"customer_id"`
	WorkerID   string           `json:"worker_id"`
	From       lifecycle.Status `json:"from,omitempty"`
	To         lifecycle.Status `json:"to"`
	Price      float64          `json:"price"`
	At         time.Time        `json:"at"`
}

// Notification is an in-app message for one user.
type Notification struct {
	ID        string     `json:"id" bson:"_id"`
	UserID    string     `json:"user_id" bson:"user_id"`
	Type      string     `json:"type" bson:"type"`
	Title     string     `json:"title" bson:"title"`
	Body      string     `json:"body" bson:"body"`
	Reference string     `json:"reference,omitempty" bson:"reference,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	ReadAt    *time.Time `json:"read_at" bson:"read_at,omitempty"`
}

// Store persists notifications. CreateNotification is a no-op when a
// notification with the same id already exists.
type Store interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID string) ([]Notification, error)
	// MarkNotificationRead reports false when the notification is missing,
	// belongs to someone else or was already read.
	MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) (bool, error)
}

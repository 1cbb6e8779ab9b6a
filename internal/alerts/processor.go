package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

// Processor handles request tasks by writing in-app notifications.
type Processor struct {
	store Store
	now   func() time.Time
}

func NewProcessor(store Store) *Processor {
	return &Processor{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Mux routes every task type to its handler.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRequestCompleted, p.handleRequestCompleted)
	mux.HandleFunc(TaskReviewRequest, p.handleReviewRequest)
	mux.HandleFunc(TaskRequestStatus, p.handleRequestStatus)
	return mux
}

// NewServer builds the asynq worker server for the notifications queue.
func NewServer(opt asynq.RedisClientOpt, concurrency int) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueNotifications: 10,
		},
	})
}

func decode(t *asynq.Task) (RequestEventPayload, error) {
	var p RequestEventPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// Malformed payloads never succeed on retry.
		return p, errors.Wrapf(asynq.SkipRetry, "decode %s: %v", t.Type(), err)
	}
	return p, nil
}

// notificationNamespace seeds notification ids derived from their event.
var notificationNamespace = uuid.MustParse("6f1c9a52-3e0b-4c7d-9a41-0d2b7e5f8c13")

// notificationID is stable for one recipient of one event, so a retried
// task rewrites the same rows instead of adding new ones. A request visits
// each status at most once, which makes the target status part of the key.
func notificationID(taskType string, ev RequestEventPayload, userID string) string {
	key := taskType + "|" + ev.RequestID + "|" + string(ev.To) + "|" + userID
	return uuid.NewSHA1(notificationNamespace, []byte(key)).String()
}

func (p *Processor) notify(ctx context.Context, ev RequestEventPayload, userID, taskType, title, body string) error {
	n := &Notification{
		ID:        notificationID(taskType, ev, userID),
		UserID:    userID,
		Type:      taskType,
		Title:     title,
		Body:      body,
		Reference: ev.RequestID,
		CreatedAt: p.now(),
	}
	if err := p.store.CreateNotification(ctx, n); err != nil {
		return errors.Wrap(err, "create notification")
	}
	log.Info().Str("type", taskType).Str("user_id", userID).Str("reference", ev.RequestID).Msg("notification delivered")
	return nil
}

func (p *Processor) handleRequestCompleted(ctx context.Context, t *asynq.Task) error {
	ev, err := decode(t)
	if err != nil {
		return err
	}
	return p.notify(ctx, ev, ev.WorkerID, t.Type(),
		"Request completed",
		fmt.Sprintf("Request %s is completed and eligible for payment of %.2f.", ev.RequestID, ev.Price))
}

func (p *Processor) handleReviewRequest(ctx context.Context, t *asynq.Task) error {
	ev, err := decode(t)
	if err != nil {
		return err
	}
	return p.notify(ctx, ev, ev.CustomerID, t.Type(),
		"How did it go?",
		fmt.Sprintf("Request %s is complete. Leave a review for your worker.", ev.RequestID))
}

func (p *Processor) handleRequestStatus(ctx context.Context, t *asynq.Task) error {
	ev, err := decode(t)
	if err != nil {
		return err
	}
	// Only the worker accepts or cancels, so the customer hears about those.
	// Either party may start work, so both are told.
	recipients := []string{ev.CustomerID}
	if ev.To == lifecycle.StatusInProgress {
		recipients = append(recipients, ev.WorkerID)
	}
	for _, userID := range recipients {
		err := p.notify(ctx, ev, userID, t.Type(),
			"Request "+statusTitle(ev.To),
			fmt.Sprintf("Request %s moved from %s to %s.", ev.RequestID, ev.From, ev.To))
		if err != nil {
			return err
		}
	}
	return nil
}

func statusTitle(s lifecycle.Status) string {
	switch s {
	case lifecycle.StatusAccepted:
		return "accepted"
	case lifecycle.StatusInProgress:
		return "started"
	case lifecycle.StatusCancelled:
		return "cancelled"
	}
	return "updated"
}

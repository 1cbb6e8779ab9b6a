package alerts

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

// Enqueuer is the part of *asynq.Client the notifier uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier turns lifecycle events into background tasks.
type Notifier struct {
	queue Enqueuer
}

func NewNotifier(queue Enqueuer) *Notifier {
	return &Notifier{queue: queue}
}

var (
	_ lifecycle.CompletionHook     = (*Notifier)(nil)
	_ lifecycle.TransitionListener = (*Notifier)(nil)
)

func (n *Notifier) enqueue(ctx context.Context, taskType string, req lifecycle.ServiceRequest, from lifecycle.Status) error {
	payload := RequestEventPayload{
		RequestID:  req.ID,
		CustomerID: req.CustomerID,
		WorkerID:   req.WorkerID,
		From:       from,
		To:         req.Status,
		Price:      req.Price,
		At:         req.UpdatedAt,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode payload")
	}
	task := asynq.NewTask(taskType, b)
	_, err = n.queue.EnqueueContext(ctx, task,
		asynq.Queue(queueNotifications),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	return errors.Wrapf(err, "enqueue %s", taskType)
}

// OnCompleted schedules the payment-eligibility notice for the worker and
// the review prompt for the customer. A failure of one does not skip the
// other.
func (n *Notifier) OnCompleted(ctx context.Context, req lifecycle.ServiceRequest) error {
	var errs []error
	for _, taskType := range []string{TaskRequestCompleted, TaskReviewRequest} {
		if err := n.enqueue(ctx, taskType, req, lifecycle.StatusInProgress); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// OnTransition notifies the other party of every non-completion change.
// Completion is covered by OnCompleted.
func (n *Notifier) OnTransition(ctx context.Context, req lifecycle.ServiceRequest, from lifecycle.Status) {
	if req.Status == lifecycle.StatusCompleted {
		return
	}
	if err := n.enqueue(ctx, TaskRequestStatus, req, from); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("request_id", req.ID).Msg("status notification not enqueued")
	}
}

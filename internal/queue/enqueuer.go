package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbhub/internal/events"
)

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer is an events.Notifier that hands payment events to the worker.
type Enqueuer struct {
	Client    taskClient
	Queue     string
	MaxRetry  int
	Retention time.Duration
	Logger    zerolog.Logger
}

// Notify implements events.Notifier. Topics without a task type are ignored
// and a task already queued for the same reference is not an error.
func (e Enqueuer) Notify(ctx context.Context, event events.Event) error {
	if e.Client == nil {
		return errors.New("queue: task client not configured")
	}
	if _, ok := TypeForTopic(event.Topic); !ok {
		return nil
	}
	task, err := NewTask(event)
	if err != nil {
		return err
	}
	queue := e.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	maxRetry := e.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 10
	}
	retention := e.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	info, err := e.Client.EnqueueContext(ctx, task,
		asynq.Queue(queue),
		asynq.TaskID(TaskID(event)),
		asynq.MaxRetry(maxRetry),
		asynq.Retention(retention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		e.Logger.Debug().Str("reference", event.Reference).Str("topic", event.Topic).Msg("task_already_enqueued")
		return nil
	}
	if err != nil {
		return err
	}
	e.Logger.Info().Str("task_id", info.ID).Str("type", task.Type()).Str("queue", info.Queue).Msg("task_enqueued")
	return nil
}

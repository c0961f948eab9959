package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quickask/internal/message"
	"quickask/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

const (
	TaskTypeActivate TaskType = "activate"
)

const maxEnqueueBackoff = 2 * time.Second

var (
	// ErrNoWorker means nothing was subscribed to receive the task, so it
	// was never handled and may be sent again.
	ErrNoWorker = errors.New("queue: no worker is listening")
	// ErrTaskFailed wraps the handler error reported back by a worker.
	ErrTaskFailed = errors.New("queue: task failed")
)

// Task represents a unit of work delivered to a worker. A task is handled at
// most once; a failing handler is never redelivered.
type Task struct {
	ID      uuid.UUID
	Type    TaskType
	Payload []byte
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	// Enqueue hands the task off without waiting for it to be handled.
	Enqueue(ctx context.Context, task Task) error
	// Request returns once a worker has handled the task, with the
	// handler's failure wrapped in ErrTaskFailed.
	Request(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// NewActivationTask wraps ev.
func NewActivationTask(ev message.ActivationEvent) (Task, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return Task{}, fmt.Errorf("marshal activation event: %w", err)
	}
	return Task{
		ID:      uuid.New(),
		Type:    TaskTypeActivate,
		Payload: body,
	}, nil
}

// DecodeActivation reverses NewActivationTask.
func DecodeActivation(task Task) (message.ActivationEvent, error) {
	var ev message.ActivationEvent
	if task.Type != TaskTypeActivate {
		return ev, fmt.Errorf("unexpected task type %q", task.Type)
	}
	if err := json.Unmarshal(task.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decode activation event: %w", err)
	}
	return ev, nil
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
// Only publishing is retried; a delivered task is never sent twice.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	return withRetry(ctx, attempts, base, func() (bool, error) {
		err := q.Enqueue(ctx, task)
		return err != nil, err
	})
}

// RequestWithRetry sends the task and waits for its outcome. It retries only
// while no worker is listening: once a worker may have received the task,
// sending it again could toggle the input bar twice.
func RequestWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	return withRetry(ctx, attempts, base, func() (bool, error) {
		err := q.Request(ctx, task)
		return errors.Is(err, ErrNoWorker), err
	})
}

func withRetry(ctx context.Context, attempts int, base time.Duration, try func() (retryable bool, err error)) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; ; attempt++ {
		retryable, err := try()
		if err == nil || !retryable || attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.CappedBackoff(attempt, base, maxEnqueueBackoff)):
		}
	}
}

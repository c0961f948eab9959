package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const subjectPrefix = "quickask.tasks."

// conn is the part of *nats.Conn the queue needs.
type conn interface {
	Publish(subject string, data []byte) error
	RequestWithContext(ctx context.Context, subject string, data []byte) (*nats.Msg, error)
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// outcome is the worker's reply to a Request.
type outcome struct {
	Error string `json:"error,omitempty"`
}

// NewNATS constructs a thin NATS-based queue.
func NewNATS(log *slog.Logger, nc *nats.Conn) Queue {
	return &natsQueue{log: log, nc: nc}
}

type natsQueue struct {
	log *slog.Logger
	nc  conn
}

func (q *natsQueue) encode(task Task) (string, []byte, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Type == "" {
		return "", nil, errors.New("task type required")
	}
	body, err := json.Marshal(task)
	if err != nil {
		return "", nil, err
	}
	return subjectPrefix + string(task.Type), body, nil
}

func (q *natsQueue) Enqueue(_ context.Context, task Task) error {
	subject, body, err := q.encode(task)
	if err != nil {
		return err
	}
	return q.nc.Publish(subject, body)
}

func (q *natsQueue) Request(ctx context.Context, task Task) error {
	subject, body, err := q.encode(task)
	if err != nil {
		return err
	}
	msg, err := q.nc.RequestWithContext(ctx, subject, body)
	if errors.Is(err, nats.ErrNoResponders) {
		return ErrNoWorker
	}
	if err != nil {
		return err
	}
	var out outcome
	if err := json.Unmarshal(msg.Data, &out); err != nil {
		return fmt.Errorf("decode task outcome: %w", err)
	}
	if out.Error != "" {
		return fmt.Errorf("%w: %s", ErrTaskFailed, out.Error)
	}
	return nil
}

func (q *natsQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	subject := subjectPrefix + string(taskType)
	group := "workers-" + string(taskType)
	sub, err := q.nc.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		var respond func([]byte) error
		if msg.Reply != "" {
			respond = msg.Respond
		}
		q.handleMessage(ctx, msg.Data, respond, handler)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

// handleMessage runs handler once. Failures are logged and, for requests,
// reported back; the task is never redelivered.
func (q *natsQueue) handleMessage(ctx context.Context, data []byte, respond func([]byte) error, handler Handler) {
	var task Task
	err := json.Unmarshal(data, &task)
	if err != nil {
		q.log.Error("failed to decode task", "err", err)
		err = fmt.Errorf("decode task: %w", err)
	} else if err = handler(ctx, task); err != nil {
		q.log.Error("task failed", "id", task.ID, "type", task.Type, "err", err)
	}
	if respond == nil {
		return
	}
	var out outcome
	if err != nil {
		out.Error = err.Error()
	}
	reply, _ := json.Marshal(out)
	if err := respond(reply); err != nil {
		q.log.Warn("failed to reply to task request", "id", task.ID, "err", err)
	}
}

package queue

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockQueue is a mock implementation of Queue using testify/mock.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, task Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	args := m.Called(ctx, taskType, handler)
	return args.Error(0)
}

// EnqueuedTasks returns the tasks passed to Enqueue, in call order.
func (m *MockQueue) EnqueuedTasks() []Task { return m.tasksFor("Enqueue") }

// RequestedTasks returns the tasks passed to Request, in call order.
func (m *MockQueue) RequestedTasks() []Task { return m.tasksFor("Request") }

func (m *MockQueue) tasksFor(method string) []Task {
	var tasks []Task
	for _, call := range m.Calls {
		if call.Method == method {
			tasks = append(tasks, call.Arguments.Get(1).(Task))
		}
	}
	return tasks
}

func (m *MockQueue) Request(ctx context.Context, task Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

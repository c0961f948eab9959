package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"quickask/internal/message"
)

// MockCaller is a mock implementation of Caller using testify/mock.
type MockCaller struct {
	mock.Mock
}

func (m *MockCaller) Ask(ctx context.Context, req message.QuestionRequest) (message.AnswerResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(message.AnswerResponse), args.Error(1)
}

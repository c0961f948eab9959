package activation

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"quickask/internal/message"
)

// MockBrowser is a mock implementation of Browser using testify/mock.
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) ActiveTab(ctx context.Context) (*message.Tab, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*message.Tab), args.Error(1)
}

func (m *MockBrowser) Probe(ctx context.Context, tabID int) (bool, error) {
	args := m.Called(ctx, tabID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBrowser) InjectAgent(ctx context.Context, tabID int) error {
	args := m.Called(ctx, tabID)
	return args.Error(0)
}

func (m *MockBrowser) SendMessage(ctx context.Context, tabID int, msg any) (json.RawMessage, error) {
	args := m.Called(ctx, tabID, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

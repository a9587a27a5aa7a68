package probe

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCommander is a mock implementation of the Commander interface for testing.
type MockCommander struct {
	mock.Mock
}

// NewMockCommander creates a new MockCommander instance.
func NewMockCommander() *MockCommander {
	return &MockCommander{}
}

// Output mocks running an external command.
func (m *MockCommander) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	callArgs := make([]interface{}, 0, len(args)+2)
	callArgs = append(callArgs, ctx, name)

	for _, arg := range args {
		callArgs = append(callArgs, arg)
	}

	mockArgs := m.Called(callArgs...)

	result, ok := mockArgs.Get(0).([]byte)
	if !ok {
		return nil, mockArgs.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, mockArgs.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

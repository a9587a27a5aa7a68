package registry

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockIdentityFetcher is a mock implementation of the IdentityFetcher interface for testing.
type MockIdentityFetcher struct {
	mock.Mock
}

// NewMockIdentityFetcher creates a new MockIdentityFetcher instance.
func NewMockIdentityFetcher() *MockIdentityFetcher {
	return &MockIdentityFetcher{}
}

// RemoteDigest mocks resolving the published digest for an image reference.
func (m *MockIdentityFetcher) RemoteDigest(ctx context.Context, imageRef string) (string, error) {
	args := m.Called(ctx, imageRef)

	return args.String(0), args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

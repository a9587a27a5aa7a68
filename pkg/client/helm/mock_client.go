package helm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of the helm Interface for testing.
type MockClient struct {
	mock.Mock
}

// NewMockClient creates a new MockClient instance.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// InstallOrUpgradeChart mocks the idempotent chart deployment.
func (m *MockClient) InstallOrUpgradeChart(
	ctx context.Context,
	spec *ChartSpec,
) (*ReleaseInfo, error) {
	args := m.Called(ctx, spec)

	result, ok := args.Get(0).(*ReleaseInfo)
	if !ok {
		return nil, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// GetRelease mocks the release status probe.
func (m *MockClient) GetRelease(ctx context.Context, releaseName string) (*ReleaseInfo, error) {
	args := m.Called(ctx, releaseName)

	result, ok := args.Get(0).(*ReleaseInfo)
	if !ok {
		return nil, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// UninstallRelease mocks removing a release.
func (m *MockClient) UninstallRelease(ctx context.Context, releaseName, namespace string) error {
	args := m.Called(ctx, releaseName, namespace)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

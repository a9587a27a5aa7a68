package docker

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/mock"
)

// MockRuntimeClient is a mock implementation of the RuntimeClient interface for testing.
type MockRuntimeClient struct {
	mock.Mock
}

// NewMockRuntimeClient creates a new MockRuntimeClient instance.
func NewMockRuntimeClient() *MockRuntimeClient {
	return &MockRuntimeClient{}
}

// Ping mocks the runtime reachability probe.
func (m *MockRuntimeClient) Ping(ctx context.Context) (types.Ping, error) {
	args := m.Called(ctx)

	result, ok := args.Get(0).(types.Ping)
	if !ok {
		return types.Ping{}, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerList mocks listing containers.
func (m *MockRuntimeClient) ContainerList(
	ctx context.Context,
	options container.ListOptions,
) ([]container.Summary, error) {
	args := m.Called(ctx, options)

	result, ok := args.Get(0).([]container.Summary)
	if !ok {
		return nil, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerInspect mocks inspecting a container.
func (m *MockRuntimeClient) ContainerInspect(
	ctx context.Context,
	containerID string,
) (container.InspectResponse, error) {
	args := m.Called(ctx, containerID)

	result, ok := args.Get(0).(container.InspectResponse)
	if !ok {
		return container.InspectResponse{}, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerCreate mocks creating a container.
func (m *MockRuntimeClient) ContainerCreate(
	ctx context.Context,
	config *container.Config,
	hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig,
	platform *ocispec.Platform,
	containerName string,
) (container.CreateResponse, error) {
	args := m.Called(ctx, config, hostConfig, networkingConfig, platform, containerName)

	result, ok := args.Get(0).(container.CreateResponse)
	if !ok {
		return container.CreateResponse{}, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerStart mocks starting a container.
func (m *MockRuntimeClient) ContainerStart(
	ctx context.Context,
	containerID string,
	options container.StartOptions,
) error {
	args := m.Called(ctx, containerID, options)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerStop mocks stopping a container.
func (m *MockRuntimeClient) ContainerStop(
	ctx context.Context,
	containerID string,
	options container.StopOptions,
) error {
	args := m.Called(ctx, containerID, options)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ContainerRemove mocks removing a container.
func (m *MockRuntimeClient) ContainerRemove(
	ctx context.Context,
	containerID string,
	options container.RemoveOptions,
) error {
	args := m.Called(ctx, containerID, options)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ImagePull mocks pulling an image.
func (m *MockRuntimeClient) ImagePull(
	ctx context.Context,
	refStr string,
	options image.PullOptions,
) (io.ReadCloser, error) {
	args := m.Called(ctx, refStr, options)

	result, ok := args.Get(0).(io.ReadCloser)
	if !ok {
		return nil, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// ImageInspect mocks inspecting a local image.
func (m *MockRuntimeClient) ImageInspect(
	ctx context.Context,
	imageID string,
	options ...client.ImageInspectOption,
) (image.InspectResponse, error) {
	args := m.Called(ctx, imageID)

	result, ok := args.Get(0).(image.InspectResponse)
	if !ok {
		return image.InspectResponse{}, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// Close mocks closing the client connection.
func (m *MockRuntimeClient) Close() error {
	args := m.Called()

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

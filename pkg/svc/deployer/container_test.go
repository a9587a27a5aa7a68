package deployer_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mattskanaut/car-cs-deployment/pkg/client/docker"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
	"github.com/mattskanaut/car-cs-deployment/pkg/utils/retrypolicy"
)

func fastVerifyPolicy() deployer.LauncherOption {
	return deployer.WithVerifyPolicy(retrypolicy.Policy{
		Interval:    time.Millisecond,
		MaxAttempts: 3,
	})
}

func registrySpec() deployer.RegistrySpec {
	return deployer.RegistrySpec{
		Image:         deployer.DefaultSensorImage,
		ContainerName: "cs-sensor",
		ActivationID:  "act-1",
		CustomerID:    "cust-1",
		PodURL:        "https://bus.example.com",
		Endpoint:      "unix:///var/run/docker.sock",
	}
}

func TestLaunch_PullsCreatesAndStarts(t *testing.T) {
	t.Parallel()

	client := docker.NewMockRuntimeClient()
	client.On("ImagePull", context.Background(), deployer.DefaultSensorImage,
		mock.AnythingOfType("image.PullOptions")).
		Return(io.NopCloser(strings.NewReader("{}")), nil)
	client.On("ContainerCreate", context.Background(),
		mock.MatchedBy(func(config *container.Config) bool {
			return config.Image == deployer.DefaultSensorImage &&
				assert.ObjectsAreEqual([]string{
					"SENSOR_ACTIVATION_ID=act-1",
					"SENSOR_CUSTOMER_ID=cust-1",
					"SENSOR_POD_URL=https://bus.example.com",
				}, config.Env)
		}),
		mock.MatchedBy(func(hostConfig *container.HostConfig) bool {
			return len(hostConfig.Binds) == 1 &&
				hostConfig.Binds[0] == "/var/run/docker.sock:/var/run/docker.sock"
		}),
		mock.Anything, mock.Anything, "cs-sensor").
		Return(container.CreateResponse{ID: "new-id"}, nil)
	client.On("ContainerStart", context.Background(), "new-id",
		mock.AnythingOfType("container.StartOptions")).
		Return(nil)

	launcher := deployer.NewContainerLauncher(client, fastVerifyPolicy())

	err := launcher.Launch(context.Background(), registrySpec())
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestLaunch_PullFailure(t *testing.T) {
	t.Parallel()

	client := docker.NewMockRuntimeClient()
	client.On("ImagePull", context.Background(), deployer.DefaultSensorImage,
		mock.AnythingOfType("image.PullOptions")).
		Return(nil, errRuntimeDown)

	launcher := deployer.NewContainerLauncher(client, fastVerifyPolicy())

	err := launcher.Launch(context.Background(), registrySpec())
	require.ErrorIs(t, err, deployer.ErrPullFailed)
}

func TestLaunch_CreateFailure(t *testing.T) {
	t.Parallel()

	client := docker.NewMockRuntimeClient()
	client.On("ImagePull", context.Background(), deployer.DefaultSensorImage,
		mock.AnythingOfType("image.PullOptions")).
		Return(io.NopCloser(strings.NewReader("{}")), nil)
	client.On("ContainerCreate", context.Background(), mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, "cs-sensor").
		Return(container.CreateResponse{}, errRuntimeDown)

	launcher := deployer.NewContainerLauncher(client, fastVerifyPolicy())

	err := launcher.Launch(context.Background(), registrySpec())
	require.ErrorIs(t, err, deployer.ErrLaunchFailed)
}

func TestTeardown_StopsAndRemoves(t *testing.T) {
	t.Parallel()

	client := docker.NewMockRuntimeClient()
	client.On("ContainerStop", context.Background(), "old-id",
		mock.AnythingOfType("container.StopOptions")).
		Return(nil)
	client.On("ContainerRemove", context.Background(), "old-id",
		mock.AnythingOfType("container.RemoveOptions")).
		Return(nil)

	launcher := deployer.NewContainerLauncher(client, fastVerifyPolicy())

	require.NoError(t, launcher.Teardown(context.Background(), "old-id"))
	client.AssertExpectations(t)
}

func TestTeardown_ToleratesAbsentContainer(t *testing.T) {
	t.Parallel()

	notFound := fmt.Errorf("no such container: %w", cerrdefs.ErrNotFound)

	client := docker.NewMockRuntimeClient()
	client.On("ContainerStop", context.Background(), "gone-id",
		mock.AnythingOfType("container.StopOptions")).
		Return(notFound)
	client.On("ContainerRemove", context.Background(), "gone-id",
		mock.AnythingOfType("container.RemoveOptions")).
		Return(notFound)

	launcher := deployer.NewContainerLauncher(client, fastVerifyPolicy())

	require.NoError(t, launcher.Teardown(context.Background(), "gone-id"))
}

func TestTeardown_NoContainerIsNoop(t *testing.T) {
	t.Parallel()

	client := docker.NewMockRuntimeClient()
	launcher := deployer.NewContainerLauncher(client, fastVerifyPolicy())

	require.NoError(t, launcher.Teardown(context.Background(), ""))
	client.AssertNotCalled(t, "ContainerStop")
}

func TestVerify_SucceedsOnceRunning(t *testing.T) {
	t.Parallel()

	client := docker.NewMockRuntimeClient()
	client.On("ContainerInspect", context.Background(), "cs-sensor").
		Return(container.InspectResponse{
			ContainerJSONBase: &container.ContainerJSONBase{
				State: &container.State{Running: false},
			},
		}, nil).Once()
	client.On("ContainerInspect", context.Background(), "cs-sensor").
		Return(container.InspectResponse{
			ContainerJSONBase: &container.ContainerJSONBase{
				State: &container.State{Running: true},
			},
		}, nil)

	launcher := deployer.NewContainerLauncher(client, fastVerifyPolicy())

	require.NoError(t, launcher.Verify(context.Background(), "cs-sensor"))
}

func TestVerify_ExpiryIsVerificationFailure(t *testing.T) {
	t.Parallel()

	client := docker.NewMockRuntimeClient()
	client.On("ContainerInspect", context.Background(), "cs-sensor").
		Return(container.InspectResponse{
			ContainerJSONBase: &container.ContainerJSONBase{
				State: &container.State{Running: false},
			},
		}, nil)

	launcher := deployer.NewContainerLauncher(client, fastVerifyPolicy())

	err := launcher.Verify(context.Background(), "cs-sensor")
	require.ErrorIs(t, err, deployer.ErrVerificationFailed)
	assert.NotErrorIs(t, err, deployer.ErrLaunchFailed)
}

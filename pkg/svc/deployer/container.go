package deployer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	log "github.com/sirupsen/logrus"

	dockerclient "github.com/mattskanaut/car-cs-deployment/pkg/client/docker"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
	"github.com/mattskanaut/car-cs-deployment/pkg/utils/retrypolicy"
)

// DefaultSensorImage is the registry reference installed when the caller
// selects the registry source.
const DefaultSensorImage = "docker.io/containersec/sensor:latest"

const (
	verifyAttempts = 30
	verifyInterval = time.Second
)

// RegistrySpec describes one registry-sourced installation.
type RegistrySpec struct {
	Image         string
	ContainerName string
	ActivationID  string
	CustomerID    string
	// PodURL is the message-bus endpoint the sensor reports to; empty means
	// the sensor default.
	PodURL string
	// Endpoint is the engine endpoint of the target runtime; its socket is
	// bind-mounted so the sensor can observe container activity.
	Endpoint string
	Runtime  probe.RuntimeKind
}

// ContainerLauncher drives the registry install path against one runtime:
// teardown, pull, create, start, and the post-deploy verification poll.
type ContainerLauncher struct {
	client       dockerclient.RuntimeClient
	verifyPolicy retrypolicy.Policy
}

// LauncherOption customizes a ContainerLauncher.
type LauncherOption func(*ContainerLauncher)

// WithVerifyPolicy overrides the verification poll budget.
func WithVerifyPolicy(policy retrypolicy.Policy) LauncherOption {
	return func(l *ContainerLauncher) {
		l.verifyPolicy = policy
	}
}

// NewContainerLauncher creates a ContainerLauncher for the given runtime client.
func NewContainerLauncher(client dockerclient.RuntimeClient, opts ...LauncherOption) *ContainerLauncher {
	launcher := &ContainerLauncher{
		client:       client,
		verifyPolicy: retrypolicy.Policy{Interval: verifyInterval, MaxAttempts: verifyAttempts},
	}

	for _, opt := range opts {
		opt(launcher)
	}

	return launcher
}

// Teardown stops and removes the instance's container. Absent containers are
// not an error; removal and creation are atomic from the model's view.
func (l *ContainerLauncher) Teardown(ctx context.Context, containerID string) error {
	if containerID == "" {
		return nil
	}

	err := l.client.ContainerStop(ctx, containerID, container.StopOptions{})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("%w: stop container %q: %w", ErrLaunchFailed, containerID, err)
	}

	err = l.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("%w: remove container %q: %w", ErrLaunchFailed, containerID, err)
	}

	return nil
}

// Launch pulls the sensor image and creates and starts its container.
func (l *ContainerLauncher) Launch(ctx context.Context, spec RegistrySpec) error {
	if err := l.pull(ctx, spec.Image); err != nil {
		return err
	}

	config := &container.Config{
		Image: spec.Image,
		Env:   sensorEnv(spec),
	}

	hostConfig := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyAlways},
	}

	if bind := socketBind(spec.Endpoint); bind != "" {
		hostConfig.Binds = []string{bind}
	}

	created, err := l.client.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.ContainerName)
	if err != nil {
		return fmt.Errorf("%w: create container %q: %w", ErrLaunchFailed, spec.ContainerName, err)
	}

	if err := l.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("%w: start container %q: %w", ErrLaunchFailed, spec.ContainerName, err)
	}

	return nil
}

// Verify polls the container until it reports running or the poll budget
// expires. Expiry is a verification failure, distinct from a launch failure.
func (l *ContainerLauncher) Verify(ctx context.Context, containerName string) error {
	err := l.verifyPolicy.Do(ctx, func() error {
		inspect, inspectErr := l.client.ContainerInspect(ctx, containerName)
		if inspectErr != nil {
			return fmt.Errorf("inspect %q: %w", containerName, inspectErr)
		}

		if inspect.State == nil || !inspect.State.Running {
			return fmt.Errorf("container %q not yet running", containerName)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	return nil
}

// pull is the only pull-credit consumer; the version oracle uses a
// metadata-only registry call instead.
func (l *ContainerLauncher) pull(ctx context.Context, imageRef string) error {
	log.WithField("image", imageRef).Debug("pulling sensor image")

	reader, err := l.client.ImagePull(ctx, imageRef, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("%w: pull %q: %w", ErrPullFailed, imageRef, err)
	}
	defer func() { _ = reader.Close() }()

	// The pull completes only once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("%w: pull %q: %w", ErrPullFailed, imageRef, err)
	}

	return nil
}

func sensorEnv(spec RegistrySpec) []string {
	env := []string{
		"SENSOR_ACTIVATION_ID=" + spec.ActivationID,
		"SENSOR_CUSTOMER_ID=" + spec.CustomerID,
	}

	if spec.PodURL != "" {
		env = append(env, "SENSOR_POD_URL="+spec.PodURL)
	}

	return env
}

// socketBind converts an engine endpoint into a same-path bind mount so the
// sensor can reach the runtime it monitors.
func socketBind(endpoint string) string {
	if path, ok := strings.CutPrefix(endpoint, "unix://"); ok {
		return path + ":" + path
	}

	if path, ok := strings.CutPrefix(endpoint, "npipe://"); ok {
		pipe := strings.ReplaceAll(path, "/", `\`)

		return pipe + ":" + pipe
	}

	return ""
}

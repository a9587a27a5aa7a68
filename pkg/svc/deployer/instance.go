package deployer

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	dockerclient "github.com/mattskanaut/car-cs-deployment/pkg/client/docker"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/decision"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
)

// SensorContainerName is the base name of the sensor container. Non-host
// contexts get a sanitized suffix so concurrent targets never share a name.
const SensorContainerName = "cs-sensor"

// Instance is the observable sensor state at one container-runtime target,
// queried fresh at the start of that target's processing.
type Instance struct {
	Exists      bool
	Running     bool
	ContainerID string
	// ImageIdentity is the repo digest of the instance's image, empty when
	// the digest cannot be determined locally.
	ImageIdentity string
}

// DecisionState converts the instance into the decision engine's input state.
// Outdated is filled in separately by the version oracle.
func (i Instance) DecisionState(outdated bool) decision.State {
	return decision.State{Exists: i.Exists, Running: i.Running, Outdated: outdated}
}

// ContainerName returns the sensor container name for a target.
func ContainerName(target probe.Target) string {
	if target.Context == probe.ContextHost {
		return SensorContainerName
	}

	suffix := strings.ToLower(target.Context)
	suffix = strings.NewReplacer(":", "-", "/", "-", " ", "-", ".", "-").Replace(suffix)

	return SensorContainerName + "-" + suffix
}

// QueryInstance inspects the target runtime for the named sensor container.
func QueryInstance(
	ctx context.Context,
	client dockerclient.RuntimeClient,
	name string,
) (Instance, error) {
	summary, found, err := findContainer(ctx, client, name)
	if err != nil {
		return Instance{}, err
	}

	if !found {
		return Instance{}, nil
	}

	instance := Instance{
		Exists:      true,
		Running:     strings.EqualFold(summary.State, "running"),
		ContainerID: summary.ID,
	}

	instance.ImageIdentity = imageIdentity(ctx, client, summary.ImageID)

	return instance, nil
}

// findContainer lists containers matching the given exact name.
func findContainer(
	ctx context.Context,
	client dockerclient.RuntimeClient,
	name string,
) (container.Summary, bool, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("name", "^/"+name+"$")

	containers, err := client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return container.Summary{}, false, fmt.Errorf("list containers: %w", err)
	}

	if len(containers) == 0 {
		return container.Summary{}, false, nil
	}

	return containers[0], true, nil
}

// imageIdentity resolves the repo digest of the instance's image. An
// unresolvable identity is returned empty, which the oracle treats as
// "assume current".
func imageIdentity(
	ctx context.Context,
	client dockerclient.RuntimeClient,
	imageID string,
) string {
	if imageID == "" {
		return ""
	}

	inspect, err := client.ImageInspect(ctx, imageID)
	if err != nil || len(inspect.RepoDigests) == 0 {
		return ""
	}

	_, digest, found := strings.Cut(inspect.RepoDigests[0], "@")
	if !found {
		return ""
	}

	return digest
}

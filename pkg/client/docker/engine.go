// Package docker wraps construction of Docker Engine API clients.
//
// Podman exposes a Docker-compatible API on its own socket, so the same SDK
// client serves both runtime kinds; callers select the runtime by endpoint.
package docker

import (
	"errors"
	"fmt"

	"github.com/docker/docker/client"
)

// Error definitions for container engine operations.
var (
	// ErrEmptyHost is returned when an explicit endpoint is required but missing.
	ErrEmptyHost = errors.New("engine endpoint cannot be empty")
)

// GetClient creates a Docker client using environment configuration
// (DOCKER_HOST, DOCKER_API_VERSION, ...).
func GetClient() (client.APIClient, error) {
	apiClient, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine client: %w", err)
	}

	return apiClient, nil
}

// GetClientForHost creates a Docker-compatible API client bound to an explicit
// endpoint, e.g. unix:///run/podman/podman.sock for Podman or
// npipe:////./pipe/docker_engine on Windows.
func GetClientForHost(host string) (client.APIClient, error) {
	if host == "" {
		return nil, ErrEmptyHost
	}

	apiClient, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine client for %s: %w", host, err)
	}

	return apiClient, nil
}

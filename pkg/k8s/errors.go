package k8s

import "errors"

// Shared Kubernetes client errors.
var (
	// ErrKubeconfigPathEmpty is returned when a kubeconfig path is required but empty.
	ErrKubeconfigPathEmpty = errors.New("kubeconfig path cannot be empty")

	// ErrClusterUnreachable is returned when the API server does not answer a
	// discovery call within the probe budget.
	ErrClusterUnreachable = errors.New("kubernetes api server is unreachable")

	// ErrEmptyManifest is returned when a manifest apply receives no documents.
	ErrEmptyManifest = errors.New("manifest contains no resources")
)

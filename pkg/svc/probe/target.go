// Package probe detects which container runtimes and execution contexts are
// present and reachable on the host, producing the deployment target set.
package probe

import "fmt"

// RuntimeKind identifies a container execution engine or cluster deploy tool.
type RuntimeKind string

// Supported runtime kinds.
const (
	// RuntimeDocker is the Docker engine.
	RuntimeDocker RuntimeKind = "docker"
	// RuntimePodman is the Podman engine, reached over its Docker-compatible socket.
	RuntimePodman RuntimeKind = "podman"
	// RuntimeHelm marks the Kubernetes cluster target (chart or manifest deploy).
	RuntimeHelm RuntimeKind = "helm"
)

// Context identifiers for the places a runtime can live.
const (
	// ContextHost is the native host.
	ContextHost = "host"
	// ContextCluster is the Kubernetes cluster this host belongs to.
	ContextCluster = "cluster"
	// wslContextPrefix prefixes a WSL distribution name, e.g. "wsl:Ubuntu".
	wslContextPrefix = "wsl:"
)

// Target is one (execution-context, runtime) pair eligible for deployment.
// Targets are created during probing and immutable thereafter.
type Target struct {
	// Context identifies where the runtime lives: "host", "wsl:<distro>" or "cluster".
	Context string
	// Runtime is the runtime kind serving this target.
	Runtime RuntimeKind
	// Endpoint is the engine API endpoint for container runtimes; empty for
	// the cluster target, which goes through kubeconfig.
	Endpoint string
}

// Name returns the stable human identifier used in logs and the summary.
func (t Target) Name() string {
	return fmt.Sprintf("%s/%s", t.Context, t.Runtime)
}

// IsCluster reports whether the target deploys into a Kubernetes cluster.
func (t Target) IsCluster() bool {
	return t.Context == ContextCluster
}

// WSLContext builds the context identifier for a WSL distribution.
func WSLContext(distro string) string {
	return wslContextPrefix + distro
}

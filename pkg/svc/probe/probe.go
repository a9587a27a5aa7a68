package probe

import (
	"context"
	"errors"
	"runtime"

	log "github.com/sirupsen/logrus"

	dockerclient "github.com/mattskanaut/car-cs-deployment/pkg/client/docker"
)

// ErrNoRuntime is returned when no reachable runtime or cluster exists
// anywhere on the host. This is the only hard failure probing can produce.
var ErrNoRuntime = errors.New("no reachable container runtime or cluster detected")

// Connector builds a runtime client for an engine endpoint.
type Connector func(host string) (dockerclient.RuntimeClient, error)

// Prober enumerates the deployment targets present on this host. Every
// reachable runtime becomes an independent target: two runtimes side by side
// are a fan-out, never a conflict.
type Prober struct {
	connect   Connector
	commander Commander
	cluster   *ClusterDetector
	goos      string
}

// Option customizes a Prober.
type Option func(*Prober)

// WithConnector overrides how engine clients are constructed (tests).
func WithConnector(connect Connector) Option {
	return func(p *Prober) { p.connect = connect }
}

// WithCommander overrides the WSL command runner (tests).
func WithCommander(commander Commander) Option {
	return func(p *Prober) { p.commander = commander }
}

// WithClusterDetector overrides cluster membership detection (tests).
func WithClusterDetector(detector *ClusterDetector) Option {
	return func(p *Prober) { p.cluster = detector }
}

// WithGOOS overrides the detected host OS (tests).
func WithGOOS(goos string) Option {
	return func(p *Prober) { p.goos = goos }
}

// NewProber creates a Prober with production defaults.
func NewProber(opts ...Option) *Prober {
	prober := &Prober{
		connect: func(host string) (dockerclient.RuntimeClient, error) {
			engine, err := dockerclient.GetClientForHost(host)
			if err != nil {
				return nil, err
			}

			return engine, nil
		},
		commander: ExecCommander{},
		cluster:   NewClusterDetector(),
		goos:      runtime.GOOS,
	}

	for _, opt := range opts {
		opt(prober)
	}

	return prober
}

// Probe returns every reachable deployment target. An unreachable runtime is
// absent from the result, not an error; only an empty result set fails, with
// ErrNoRuntime.
func (p *Prober) Probe(ctx context.Context) ([]Target, error) {
	var targets []Target

	targets = append(targets, p.probeContext(ctx, ContextHost)...)

	if p.goos == "windows" {
		targets = append(targets, p.probeWSL(ctx)...)
	}

	if p.cluster.Detect(ctx) {
		targets = append(targets, Target{Context: ContextCluster, Runtime: RuntimeHelm})
	}

	if len(targets) == 0 {
		return nil, ErrNoRuntime
	}

	return targets, nil
}

// probeContext checks both engine kinds within one execution context.
func (p *Prober) probeContext(ctx context.Context, contextID string) []Target {
	var targets []Target

	for _, kind := range []RuntimeKind{RuntimeDocker, RuntimePodman} {
		endpoint := EngineEndpoint(kind, p.goos)

		if !p.engineReachable(ctx, endpoint) {
			log.WithFields(log.Fields{"context": contextID, "runtime": kind}).
				Debug("runtime not reachable, skipping")

			continue
		}

		targets = append(targets, Target{
			Context:  contextID,
			Runtime:  kind,
			Endpoint: endpoint,
		})
	}

	return targets
}

// probeWSL repeats runtime detection for each running WSL distribution. The
// engines of WSL distributions surface on the host as named pipes, so
// reachability still goes through the engine API rather than a shell.
func (p *Prober) probeWSL(ctx context.Context) []Target {
	distros, err := ListRunningDistros(ctx, p.commander)
	if err != nil {
		log.WithError(err).Debug("wsl enumeration failed, skipping wsl targets")

		return nil
	}

	var targets []Target

	for _, distro := range distros {
		targets = append(targets, p.probeContext(ctx, WSLContext(distro))...)
	}

	return targets
}

// engineReachable dials the engine endpoint and issues a ping. Installed but
// unresponsive engines count as absent.
func (p *Prober) engineReachable(ctx context.Context, endpoint string) bool {
	client, err := p.connect(endpoint)
	if err != nil {
		return false
	}

	defer func() { _ = client.Close() }()

	_, err = client.Ping(ctx)

	return err == nil
}

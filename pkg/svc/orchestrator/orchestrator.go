// Package orchestrator fans one installation run out across every detected
// target, isolates per-target failures, and folds the outcomes into a single
// exit code and a human-readable summary.
package orchestrator

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	dockerclient "github.com/mattskanaut/car-cs-deployment/pkg/client/docker"
	"github.com/mattskanaut/car-cs-deployment/pkg/client/registry"
	"github.com/mattskanaut/car-cs-deployment/pkg/config"
	"github.com/mattskanaut/car-cs-deployment/pkg/exitcode"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/decision"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/oracle"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
)

// Status classifies one target's outcome.
type Status int

// Per-target outcomes.
const (
	// StatusSucceeded means the planned action completed and verified.
	StatusSucceeded Status = iota
	// StatusFailed means the action was attempted and failed; other targets
	// keep processing.
	StatusFailed
	// StatusSkipped means no action was needed or possible; skips never
	// poison the aggregate outcome.
	StatusSkipped
)

// String returns the outcome name used in logs and the summary.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result is the recorded outcome of one target.
type Result struct {
	Target probe.Target
	Action decision.Action
	Status Status
	Reason string
	Err    error
}

// Run is a completed orchestration: all per-target results plus the
// aggregate exit code.
type Run struct {
	Mode    string
	Results []Result
	Code    exitcode.Code
}

// Counts tallies the run's outcomes.
func (r Run) Counts() (succeeded, failed, skipped int) {
	for _, result := range r.Results {
		switch result.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}

	return succeeded, failed, skipped
}

func finishRun(mode string, results []Result) Run {
	run := Run{Mode: mode, Results: results}

	succeeded, failed, skipped := run.Counts()
	run.Code = exitcode.Aggregate(succeeded, failed, skipped)

	return run
}

// Launcher is the registry-path deployment surface per target.
type Launcher interface {
	Teardown(ctx context.Context, containerID string) error
	Launch(ctx context.Context, spec deployer.RegistrySpec) error
	Verify(ctx context.Context, containerName string) error
}

// ArchiveDeployer runs the archive-path installation.
type ArchiveDeployer interface {
	Install(ctx context.Context, spec deployer.ArchiveSpec) error
}

// VersionChecker reports whether a local image identity is outdated.
type VersionChecker interface {
	IsOutdated(ctx context.Context, localIdentity string) bool
}

// HostOrchestrator processes container-runtime targets sequentially. A
// failing target is recorded and the run moves on; only global preconditions
// abort a run.
type HostOrchestrator struct {
	connect     probe.Connector
	newLauncher func(dockerclient.RuntimeClient) Launcher
	archive     ArchiveDeployer
	checker     VersionChecker
	sensorImage string
}

// HostOption customizes a HostOrchestrator.
type HostOption func(*HostOrchestrator)

// WithConnector overrides runtime client construction (tests).
func WithConnector(connect probe.Connector) HostOption {
	return func(o *HostOrchestrator) { o.connect = connect }
}

// WithLauncherFactory overrides per-target launcher construction (tests).
func WithLauncherFactory(factory func(dockerclient.RuntimeClient) Launcher) HostOption {
	return func(o *HostOrchestrator) { o.newLauncher = factory }
}

// WithArchiveDeployer overrides the archive installer (tests).
func WithArchiveDeployer(archive ArchiveDeployer) HostOption {
	return func(o *HostOrchestrator) { o.archive = archive }
}

// WithVersionChecker overrides the freshness oracle (tests).
func WithVersionChecker(checker VersionChecker) HostOption {
	return func(o *HostOrchestrator) { o.checker = checker }
}

// NewHostOrchestrator creates a HostOrchestrator with production defaults.
func NewHostOrchestrator(settings config.Settings, opts ...HostOption) *HostOrchestrator {
	orchestrator := &HostOrchestrator{
		connect: func(host string) (dockerclient.RuntimeClient, error) {
			engine, err := dockerclient.GetClientForHost(host)
			if err != nil {
				return nil, err
			}

			return engine, nil
		},
		newLauncher: func(client dockerclient.RuntimeClient) Launcher {
			return deployer.NewContainerLauncher(client)
		},
		archive:     deployer.NewArchiveInstaller(deployer.NewHTTPFetcher(), deployer.ExecRunner{}),
		checker:     oracle.New(registry.NewClient(), settings.SensorImage),
		sensorImage: settings.SensorImage,
	}

	for _, opt := range opts {
		opt(orchestrator)
	}

	return orchestrator
}

// Run processes every target and returns the aggregated outcome.
func (o *HostOrchestrator) Run(
	ctx context.Context,
	targets []probe.Target,
	cfg config.HostConfig,
) Run {
	results := make([]Result, 0, len(targets))

	for _, target := range targets {
		result := o.processTarget(ctx, target, cfg)

		logResult(result)

		results = append(results, result)
	}

	return finishRun("host", results)
}

func (o *HostOrchestrator) processTarget(
	ctx context.Context,
	target probe.Target,
	cfg config.HostConfig,
) Result {
	if target.IsCluster() {
		return Result{
			Target: target,
			Status: StatusSkipped,
			Reason: "cluster target, use the cluster variant",
		}
	}

	client, err := o.connect(target.Endpoint)
	if err != nil {
		return Result{
			Target: target,
			Status: StatusFailed,
			Reason: "runtime connection failed",
			Err:    fmt.Errorf("connect %s: %w", target.Name(), err),
		}
	}

	defer func() { _ = client.Close() }()

	containerName := deployer.ContainerName(target)

	instance, err := deployer.QueryInstance(ctx, client, containerName)
	if err != nil {
		return Result{
			Target: target,
			Status: StatusFailed,
			Reason: "instance query failed",
			Err:    fmt.Errorf("query %s: %w", target.Name(), err),
		}
	}

	outdated := false
	if cfg.Source == decision.SourceRegistry && instance.Running {
		outdated = o.checker.IsOutdated(ctx, instance.ImageIdentity)
	}

	plan := decision.Decide(cfg.Force, instance.DecisionState(outdated), cfg.Source)

	if plan.Action == decision.ActionSkip {
		return Result{
			Target: target,
			Action: plan.Action,
			Status: StatusSkipped,
			Reason: plan.Reason,
		}
	}

	if err := o.deploy(ctx, client, target, cfg, plan, instance, containerName); err != nil {
		return Result{
			Target: target,
			Action: plan.Action,
			Status: StatusFailed,
			Reason: fmt.Sprintf("%s failed", plan.Action),
			Err:    err,
		}
	}

	return Result{
		Target: target,
		Action: plan.Action,
		Status: StatusSucceeded,
		Reason: fmt.Sprintf("%s succeeded (%s)", plan.Action, plan.Reason),
	}
}

// deploy executes the planned action through the source-appropriate path.
// Teardown precedes every replacing action so removal and creation stay
// atomic from the model's perspective.
func (o *HostOrchestrator) deploy(
	ctx context.Context,
	client dockerclient.RuntimeClient,
	target probe.Target,
	cfg config.HostConfig,
	plan decision.Plan,
	instance deployer.Instance,
	containerName string,
) error {
	launcher := o.newLauncher(client)

	replacing := plan.Action == decision.ActionUpgrade ||
		plan.Action == decision.ActionForceReinstall

	if replacing && instance.Exists {
		if err := launcher.Teardown(ctx, instance.ContainerID); err != nil {
			return err
		}
	}

	if cfg.Source == decision.SourceArchive {
		return o.archive.Install(ctx, deployer.ArchiveSpec{
			Location:     cfg.Location,
			ActivationID: cfg.ActivationID,
			CustomerID:   cfg.CustomerID,
			Runtime:      target.Runtime,
			ExtraOptions: cfg.InstallOptions,
		})
	}

	err := launcher.Launch(ctx, deployer.RegistrySpec{
		Image:         o.sensorImage,
		ContainerName: containerName,
		ActivationID:  cfg.ActivationID,
		CustomerID:    cfg.CustomerID,
		PodURL:        cfg.PodURL,
		Endpoint:      target.Endpoint,
		Runtime:       target.Runtime,
	})
	if err != nil {
		return err
	}

	return launcher.Verify(ctx, containerName)
}

func logResult(result Result) {
	entry := log.WithFields(log.Fields{
		"target": result.Target.Name(),
		"action": result.Action.String(),
		"status": result.Status.String(),
	})

	if result.Err != nil {
		entry.WithError(result.Err).Error("target processing failed")

		return
	}

	entry.Info(result.Reason)
}

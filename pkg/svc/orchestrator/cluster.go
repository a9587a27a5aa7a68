package orchestrator

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/mattskanaut/car-cs-deployment/pkg/config"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/decision"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
)

// Locker is the cluster-wide mutual exclusion surface.
type Locker interface {
	TryAcquire(ctx context.Context) bool
	Release(ctx context.Context)
}

// ClusterRunner queries and deploys the sensor's cluster installation.
type ClusterRunner interface {
	Instance(ctx context.Context) deployer.Instance
	Deploy(ctx context.Context, spec deployer.ClusterSpec, action decision.Action) error
}

// ClusterOrchestrator drives the single-target cluster run: decision, lock,
// deploy, unlock. The lock is held only around the deployment itself and is
// released on every path.
type ClusterOrchestrator struct {
	lock            Locker
	runner          ClusterRunner
	registerJanitor func(ctx context.Context) error
}

// NewClusterOrchestrator creates a ClusterOrchestrator. registerJanitor may
// be nil when janitor registration is handled elsewhere.
func NewClusterOrchestrator(
	lock Locker,
	runner ClusterRunner,
	registerJanitor func(ctx context.Context) error,
) *ClusterOrchestrator {
	return &ClusterOrchestrator{
		lock:            lock,
		runner:          runner,
		registerJanitor: registerJanitor,
	}
}

// Run executes one cluster deployment under the installation lock.
func (o *ClusterOrchestrator) Run(ctx context.Context, cfg config.ClusterConfig) Run {
	target := probe.Target{Context: probe.ContextCluster, Runtime: probe.RuntimeHelm}

	result := o.processCluster(ctx, target, cfg)

	logResult(result)

	return finishRun("cluster", []Result{result})
}

func (o *ClusterOrchestrator) processCluster(
	ctx context.Context,
	target probe.Target,
	cfg config.ClusterConfig,
) Result {
	// Janitor registration is idempotent and advisory; a failure must not
	// block the installation it protects.
	if o.registerJanitor != nil {
		if err := o.registerJanitor(ctx); err != nil {
			log.WithError(err).Warn("janitor registration failed, stale locks expire manually")
		}
	}

	instance := o.runner.Instance(ctx)

	// Chart releases are never version-checked: helm upgrade convergence
	// replaces the oracle, so the decision runs on the archive column.
	plan := decision.Decide(cfg.Force, instance.DecisionState(false), decision.SourceArchive)

	if plan.Action == decision.ActionSkip {
		return Result{
			Target: target,
			Action: plan.Action,
			Status: StatusSkipped,
			Reason: plan.Reason,
		}
	}

	if !o.lock.TryAcquire(ctx) {
		return Result{
			Target: target,
			Action: plan.Action,
			Status: StatusSkipped,
			Reason: "installation lock held, another invocation is likely in progress",
		}
	}

	defer o.lock.Release(ctx)

	spec := deployer.ClusterSpec{
		ChartRef:  cfg.ChartRef,
		Version:   cfg.Version,
		Namespace: cfg.Namespace,
		SetValues: cfg.SetValues,
	}

	if err := o.runner.Deploy(ctx, spec, plan.Action); err != nil {
		return Result{
			Target: target,
			Action: plan.Action,
			Status: StatusFailed,
			Reason: "cluster deployment failed",
			Err:    err,
		}
	}

	return Result{
		Target: target,
		Action: plan.Action,
		Status: StatusSucceeded,
		Reason: plan.Action.String() + " succeeded (" + plan.Reason + ")",
	}
}

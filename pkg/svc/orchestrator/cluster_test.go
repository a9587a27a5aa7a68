package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattskanaut/car-cs-deployment/pkg/config"
	"github.com/mattskanaut/car-cs-deployment/pkg/exitcode"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/decision"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/orchestrator"
)

// fakeLock simulates the cluster lock without an API server.
type fakeLock struct {
	acquirable bool
	acquired   int
	released   int
}

func (f *fakeLock) TryAcquire(context.Context) bool {
	if f.acquirable {
		f.acquired++
	}

	return f.acquirable
}

func (f *fakeLock) Release(context.Context) { f.released++ }

// fakeClusterRunner records cluster deployments.
type fakeClusterRunner struct {
	instance  deployer.Instance
	deployed  []decision.Action
	deployErr error
}

func (f *fakeClusterRunner) Instance(context.Context) deployer.Instance {
	return f.instance
}

func (f *fakeClusterRunner) Deploy(
	_ context.Context, _ deployer.ClusterSpec, action decision.Action,
) error {
	f.deployed = append(f.deployed, action)

	return f.deployErr
}

func clusterConfig(force bool) config.ClusterConfig {
	return config.ClusterConfig{
		ChartRef: "./charts/cs-sensor.tgz",
		Force:    force,
	}
}

func TestClusterRun_InstallUnderLock(t *testing.T) {
	t.Parallel()

	lock := &fakeLock{acquirable: true}
	runner := &fakeClusterRunner{}

	cluster := orchestrator.NewClusterOrchestrator(lock, runner, nil)
	run := cluster.Run(context.Background(), clusterConfig(false))

	require.Len(t, run.Results, 1)
	assert.Equal(t, orchestrator.StatusSucceeded, run.Results[0].Status)
	assert.Equal(t, exitcode.Success, run.Code)
	assert.Equal(t, []decision.Action{decision.ActionInstall}, runner.deployed)
	assert.Equal(t, 1, lock.acquired)
	assert.Equal(t, 1, lock.released, "lock must be released after deployment")
}

// Scenario: the lock is held by a younger owner; the cluster target is
// skipped and a lone skip exits with NoAction.
func TestClusterRun_HeldLockSkips(t *testing.T) {
	t.Parallel()

	lock := &fakeLock{acquirable: false}
	runner := &fakeClusterRunner{}

	cluster := orchestrator.NewClusterOrchestrator(lock, runner, nil)
	run := cluster.Run(context.Background(), clusterConfig(false))

	require.Len(t, run.Results, 1)
	assert.Equal(t, orchestrator.StatusSkipped, run.Results[0].Status)
	assert.Contains(t, run.Results[0].Reason, "lock held")
	assert.Equal(t, exitcode.NoAction, run.Code)
	assert.Empty(t, runner.deployed, "no deployment without the lock")
	assert.Equal(t, 0, lock.released, "nothing to release when acquisition lost")
}

func TestClusterRun_DeployedReleaseSkipsWithoutLocking(t *testing.T) {
	t.Parallel()

	lock := &fakeLock{acquirable: true}
	runner := &fakeClusterRunner{
		instance: deployer.Instance{Exists: true, Running: true},
	}

	cluster := orchestrator.NewClusterOrchestrator(lock, runner, nil)
	run := cluster.Run(context.Background(), clusterConfig(false))

	require.Len(t, run.Results, 1)
	assert.Equal(t, orchestrator.StatusSkipped, run.Results[0].Status)
	assert.Equal(t, 0, lock.acquired, "skips must not contend on the lock")
}

func TestClusterRun_ForceReinstallsDeployedRelease(t *testing.T) {
	t.Parallel()

	lock := &fakeLock{acquirable: true}
	runner := &fakeClusterRunner{
		instance: deployer.Instance{Exists: true, Running: true},
	}

	cluster := orchestrator.NewClusterOrchestrator(lock, runner, nil)
	run := cluster.Run(context.Background(), clusterConfig(true))

	require.Len(t, run.Results, 1)
	assert.Equal(t, orchestrator.StatusSucceeded, run.Results[0].Status)
	assert.Equal(t, []decision.Action{decision.ActionForceReinstall}, runner.deployed)
}

func TestClusterRun_DeployFailureReleasesLock(t *testing.T) {
	t.Parallel()

	lock := &fakeLock{acquirable: true}
	runner := &fakeClusterRunner{deployErr: deployer.ErrChartFailed}

	cluster := orchestrator.NewClusterOrchestrator(lock, runner, nil)
	run := cluster.Run(context.Background(), clusterConfig(false))

	require.Len(t, run.Results, 1)
	assert.Equal(t, orchestrator.StatusFailed, run.Results[0].Status)
	assert.Equal(t, exitcode.DeployExec, run.Code)
	assert.Equal(t, 1, lock.released, "lock must be released on the failure path too")
}

func TestClusterRun_JanitorFailureIsAdvisory(t *testing.T) {
	t.Parallel()

	lock := &fakeLock{acquirable: true}
	runner := &fakeClusterRunner{}

	cluster := orchestrator.NewClusterOrchestrator(lock, runner,
		func(context.Context) error { return assert.AnError })
	run := cluster.Run(context.Background(), clusterConfig(false))

	require.Len(t, run.Results, 1)
	assert.Equal(t, orchestrator.StatusSucceeded, run.Results[0].Status)
}

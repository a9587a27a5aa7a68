package deployer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mattskanaut/car-cs-deployment/pkg/client/helm"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/decision"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
)

// stubApplier records manifest operations.
type stubApplier struct {
	applied   int
	deleted   int
	applyErr  error
	deleteErr error
}

func (s *stubApplier) Apply(_ context.Context, _ []byte, _ string) error {
	s.applied++

	return s.applyErr
}

func (s *stubApplier) Delete(_ context.Context, _ []byte, _ string) error {
	s.deleted++

	return s.deleteErr
}

func clusterSpec() deployer.ClusterSpec {
	return deployer.ClusterSpec{
		ChartRef:  "./charts/cs-sensor-1.2.3.tgz",
		SetValues: map[string]string{"sensor.activationId": "act-1"},
	}
}

func TestClusterDeploy_InstallGoesThroughChartPath(t *testing.T) {
	t.Parallel()

	helmClient := helm.NewMockClient()
	helmClient.On("InstallOrUpgradeChart", context.Background(),
		mock.MatchedBy(func(spec *helm.ChartSpec) bool {
			return spec.ReleaseName == deployer.SensorReleaseName &&
				spec.Namespace == deployer.SensorNamespace &&
				spec.CreateNamespace
		})).
		Return(&helm.ReleaseInfo{Name: deployer.SensorReleaseName, Revision: 1}, nil)

	clusterDeployer := deployer.NewClusterDeployer(helmClient, nil)

	err := clusterDeployer.Deploy(context.Background(), clusterSpec(), decision.ActionInstall)
	require.NoError(t, err)
	helmClient.AssertNotCalled(t, "UninstallRelease", mock.Anything, mock.Anything, mock.Anything)
}

func TestClusterDeploy_ForceReinstallUninstallsFirst(t *testing.T) {
	t.Parallel()

	helmClient := helm.NewMockClient()
	helmClient.On("UninstallRelease", context.Background(),
		deployer.SensorReleaseName, deployer.SensorNamespace).
		Return(nil)
	helmClient.On("InstallOrUpgradeChart", context.Background(), mock.Anything).
		Return(&helm.ReleaseInfo{Name: deployer.SensorReleaseName, Revision: 1}, nil)

	clusterDeployer := deployer.NewClusterDeployer(helmClient, nil)

	err := clusterDeployer.Deploy(
		context.Background(), clusterSpec(), decision.ActionForceReinstall)
	require.NoError(t, err)
	helmClient.AssertExpectations(t)
}

func TestClusterDeploy_ForceReinstallToleratesAbsentRelease(t *testing.T) {
	t.Parallel()

	helmClient := helm.NewMockClient()
	helmClient.On("UninstallRelease", context.Background(),
		deployer.SensorReleaseName, deployer.SensorNamespace).
		Return(errors.New(`uninstall release "cs-sensor": release: not found`))
	helmClient.On("InstallOrUpgradeChart", context.Background(), mock.Anything).
		Return(&helm.ReleaseInfo{Name: deployer.SensorReleaseName, Revision: 1}, nil)

	clusterDeployer := deployer.NewClusterDeployer(helmClient, nil)

	err := clusterDeployer.Deploy(
		context.Background(), clusterSpec(), decision.ActionForceReinstall)
	require.NoError(t, err)
}

func TestClusterDeploy_ChartFailureWrapped(t *testing.T) {
	t.Parallel()

	helmClient := helm.NewMockClient()
	helmClient.On("InstallOrUpgradeChart", context.Background(), mock.Anything).
		Return(nil, errors.New("chart refused"))

	clusterDeployer := deployer.NewClusterDeployer(helmClient, nil)

	err := clusterDeployer.Deploy(context.Background(), clusterSpec(), decision.ActionUpgrade)
	require.ErrorIs(t, err, deployer.ErrChartFailed)
}

func TestClusterDeploy_ManifestFallback(t *testing.T) {
	t.Parallel()

	applier := &stubApplier{}
	clusterDeployer := deployer.NewClusterDeployer(nil, applier)

	spec := clusterSpec()
	spec.Manifest = []byte("kind: DaemonSet\nmetadata:\n  name: cs-sensor\n")

	err := clusterDeployer.Deploy(context.Background(), spec, decision.ActionInstall)
	require.NoError(t, err)
	assert.Equal(t, 1, applier.applied)
	assert.Equal(t, 0, applier.deleted)
}

func TestClusterDeploy_ManifestForceReinstallDeletesFirst(t *testing.T) {
	t.Parallel()

	applier := &stubApplier{}
	clusterDeployer := deployer.NewClusterDeployer(nil, applier)

	spec := clusterSpec()
	spec.Manifest = []byte("kind: DaemonSet\nmetadata:\n  name: cs-sensor\n")

	err := clusterDeployer.Deploy(context.Background(), spec, decision.ActionForceReinstall)
	require.NoError(t, err)
	assert.Equal(t, 1, applier.deleted)
	assert.Equal(t, 1, applier.applied)
}

func TestClusterDeploy_EmptyManifestFails(t *testing.T) {
	t.Parallel()

	clusterDeployer := deployer.NewClusterDeployer(nil, &stubApplier{})

	err := clusterDeployer.Deploy(context.Background(), clusterSpec(), decision.ActionInstall)
	require.ErrorIs(t, err, deployer.ErrManifestFailed)
}

func TestClusterDeploy_NoClientsConfigured(t *testing.T) {
	t.Parallel()

	clusterDeployer := deployer.NewClusterDeployer(nil, nil)

	err := clusterDeployer.Deploy(context.Background(), clusterSpec(), decision.ActionInstall)
	require.ErrorIs(t, err, deployer.ErrChartFailed)
}

package deployer

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	helmclient "github.com/mattskanaut/car-cs-deployment/pkg/client/helm"
	"github.com/mattskanaut/car-cs-deployment/pkg/k8s"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/decision"
)

// Default coordinates of the sensor's cluster deployment.
const (
	SensorReleaseName = "cs-sensor"
	SensorNamespace   = "cs-system"
)

// ManifestApplier is the subset of the dynamic apply surface the cluster
// deployer needs.
type ManifestApplier interface {
	Apply(ctx context.Context, manifest []byte, defaultNamespace string) error
	Delete(ctx context.Context, manifest []byte, defaultNamespace string) error
}

var _ ManifestApplier = (*k8s.Applier)(nil)

// ClusterSpec describes one Kubernetes sensor deployment.
type ClusterSpec struct {
	ChartRef  string
	Version   string
	Namespace string
	SetValues map[string]string
	// Manifest is the rendered fallback for chart-tool-less targets; used
	// only when no chart client is configured.
	Manifest []byte
}

// ClusterDeployer installs the sensor into a Kubernetes cluster, preferring
// the chart path and falling back to a dynamic-client manifest apply.
type ClusterDeployer struct {
	helm    helmclient.Interface
	applier ManifestApplier
}

// NewClusterDeployer creates a ClusterDeployer. Either client may be nil; at
// least one must be set for Deploy to succeed.
func NewClusterDeployer(helm helmclient.Interface, applier ManifestApplier) *ClusterDeployer {
	return &ClusterDeployer{helm: helm, applier: applier}
}

// Instance reports the observable state of the sensor release. Without a
// chart client the state is unknown and reads as absent, which routes the
// run through the convergent apply path.
func (d *ClusterDeployer) Instance(ctx context.Context) Instance {
	if d.helm == nil {
		return Instance{}
	}

	info, err := d.helm.GetRelease(ctx, SensorReleaseName)
	if err != nil || info == nil {
		return Instance{}
	}

	return Instance{
		Exists:  true,
		Running: strings.EqualFold(info.Status, "deployed"),
	}
}

// Deploy executes the planned action against the cluster. ForceReinstall
// removes the existing deployment first; Install and Upgrade both converge
// through the idempotent install-or-upgrade path.
func (d *ClusterDeployer) Deploy(ctx context.Context, spec ClusterSpec, action decision.Action) error {
	if d.helm != nil {
		return d.deployChart(ctx, spec, action)
	}

	if d.applier != nil {
		return d.applyManifest(ctx, spec, action)
	}

	return fmt.Errorf("%w: no chart client or manifest applier configured", ErrChartFailed)
}

func (d *ClusterDeployer) deployChart(
	ctx context.Context,
	spec ClusterSpec,
	action decision.Action,
) error {
	namespace := spec.Namespace
	if namespace == "" {
		namespace = SensorNamespace
	}

	if action == decision.ActionForceReinstall {
		err := d.helm.UninstallRelease(ctx, SensorReleaseName, namespace)
		if err != nil && !isReleaseAbsent(err) {
			return fmt.Errorf("%w: %w", ErrChartFailed, err)
		}
	}

	chartSpec := &helmclient.ChartSpec{
		ReleaseName:     SensorReleaseName,
		ChartRef:        spec.ChartRef,
		Namespace:       namespace,
		Version:         spec.Version,
		CreateNamespace: true,
		Wait:            true,
		SetValues:       spec.SetValues,
	}

	info, err := d.helm.InstallOrUpgradeChart(ctx, chartSpec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChartFailed, err)
	}

	log.WithFields(log.Fields{
		"release":  info.Name,
		"revision": info.Revision,
		"status":   info.Status,
	}).Debug("chart deployment complete")

	return nil
}

func (d *ClusterDeployer) applyManifest(
	ctx context.Context,
	spec ClusterSpec,
	action decision.Action,
) error {
	if len(spec.Manifest) == 0 {
		return fmt.Errorf("%w: %w", ErrManifestFailed, k8s.ErrEmptyManifest)
	}

	namespace := spec.Namespace
	if namespace == "" {
		namespace = SensorNamespace
	}

	if action == decision.ActionForceReinstall {
		if err := d.applier.Delete(ctx, spec.Manifest, namespace); err != nil {
			return fmt.Errorf("%w: %w", ErrManifestFailed, err)
		}
	}

	if err := d.applier.Apply(ctx, spec.Manifest, namespace); err != nil {
		return fmt.Errorf("%w: %w", ErrManifestFailed, err)
	}

	return nil
}

// isReleaseAbsent reports whether an uninstall failed only because there was
// nothing to uninstall.
func isReleaseAbsent(err error) bool {
	return strings.Contains(err.Error(), "release: not found")
}

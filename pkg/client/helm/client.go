// Package helm wraps the Helm v4 SDK with the small surface the cluster
// deployer needs: idempotent install-or-upgrade and uninstall of the sensor
// chart release.
package helm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	helmv4action "helm.sh/helm/v4/pkg/action"
	helmv4loader "helm.sh/helm/v4/pkg/chart/loader"
	chartv2 "helm.sh/helm/v4/pkg/chart/v2"
	helmv4cli "helm.sh/helm/v4/pkg/cli"
	helmv4kube "helm.sh/helm/v4/pkg/kube"
	v1 "helm.sh/helm/v4/pkg/release/v1"
	helmv4strvals "helm.sh/helm/v4/pkg/strvals"
)

// DefaultTimeout defines the fallback chart operation timeout.
const DefaultTimeout = 5 * time.Minute

var (
	errReleaseNameRequired = errors.New("helm: release name is required")
	errChartSpecRequired   = errors.New("helm: chart spec is required")
)

// ChartSpec describes one chart operation against the cluster.
type ChartSpec struct {
	ReleaseName string
	// ChartRef is a local chart directory or packaged chart archive.
	ChartRef  string
	Namespace string
	Version   string

	CreateNamespace bool
	Wait            bool
	Timeout         time.Duration

	// SetValues are --set style overrides applied on top of chart defaults.
	SetValues map[string]string
}

// ReleaseInfo captures metadata about a release after an operation.
type ReleaseInfo struct {
	Name      string
	Namespace string
	Revision  int
	Status    string
	Chart     string
	Updated   time.Time
}

// Interface defines the subset of Helm functionality required by the deployer.
type Interface interface {
	InstallOrUpgradeChart(ctx context.Context, spec *ChartSpec) (*ReleaseInfo, error)
	UninstallRelease(ctx context.Context, releaseName, namespace string) error
	GetRelease(ctx context.Context, releaseName string) (*ReleaseInfo, error)
}

// Client is the default Helm implementation.
type Client struct {
	actionConfig *helmv4action.Configuration
	settings     *helmv4cli.EnvSettings
}

var _ Interface = (*Client)(nil)

// NewClient creates a Helm client using the provided kubeconfig and context.
func NewClient(kubeConfig, kubeContext string) (*Client, error) {
	settings := helmv4cli.New()
	if kubeConfig != "" {
		settings.KubeConfig = kubeConfig
	}

	if kubeContext != "" {
		settings.KubeContext = kubeContext
	}

	actionConfig := new(helmv4action.Configuration)

	initErr := actionConfig.Init(
		settings.RESTClientGetter(),
		settings.Namespace(),
		os.Getenv("HELM_DRIVER"),
	)
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", initErr)
	}

	return &Client{actionConfig: actionConfig, settings: settings}, nil
}

// InstallOrUpgradeChart upgrades the release when it exists and installs it
// otherwise. A release history probe decides which action runs, so repeated
// invocations converge instead of failing on "already exists".
func (c *Client) InstallOrUpgradeChart(
	ctx context.Context,
	spec *ChartSpec,
) (*ReleaseInfo, error) {
	if spec == nil {
		return nil, errChartSpecRequired
	}

	if spec.ReleaseName == "" {
		return nil, errReleaseNameRequired
	}

	histClient := helmv4action.NewHistory(c.actionConfig)
	histClient.Max = 1

	var (
		rel *v1.Release
		err error
	)

	releases, histErr := histClient.Run(spec.ReleaseName)
	if histErr == nil && len(releases) > 0 {
		rel, err = c.upgradeRelease(ctx, spec)
	} else {
		rel, err = c.installRelease(ctx, spec)
	}

	if err != nil {
		return nil, err
	}

	return releaseToInfo(rel), nil
}

// UninstallRelease removes a release by name within the provided namespace.
func (c *Client) UninstallRelease(ctx context.Context, releaseName, namespace string) error {
	if releaseName == "" {
		return errReleaseNameRequired
	}

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return fmt.Errorf("uninstall release context cancelled: %w", ctxErr)
	}

	client := helmv4action.NewUninstall(c.actionConfig)
	client.KeepHistory = false

	_, uninstallErr := client.Run(releaseName)
	if uninstallErr != nil {
		return fmt.Errorf("uninstall release %q: %w", releaseName, uninstallErr)
	}

	return nil
}

// GetRelease returns metadata for the latest revision of a release, or nil
// when the release does not exist.
func (c *Client) GetRelease(ctx context.Context, releaseName string) (*ReleaseInfo, error) {
	if releaseName == "" {
		return nil, errReleaseNameRequired
	}

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return nil, fmt.Errorf("get release context cancelled: %w", ctxErr)
	}

	histClient := helmv4action.NewHistory(c.actionConfig)
	histClient.Max = 1

	releases, err := histClient.Run(releaseName)
	if err != nil || len(releases) == 0 {
		// History errors and empty histories both read as "not installed".
		return nil, nil //nolint:nilerr
	}

	rel, convErr := assertRelease(releases[0])
	if convErr != nil {
		return nil, convErr
	}

	return releaseToInfo(rel), nil
}

func (c *Client) installRelease(ctx context.Context, spec *ChartSpec) (*v1.Release, error) {
	client := helmv4action.NewInstall(c.actionConfig)
	client.ReleaseName = spec.ReleaseName
	client.Namespace = spec.Namespace
	client.CreateNamespace = spec.CreateNamespace
	client.Version = spec.Version
	client.Timeout = spec.Timeout

	if client.Timeout == 0 {
		client.Timeout = DefaultTimeout
	}

	if spec.Wait {
		client.WaitStrategy = helmv4kube.StatusWatcherStrategy
	}

	chart, err := loadChart(spec.ChartRef)
	if err != nil {
		return nil, err
	}

	vals, err := buildValues(spec)
	if err != nil {
		return nil, err
	}

	releaser, err := client.RunWithContext(ctx, chart, vals)
	if err != nil {
		return nil, fmt.Errorf("install release %q: %w", spec.ReleaseName, err)
	}

	return assertRelease(releaser)
}

func (c *Client) upgradeRelease(ctx context.Context, spec *ChartSpec) (*v1.Release, error) {
	client := helmv4action.NewUpgrade(c.actionConfig)
	client.Namespace = spec.Namespace
	client.Version = spec.Version
	client.Timeout = spec.Timeout

	if client.Timeout == 0 {
		client.Timeout = DefaultTimeout
	}

	if spec.Wait {
		client.WaitStrategy = helmv4kube.StatusWatcherStrategy
	}

	chart, err := loadChart(spec.ChartRef)
	if err != nil {
		return nil, err
	}

	vals, err := buildValues(spec)
	if err != nil {
		return nil, err
	}

	releaser, err := client.RunWithContext(ctx, spec.ReleaseName, chart, vals)
	if err != nil {
		return nil, fmt.Errorf("upgrade release %q: %w", spec.ReleaseName, err)
	}

	return assertRelease(releaser)
}

func loadChart(chartRef string) (*chartv2.Chart, error) {
	chartInterface, err := helmv4loader.Load(chartRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart %q: %w", chartRef, err)
	}

	chart, ok := chartInterface.(*chartv2.Chart)
	if !ok {
		return nil, fmt.Errorf("unexpected chart type: %T", chartInterface) //nolint:err113
	}

	return chart, nil
}

func buildValues(spec *ChartSpec) (map[string]interface{}, error) {
	base := map[string]interface{}{}

	for key, val := range spec.SetValues {
		if err := helmv4strvals.ParseInto(fmt.Sprintf("%s=%s", key, val), base); err != nil {
			return nil, fmt.Errorf("failed to parse set value %s=%s: %w", key, val, err)
		}
	}

	return base, nil
}

func assertRelease(releaser interface{}) (*v1.Release, error) {
	rel, ok := releaser.(*v1.Release)
	if !ok {
		return nil, fmt.Errorf("unexpected release type: %T", releaser) //nolint:err113
	}

	return rel, nil
}

func releaseToInfo(rel *v1.Release) *ReleaseInfo {
	if rel == nil {
		return nil
	}

	return &ReleaseInfo{
		Name:      rel.Name,
		Namespace: rel.Namespace,
		Revision:  rel.Version,
		Status:    rel.Info.Status.String(),
		Chart:     rel.Chart.Metadata.Name,
		Updated:   rel.Info.LastDeployed,
	}
}

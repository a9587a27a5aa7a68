package di

import (
	"context"
	"os"

	"github.com/samber/do/v2"
	"k8s.io/client-go/kubernetes"

	"github.com/mattskanaut/car-cs-deployment/pkg/client/helm"
	"github.com/mattskanaut/car-cs-deployment/pkg/config"
	"github.com/mattskanaut/car-cs-deployment/pkg/k8s"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/clusterlock"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/orchestrator"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
)

// ClusterFactory builds the Kubernetes-facing components on demand. Deferred
// construction keeps host-only invocations from ever touching kubeconfig.
type ClusterFactory func() (*orchestrator.ClusterOrchestrator, error)

// NewRuntime constructs the shared runtime container used by the root command
// and tests.
func NewRuntime() *Runtime {
	return New(
		provideSettings,
		provideProber,
		provideHostOrchestrator,
		provideClusterFactory,
	)
}

// provideSettings registers the environment-resolved settings.
func provideSettings(i Injector) error {
	do.Provide(i, func(Injector) (config.Settings, error) {
		return config.LoadSettings(), nil
	})

	return nil
}

// provideProber registers target detection.
func provideProber(i Injector) error {
	do.Provide(i, func(Injector) (*probe.Prober, error) {
		return probe.NewProber(), nil
	})

	return nil
}

// provideHostOrchestrator registers the host-variant orchestrator.
func provideHostOrchestrator(i Injector) error {
	do.Provide(i, func(inj Injector) (*orchestrator.HostOrchestrator, error) {
		settings, err := ResolveSettings(inj)
		if err != nil {
			return nil, err
		}

		return orchestrator.NewHostOrchestrator(settings), nil
	})

	return nil
}

// provideClusterFactory registers deferred cluster component construction.
func provideClusterFactory(i Injector) error {
	do.Provide(i, func(inj Injector) (ClusterFactory, error) {
		settings, err := ResolveSettings(inj)
		if err != nil {
			return nil, err
		}

		return func() (*orchestrator.ClusterOrchestrator, error) {
			return buildClusterOrchestrator(settings)
		}, nil
	})

	return nil
}

func buildClusterOrchestrator(
	settings config.Settings,
) (*orchestrator.ClusterOrchestrator, error) {
	clientset, err := k8s.NewClientset()
	if err != nil {
		return nil, err
	}

	helmClient, err := helm.NewClient("", "")
	if err != nil {
		return nil, err
	}

	owner, err := os.Hostname()
	if err != nil {
		owner = "unknown-host"
	}

	lock := clusterlock.New(clientset, settings.LockNamespace, owner)
	runner := deployer.NewClusterDeployer(helmClient, buildApplier(clientset))
	registrar := func(ctx context.Context) error {
		return clusterlock.EnsureJanitor(
			ctx, clientset, settings.LockNamespace, settings.InstallerImage)
	}

	return orchestrator.NewClusterOrchestrator(lock, runner, registrar), nil
}

// buildApplier constructs the dynamic-client manifest applier used when no
// chart tool is available. Construction failures leave the chart path as the
// only deployment route.
func buildApplier(clientset *kubernetes.Clientset) deployer.ManifestApplier {
	dynamicClient, err := k8s.NewDynamicClient()
	if err != nil {
		return nil
	}

	mapper := k8s.NewDiscoveryRESTMapper(clientset.Discovery())

	return k8s.NewApplier(dynamicClient, mapper)
}

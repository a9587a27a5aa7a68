package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/mattskanaut/car-cs-deployment/pkg/config"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/orchestrator"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
)

// ResolveSettings retrieves the resolved settings from the injector.
func ResolveSettings(injector Injector) (config.Settings, error) {
	settings, err := do.Invoke[config.Settings](injector)
	if err != nil {
		return config.Settings{}, fmt.Errorf("resolve settings dependency: %w", err)
	}

	return settings, nil
}

// ResolveProber retrieves the target prober from the injector.
func ResolveProber(injector Injector) (*probe.Prober, error) {
	prober, err := do.Invoke[*probe.Prober](injector)
	if err != nil {
		return nil, fmt.Errorf("resolve prober dependency: %w", err)
	}

	return prober, nil
}

// ResolveHostOrchestrator retrieves the host orchestrator from the injector.
func ResolveHostOrchestrator(injector Injector) (*orchestrator.HostOrchestrator, error) {
	host, err := do.Invoke[*orchestrator.HostOrchestrator](injector)
	if err != nil {
		return nil, fmt.Errorf("resolve host orchestrator dependency: %w", err)
	}

	return host, nil
}

// ResolveClusterFactory retrieves the deferred cluster component factory.
func ResolveClusterFactory(injector Injector) (ClusterFactory, error) {
	factory, err := do.Invoke[ClusterFactory](injector)
	if err != nil {
		return nil, fmt.Errorf("resolve cluster factory dependency: %w", err)
	}

	return factory, nil
}

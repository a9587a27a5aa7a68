// Package di wires the process-lifetime dependency container. Commands
// resolve their services from the container instead of constructing them,
// which keeps construction in one place and lets tests substitute fakes.
package di

import (
	"github.com/samber/do/v2"
	log "github.com/sirupsen/logrus"
)

// Injector is the dependency injector commands resolve from.
type Injector = do.Injector

// Runtime owns the dependency container for one process lifetime.
type Runtime struct {
	Injector Injector
}

// ProviderFunc registers one dependency into the injector.
type ProviderFunc func(Injector) error

// New builds a Runtime from the given providers. Registration failures are
// programming errors, not runtime conditions.
func New(providers ...ProviderFunc) *Runtime {
	injector := do.New()

	for _, provide := range providers {
		if err := provide(injector); err != nil {
			log.WithError(err).Fatal("dependency registration failed")
		}
	}

	return &Runtime{Injector: injector}
}

// Package cmd assembles the csdeploy command tree: the host and cluster
// installation variants plus the hidden lock janitor.
package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattskanaut/car-cs-deployment/pkg/di"
)

// NewRootCmd creates the root command with version info and subcommands.
func NewRootCmd(version, commit, date string) *cobra.Command {
	runtimeContainer := di.NewRuntime()

	cmd := &cobra.Command{
		Use:   "csdeploy",
		Short: "csdeploy installs and upgrades the containerized security sensor",
		Long: "csdeploy detects every reachable container runtime and Kubernetes " +
			"cluster on this host and installs, upgrades or repairs the security " +
			"sensor on each of them, reporting a single aggregate outcome.",
		RunE:          handleRootRunE,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			configureLogging(runtimeContainer.Injector)
		},
	}

	cmd.Version = fmt.Sprintf("%s (Built on %s from Git SHA %s)", version, date, commit)

	cmd.AddCommand(NewHostCmd(runtimeContainer))
	cmd.AddCommand(NewClusterCmd(runtimeContainer))

	return cmd
}

// handleRootRunE prints help; the root command performs no action itself.
func handleRootRunE(cmd *cobra.Command, _ []string) error {
	// The err can safely be ignored, as it can never fail at runtime.
	_ = cmd.Help()

	return nil
}

// configureLogging applies the CSDEPLOY_LOG_LEVEL setting. An unparsable
// level keeps the default rather than failing the run.
func configureLogging(injector di.Injector) {
	settings, err := di.ResolveSettings(injector)
	if err != nil {
		return
	}

	level, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		log.WithField("level", settings.LogLevel).Warn("unknown log level, keeping default")

		return
	}

	log.SetLevel(level)
}

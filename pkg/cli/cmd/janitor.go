package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mattskanaut/car-cs-deployment/pkg/di"
	"github.com/mattskanaut/car-cs-deployment/pkg/exitcode"
	"github.com/mattskanaut/car-cs-deployment/pkg/k8s"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/clusterlock"
	"github.com/mattskanaut/car-cs-deployment/pkg/utils/notify"
)

// newJanitorCmd creates the hidden lock-reclaim command. It is what the
// recurring CronJob registered by the cluster variant invokes; operators can
// also run it by hand after a crashed installation.
func newJanitorCmd(runtimeContainer *di.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:           "janitor",
		Short:         "Remove installation lock records older than the staleness threshold",
		Hidden:        true,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJanitor(cmd, runtimeContainer.Injector)
		},
	}
}

func runJanitor(cmd *cobra.Command, injector di.Injector) error {
	settings, err := di.ResolveSettings(injector)
	if err != nil {
		return exitcode.NewError(exitcode.DeployExec, err)
	}

	clientset, err := k8s.NewClientset()
	if err != nil {
		notify.Errorf(cmd.ErrOrStderr(), "cluster connection failed: %v", err)

		return exitcode.NewError(exitcode.NoRuntime, err)
	}

	reclaimed, err := clusterlock.ReclaimIfStale(
		cmd.Context(), clientset, settings.LockNamespace, clusterlock.DefaultStaleAfter)
	if err != nil {
		notify.Errorf(cmd.ErrOrStderr(), "lock reclaim failed: %v", err)

		return exitcode.NewError(exitcode.ClusterLockTimeout, err)
	}

	if reclaimed {
		notify.Successf(cmd.OutOrStdout(), "stale installation lock removed")
	} else {
		notify.Infof(cmd.OutOrStdout(), "no stale installation lock found")
	}

	return nil
}

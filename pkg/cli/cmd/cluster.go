package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattskanaut/car-cs-deployment/pkg/config"
	"github.com/mattskanaut/car-cs-deployment/pkg/di"
	"github.com/mattskanaut/car-cs-deployment/pkg/exitcode"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/manifestgen"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/orchestrator"
	"github.com/mattskanaut/car-cs-deployment/pkg/utils/notify"
)

// NewClusterCmd creates the cluster-variant command.
func NewClusterCmd(runtimeContainer *di.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   `cluster "<chart_args>" <force_reinstall> [generate]`,
		Short: "Install or upgrade the sensor chart on the current cluster",
		Long: "Deploys the sensor chart under the cluster-wide installation " +
			"lock so concurrent invocations from multiple nodes cannot race. " +
			"The generate mode emits a self-contained manifest for targets " +
			"without a chart tool instead of deploying anything.",
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCluster(cmd, runtimeContainer.Injector, args)
		},
	}

	cmd.AddCommand(newJanitorCmd(runtimeContainer))

	return cmd
}

func runCluster(cmd *cobra.Command, injector di.Injector, args []string) error {
	cfg, err := config.ParseCluster(args)
	if err != nil {
		notify.Errorf(cmd.ErrOrStderr(), "invalid invocation: %v", err)

		return exitcode.NewError(exitcode.FromError(err), err)
	}

	if cfg.Generate {
		return runGenerate(cmd, injector, cfg)
	}

	factory, err := di.ResolveClusterFactory(injector)
	if err != nil {
		return exitcode.NewError(exitcode.DeployExec, err)
	}

	cluster, err := factory()
	if err != nil {
		notify.Errorf(cmd.ErrOrStderr(), "cluster setup failed: %v", err)

		return exitcode.NewError(exitcode.FromError(err), err)
	}

	run := cluster.Run(cmd.Context(), cfg)

	orchestrator.WriteSummary(cmd.OutOrStdout(), run)

	if run.Code != exitcode.Success {
		return exitcode.NewError(run.Code, nil)
	}

	return nil
}

// runGenerate renders the manifest-apply variant to stdout. It is a pure
// transform: nothing is deployed and no lock is taken.
func runGenerate(cmd *cobra.Command, injector di.Injector, cfg config.ClusterConfig) error {
	settings, err := di.ResolveSettings(injector)
	if err != nil {
		return exitcode.NewError(exitcode.DeployExec, err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = settings.LockNamespace
	}

	manifest, err := manifestgen.Render(manifestgen.Options{
		Namespace:    namespace,
		Image:        settings.SensorImage,
		ActivationID: cfg.SetValues["sensor.activationId"],
		CustomerID:   cfg.SetValues["sensor.customerId"],
		PodURL:       cfg.SetValues["sensor.podUrl"],
	})
	if err != nil {
		notify.Errorf(cmd.ErrOrStderr(), "manifest generation failed: %v", err)

		return exitcode.NewError(exitcode.Config, err)
	}

	fmt.Fprint(cmd.OutOrStdout(), manifest)

	return nil
}

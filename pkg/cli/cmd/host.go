package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mattskanaut/car-cs-deployment/pkg/config"
	"github.com/mattskanaut/car-cs-deployment/pkg/di"
	"github.com/mattskanaut/car-cs-deployment/pkg/exitcode"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/orchestrator"
	"github.com/mattskanaut/car-cs-deployment/pkg/utils/notify"
)

// NewHostCmd creates the host-variant command. Arguments are positional so
// the remote-execution platform can map UI fields onto them directly.
func NewHostCmd(runtimeContainer *di.Runtime) *cobra.Command {
	return &cobra.Command{
		Use: "host <location> <activation_id> <customer_id> <pod_url> " +
			"<install_options> <force_reinstall>",
		Short: "Install or upgrade the sensor on every detected container runtime",
		Long: "Detects the container runtimes reachable from this host (native, " +
			"and WSL distributions on Windows), decides per runtime whether to " +
			"install, upgrade, repair or skip, and executes the decision. The " +
			"location is an archive URL or the sentinel \"dockerhub\" for a " +
			"registry pull; pod_url and install_options accept the sentinel NONE.",
		Args:          cobra.ExactArgs(6),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd, runtimeContainer.Injector, args)
		},
	}
}

func runHost(cmd *cobra.Command, injector di.Injector, args []string) error {
	cfg, err := config.ParseHost(args)
	if err != nil {
		notify.Errorf(cmd.ErrOrStderr(), "invalid invocation: %v", err)

		return exitcode.NewError(exitcode.FromError(err), err)
	}

	prober, err := di.ResolveProber(injector)
	if err != nil {
		return exitcode.NewError(exitcode.DeployExec, err)
	}

	targets, err := prober.Probe(cmd.Context())
	if err != nil {
		notify.Errorf(cmd.ErrOrStderr(), "%v", err)

		return exitcode.NewError(exitcode.FromError(err), err)
	}

	host, err := di.ResolveHostOrchestrator(injector)
	if err != nil {
		return exitcode.NewError(exitcode.DeployExec, err)
	}

	run := host.Run(cmd.Context(), targets, cfg)

	orchestrator.WriteSummary(cmd.OutOrStdout(), run)

	if run.Code != exitcode.Success {
		return exitcode.NewError(run.Code, nil)
	}

	return nil
}

// Package deployer executes install plans against individual targets:
// archive fetch-and-install, registry pull-and-run, and Kubernetes chart or
// manifest deployments, each followed by post-deploy verification.
package deployer

import "errors"

// Failure taxonomy. Each sentinel maps to a distinct exit code at the CLI
// boundary; wrap them with fmt.Errorf("...: %w", ...) so errors.Is keeps
// working through the call chain.
var (
	// ErrFetchFailed means the archive could not be downloaded within the
	// bounded retry budget.
	ErrFetchFailed = errors.New("archive fetch failed")

	// ErrExtractFailed means the fetched archive could not be unpacked.
	ErrExtractFailed = errors.New("archive extraction failed")

	// ErrInstallerFailed means the bundled installer binary exited non-zero.
	ErrInstallerFailed = errors.New("installer execution failed")

	// ErrPullFailed means the sensor image pull was rejected or interrupted.
	ErrPullFailed = errors.New("image pull failed")

	// ErrLaunchFailed means the sensor container could not be created or started.
	ErrLaunchFailed = errors.New("sensor launch failed")

	// ErrVerificationFailed means the instance never reached running state
	// within the verification window, even though the launch itself succeeded.
	ErrVerificationFailed = errors.New("post-deploy verification failed")

	// ErrChartFailed means the chart install/upgrade/uninstall was rejected.
	ErrChartFailed = errors.New("chart operation failed")

	// ErrManifestFailed means the manifest apply/delete was rejected.
	ErrManifestFailed = errors.New("manifest operation failed")
)

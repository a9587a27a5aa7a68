// Package exitcode defines the unified exit-code taxonomy shared by the host
// and cluster variants, and the mapping from errors and aggregate deployment
// outcomes onto it.
package exitcode

import (
	"errors"
	"strconv"

	"github.com/mattskanaut/car-cs-deployment/pkg/config"
	"github.com/mattskanaut/car-cs-deployment/pkg/k8s"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/clusterlock"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
)

// Code is a process exit code with a fixed meaning across variants.
type Code int

// General codes.
const (
	Success Code = 0
	// Usage covers invalid invocation and help output.
	Usage Code = 1
	// NoRuntime means no reachable runtime or missing system dependency.
	NoRuntime Code = 2
	// RuntimeComm means the runtime was found but could not be spoken to.
	RuntimeComm Code = 3
	// Network covers fetch and registry connectivity failures.
	Network Code = 4
	// DeployExec means the installer or deployment action itself failed.
	DeployExec Code = 5
	// Partial means some targets succeeded and some failed.
	Partial Code = 6
	// NoAction means every target was already current.
	NoAction Code = 7
	// Config means the invocation parsed but its values were unusable.
	Config Code = 8
)

// Host-archive-path codes (10-19).
const (
	ArchiveExtract   Code = 10
	ArchiveDownload  Code = 11
	ArchiveInstaller Code = 12
	ArchivePerms     Code = 13
	ArchiveStorage   Code = 14
)

// Host-OS codes (20-29).
const (
	OSIncompatible  Code = 20
	OSVirtLayer     Code = 21
	OSSocketConnect Code = 22
	OSMultiTarget   Code = 23
)

// Cluster codes (30-39).
const (
	ClusterCLIUnavailable   Code = 30
	ClusterChartUnavailable Code = 31
	ClusterLockTimeout      Code = 32
	ClusterNamespace        Code = 33
	ClusterManifest         Code = 34
	ClusterChart            Code = 35
)

// Int returns the code as the int os.Exit expects.
func (c Code) Int() int {
	return int(c)
}

// Error carries an explicit exit code up through the command layer. The run
// summary is already printed by the time one of these surfaces, so the
// message stays short.
type Error struct {
	Code Code
	Err  error
}

// NewError wraps err with an explicit exit code.
func NewError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "exit code " + strconv.Itoa(int(e.Code))
	}

	return e.Err.Error()
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Aggregate folds per-target outcome counts into a single run-level code.
// Skips never poison a run: a run with successes and no failures is a full
// success, and a run where nothing needed doing reports NoAction.
func Aggregate(succeeded, failed, _ int) Code {
	switch {
	case failed == 0 && succeeded > 0:
		return Success
	case failed > 0 && succeeded > 0:
		return Partial
	case failed > 0:
		return DeployExec
	default:
		return NoAction
	}
}

// FromError maps a failure sentinel to its exit code. Unknown errors fall
// back to the generic deployment-execution code.
func FromError(err error) Code {
	if err == nil {
		return Success
	}

	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	switch {
	case errors.Is(err, config.ErrArgCount):
		return Usage
	case errors.Is(err, config.ErrInvalidForce), errors.Is(err, config.ErrChartArgsEmpty):
		return Config
	case errors.Is(err, probe.ErrNoRuntime):
		return NoRuntime
	case errors.Is(err, deployer.ErrFetchFailed):
		return Network
	case errors.Is(err, deployer.ErrExtractFailed):
		return ArchiveExtract
	case errors.Is(err, deployer.ErrInstallerFailed):
		return ArchiveInstaller
	case errors.Is(err, deployer.ErrPullFailed):
		return Network
	case errors.Is(err, deployer.ErrLaunchFailed):
		return RuntimeComm
	case errors.Is(err, deployer.ErrVerificationFailed):
		return DeployExec
	case errors.Is(err, deployer.ErrChartFailed):
		return ClusterChart
	case errors.Is(err, deployer.ErrManifestFailed):
		return ClusterManifest
	case errors.Is(err, clusterlock.ErrLockTimeout):
		return ClusterLockTimeout
	case errors.Is(err, k8s.ErrClusterUnreachable):
		return NoRuntime
	default:
		return DeployExec
	}
}

// Package main is the entry point for the csdeploy installer.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/mattskanaut/car-cs-deployment/internal/buildmeta"
	"github.com/mattskanaut/car-cs-deployment/pkg/cli/cmd"
	"github.com/mattskanaut/car-cs-deployment/pkg/exitcode"
	"github.com/mattskanaut/car-cs-deployment/pkg/utils/notify"
)

func main() {
	exitCode := runSafely(os.Args[1:], runWithArgs, os.Stderr)

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

//nolint:nonamedreturns // Named return simplifies panic recovery logic.
func runSafely(args []string, runner func([]string) int, errWriter io.Writer) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			panicMessage := fmt.Sprintf("panic recovered: %v\n%s", r, debug.Stack())
			notify.WriteMessage(notify.Message{
				Type:    notify.ErrorType,
				Content: panicMessage,
				Writer:  errWriter,
			})

			exitCode = exitcode.DeployExec.Int()
		}
	}()

	exitCode = runner(args)

	return exitCode
}

func runWithArgs(args []string) int {
	rootCmd := cmd.NewRootCmd(buildmeta.Version, buildmeta.Commit, buildmeta.Date)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if err == nil {
		return exitcode.Success.Int()
	}

	// Coded errors have already reported themselves (the summary or an
	// explicit error line); anything else is an invocation problem.
	var coded *exitcode.Error
	if errors.As(err, &coded) {
		return coded.Code.Int()
	}

	notify.Errorf(rootCmd.ErrOrStderr(), "%v", err)

	return exitcode.Usage.Int()
}

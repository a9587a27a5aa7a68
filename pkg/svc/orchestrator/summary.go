package orchestrator

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattskanaut/car-cs-deployment/pkg/utils/notify"
)

const delimiterWidth = 62

// WriteSummary renders the grep-able deployment summary. It is always the
// last output before exit, for success and failure runs alike.
func WriteSummary(writer io.Writer, run Run) {
	delimiter := strings.Repeat("=", delimiterWidth)

	fmt.Fprintln(writer, delimiter)
	fmt.Fprintf(writer, "sensor deployment summary (mode: %s)\n", run.Mode)
	fmt.Fprintln(writer, delimiter)

	for _, result := range run.Results {
		fmt.Fprintf(writer, "%s %s: %s\n",
			statusSymbol(result.Status), result.Target.Name(), summaryReason(result))
	}

	fmt.Fprintln(writer, delimiter)

	succeeded, _, skipped := run.Counts()
	fmt.Fprintf(writer, "%d/%d successful (%d skipped)\n",
		succeeded, len(run.Results), skipped)
	fmt.Fprintf(writer, "exit code: %d\n", run.Code.Int())
}

func summaryReason(result Result) string {
	if result.Err != nil {
		return fmt.Sprintf("%s: %v", result.Reason, result.Err)
	}

	return result.Reason
}

func statusSymbol(status Status) string {
	switch status {
	case StatusSucceeded:
		return notify.Symbol(notify.SuccessType)
	case StatusFailed:
		return notify.Symbol(notify.ErrorType)
	case StatusSkipped:
		return notify.Symbol(notify.WarningType)
	default:
		return notify.Symbol(notify.InfoType)
	}
}

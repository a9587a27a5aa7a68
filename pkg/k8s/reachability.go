package k8s

import (
	"context"
	"fmt"

	"k8s.io/client-go/kubernetes"
)

// CheckAPIServer verifies the API server answers a discovery call. It returns
// ErrClusterUnreachable (wrapping the underlying cause) when it does not, so
// callers can distinguish "no cluster here" from other failures with errors.Is.
func CheckAPIServer(ctx context.Context, clientset kubernetes.Interface) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api server probe cancelled: %w", err)
	}

	_, err := clientset.Discovery().ServerVersion()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrClusterUnreachable, err)
	}

	return nil
}

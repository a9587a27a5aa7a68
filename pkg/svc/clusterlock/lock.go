// Package clusterlock provides the cluster-wide mutual exclusion primitive
// guarding concurrent sensor installations from multiple nodes.
//
// The lock is a uniquely-named ConfigMap: the Kubernetes API guarantees
// Create is atomic for a given name, so the creation call itself is the
// compare-and-swap. Two concurrent holders can never both succeed.
package clusterlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/mattskanaut/car-cs-deployment/pkg/utils/retrypolicy"
)

// Lock record constants. The name and namespace are fixed and well-known so
// every invocation across the cluster contends on the same record.
const (
	// LockName is the fixed name of the lock ConfigMap.
	LockName = "csdeploy-install-lock"
	// DefaultNamespace is the namespace holding the lock and the janitor job.
	DefaultNamespace = "cs-system"

	// DefaultStaleAfter bounds how long a crashed holder can starve the lock.
	DefaultStaleAfter = 15 * time.Minute

	// acquireAttempts and acquireDelay bound the acquisition loop; a losing
	// invocation gives up instead of queuing.
	acquireAttempts = 3
	acquireDelay    = 5 * time.Second
)

// ConfigMap data keys of the lock record.
const (
	keyOwner      = "owner"
	keyAcquiredAt = "acquiredAt"
	keyHolderPID  = "holderPid"
)

var errLockHeld = errors.New("lock already held")

// ErrLockTimeout reports that the acquisition budget expired while another
// holder kept the lock. Callers treat it as a skip reason, not a failure; it
// carries its own exit code for the cluster variant's error surface.
var ErrLockTimeout = errors.New("cluster lock acquisition timed out")

// Lock is a handle on the cluster-wide installation lock.
type Lock struct {
	clientset kubernetes.Interface
	namespace string
	owner     string
	pid       int
	policy    retrypolicy.Policy
	now       func() time.Time
}

// Option customizes a Lock.
type Option func(*Lock)

// WithRetryPolicy overrides the bounded acquisition retry policy (tests).
func WithRetryPolicy(policy retrypolicy.Policy) Option {
	return func(l *Lock) { l.policy = policy }
}

// New creates a lock handle owned by this host.
func New(clientset kubernetes.Interface, namespace, owner string, opts ...Option) *Lock {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	if owner == "" {
		owner, _ = os.Hostname()
	}

	lock := &Lock{
		clientset: clientset,
		namespace: namespace,
		owner:     owner,
		pid:       os.Getpid(),
		policy:    retrypolicy.Policy{Interval: acquireDelay, MaxAttempts: acquireAttempts},
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(lock)
	}

	return lock
}

// TryAcquire attempts to establish ownership of the lock. It retries a
// bounded number of times when another holder is present, then reports false
// without queuing. Any API failure also reports false: not acquiring the lock
// is a skip, never an error.
func (l *Lock) TryAcquire(ctx context.Context) bool {
	err := l.policy.Do(ctx, func() error {
		createErr := l.create(ctx)
		if createErr == nil {
			return nil
		}

		if errors.Is(createErr, errLockHeld) {
			// Another invocation holds the lock; retry within the budget.
			return createErr
		}

		return retrypolicy.Permanent(createErr)
	})
	if err != nil {
		log.WithError(err).WithField("lock", LockName).
			Info("cluster installation lock not acquired")

		return false
	}

	log.WithFields(log.Fields{"lock": LockName, "owner": l.owner}).
		Debug("cluster installation lock acquired")

	return true
}

// Release deletes the lock record. Failures are logged and swallowed: a
// leaked record is reclaimed by the janitor once it goes stale.
func (l *Lock) Release(ctx context.Context) {
	err := l.clientset.CoreV1().ConfigMaps(l.namespace).
		Delete(ctx, LockName, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		log.WithError(err).WithField("lock", LockName).
			Warn("failed to release cluster installation lock")
	}
}

// create performs the atomic create-if-absent. errLockHeld signals an
// existing record; any other error is a hard API failure.
func (l *Lock) create(ctx context.Context) error {
	record := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      LockName,
			Namespace: l.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":       "csdeploy",
				"app.kubernetes.io/component":  "install-lock",
				"app.kubernetes.io/managed-by": "csdeploy",
			},
		},
		Data: map[string]string{
			keyOwner:      l.owner,
			keyAcquiredAt: l.now().UTC().Format(time.RFC3339),
			keyHolderPID:  strconv.Itoa(l.pid),
		},
	}

	_, err := l.clientset.CoreV1().ConfigMaps(l.namespace).
		Create(ctx, record, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("%w: %v", errLockHeld, err)
		}

		return fmt.Errorf("create lock record: %w", err)
	}

	return nil
}

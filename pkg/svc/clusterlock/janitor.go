package clusterlock

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Janitor job constants.
const (
	// JanitorName is the fixed name of the recurring lock-reclaim job.
	JanitorName = "csdeploy-lock-janitor"

	// janitorSchedule runs the janitor every five minutes; combined with the
	// staleness threshold this bounds worst-case lock starvation after a
	// holder crash.
	janitorSchedule = "*/5 * * * *"
)

// ReclaimIfStale deletes the lock record when its embedded acquisition
// timestamp is older than maxAge. It returns true when a record was removed.
// A missing record or an unparsable timestamp is not an error; unparsable
// records are treated as stale so a corrupted lock cannot wedge the cluster.
func ReclaimIfStale(
	ctx context.Context,
	clientset kubernetes.Interface,
	namespace string,
	maxAge time.Duration,
) (bool, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	record, err := clientset.CoreV1().ConfigMaps(namespace).
		Get(ctx, LockName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("get lock record: %w", err)
	}

	acquiredAt, parseErr := time.Parse(time.RFC3339, record.Data[keyAcquiredAt])
	if parseErr == nil && time.Since(acquiredAt) < maxAge {
		return false, nil
	}

	deleteErr := clientset.CoreV1().ConfigMaps(namespace).
		Delete(ctx, LockName, metav1.DeleteOptions{})
	if deleteErr != nil {
		if apierrors.IsNotFound(deleteErr) {
			return false, nil
		}

		return false, fmt.Errorf("delete stale lock record: %w", deleteErr)
	}

	log.WithFields(log.Fields{
		"lock":  LockName,
		"owner": record.Data[keyOwner],
	}).Info("reclaimed stale cluster installation lock")

	return true, nil
}

// EnsureJanitor registers the recurring janitor CronJob, creating it only if
// absent. The job runs this installer's image in janitor mode and reclaims
// lock records older than the staleness threshold.
func EnsureJanitor(
	ctx context.Context,
	clientset kubernetes.Interface,
	namespace, image string,
) error {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	cronJob := janitorCronJob(namespace, image)

	_, err := clientset.BatchV1().CronJobs(namespace).
		Create(ctx, cronJob, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}

		return fmt.Errorf("create janitor cronjob: %w", err)
	}

	return nil
}

func janitorCronJob(namespace, image string) *batchv1.CronJob {
	return &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{
			Name:      JanitorName,
			Namespace: namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":       "csdeploy",
				"app.kubernetes.io/component":  "lock-janitor",
				"app.kubernetes.io/managed-by": "csdeploy",
			},
		},
		Spec: batchv1.CronJobSpec{
			Schedule:          janitorSchedule,
			ConcurrencyPolicy: batchv1.ForbidConcurrent,
			JobTemplate: batchv1.JobTemplateSpec{
				Spec: batchv1.JobSpec{
					Template: corev1.PodTemplateSpec{
						Spec: corev1.PodSpec{
							RestartPolicy: corev1.RestartPolicyNever,
							Containers: []corev1.Container{
								{
									Name:  "janitor",
									Image: image,
									Args:  []string{"cluster", "janitor"},
								},
							},
						},
					},
				},
			},
		},
	}
}

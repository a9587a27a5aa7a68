// Package manifestgen renders the self-contained Kubernetes manifest variant
// of the sensor deployment for targets without a chart tool. Rendering is a
// pure transform, fully decoupled from the installation state machine.
package manifestgen

import (
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// Options parameterize the rendered manifest.
type Options struct {
	Namespace    string
	Image        string
	ActivationID string
	CustomerID   string
	PodURL       string
}

const (
	daemonSetName      = "cs-sensor"
	serviceAccountName = "cs-sensor"
)

var manifestLabels = map[string]string{"app.kubernetes.io/name": daemonSetName}

// Render produces the multi-document manifest: namespace, service account and
// the sensor DaemonSet.
func Render(opts Options) (string, error) {
	documents := []any{
		namespaceObject(opts.Namespace),
		serviceAccountObject(opts.Namespace),
		daemonSetObject(opts),
	}

	var builder strings.Builder

	for i, document := range documents {
		encoded, err := yaml.Marshal(document)
		if err != nil {
			return "", fmt.Errorf("marshal manifest document: %w", err)
		}

		if i > 0 {
			builder.WriteString("---\n")
		}

		builder.Write(encoded)
	}

	return builder.String(), nil
}

func namespaceObject(namespace string) *corev1.Namespace {
	return &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   namespace,
			Labels: manifestLabels,
		},
	}
}

func serviceAccountObject(namespace string) *corev1.ServiceAccount {
	return &corev1.ServiceAccount{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "ServiceAccount"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      serviceAccountName,
			Namespace: namespace,
			Labels:    manifestLabels,
		},
	}
}

func daemonSetObject(opts Options) *appsv1.DaemonSet {
	privileged := true

	env := []corev1.EnvVar{
		{Name: "SENSOR_ACTIVATION_ID", Value: opts.ActivationID},
		{Name: "SENSOR_CUSTOMER_ID", Value: opts.CustomerID},
	}

	if opts.PodURL != "" {
		env = append(env, corev1.EnvVar{Name: "SENSOR_POD_URL", Value: opts.PodURL})
	}

	return &appsv1.DaemonSet{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "DaemonSet"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      daemonSetName,
			Namespace: opts.Namespace,
			Labels:    manifestLabels,
		},
		Spec: appsv1.DaemonSetSpec{
			Selector: &metav1.LabelSelector{MatchLabels: manifestLabels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: manifestLabels},
				Spec: corev1.PodSpec{
					ServiceAccountName: serviceAccountName,
					HostNetwork:        true,
					HostPID:            true,
					Tolerations: []corev1.Toleration{
						{Operator: corev1.TolerationOpExists},
					},
					Containers: []corev1.Container{
						{
							Name:  daemonSetName,
							Image: opts.Image,
							Env:   env,
							SecurityContext: &corev1.SecurityContext{
								Privileged: &privileged,
							},
						},
					},
				},
			},
		},
	}
}

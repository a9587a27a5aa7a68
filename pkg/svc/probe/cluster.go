package probe

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"

	"github.com/mattskanaut/car-cs-deployment/pkg/k8s"
)

// defaultMarkerPaths are control-plane/node marker files whose presence means
// this host is a Kubernetes cluster member.
func defaultMarkerPaths() []string {
	return []string{
		"/etc/kubernetes/kubelet.conf",
		"/etc/kubernetes/admin.conf",
		"/var/lib/kubelet/config.yaml",
	}
}

// ClusterDetector decides whether this host belongs to a Kubernetes cluster.
// Detection is three-tiered: marker files, a running kubelet process, and
// finally a live API discovery call. Any tier succeeding is enough.
type ClusterDetector struct {
	// MarkerPaths overrides the default marker file locations (tests).
	MarkerPaths []string
	// ProcRoot overrides /proc for the kubelet process scan (tests).
	ProcRoot string
	// NewClientset builds the clientset for the API probe. Nil disables the tier.
	NewClientset func() (kubernetes.Interface, error)
}

// NewClusterDetector creates a detector with production defaults.
func NewClusterDetector() *ClusterDetector {
	return &ClusterDetector{
		MarkerPaths: defaultMarkerPaths(),
		ProcRoot:    "/proc",
		NewClientset: func() (kubernetes.Interface, error) {
			return k8s.NewClientset()
		},
	}
}

// Detect reports whether this host is a reachable cluster member. It never
// returns an error: an undetectable cluster is simply absent from the target
// set.
func (d *ClusterDetector) Detect(ctx context.Context) bool {
	for _, marker := range d.MarkerPaths {
		if _, err := os.Stat(marker); err == nil {
			log.WithField("marker", marker).Debug("cluster membership marker found")

			return true
		}
	}

	if d.kubeletRunning() {
		log.Debug("kubelet process found")

		return true
	}

	if d.NewClientset == nil {
		return false
	}

	clientset, err := d.NewClientset()
	if err != nil {
		log.WithError(err).Debug("no kubernetes client configuration available")

		return false
	}

	err = k8s.CheckAPIServer(ctx, clientset)
	if err != nil {
		log.WithError(err).Debug("kubernetes api server not reachable")

		return false
	}

	return true
}

// kubeletRunning scans process command lines for a kubelet binary.
func (d *ClusterDetector) kubeletRunning() bool {
	if d.ProcRoot == "" {
		return false
	}

	entries, err := os.ReadDir(d.ProcRoot)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		if !entry.IsDir() || !isNumeric(entry.Name()) {
			continue
		}

		cmdline, err := os.ReadFile(filepath.Join(d.ProcRoot, entry.Name(), "cmdline"))
		if err != nil {
			continue
		}

		argv0 := strings.SplitN(string(cmdline), "\x00", 2)[0]
		if strings.HasSuffix(argv0, "kubelet") {
			return true
		}
	}

	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

package probe_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	dockerclient "github.com/mattskanaut/car-cs-deployment/pkg/client/docker"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
)

var errDialFailed = errors.New("dial failed")

// connectorFor returns a Connector that yields a pinging mock for reachable
// endpoints and a dial error for everything else.
func connectorFor(t *testing.T, reachable map[string]bool) probe.Connector {
	t.Helper()

	return func(host string) (dockerclient.RuntimeClient, error) {
		if !reachable[host] {
			return nil, errDialFailed
		}

		client := dockerclient.NewMockRuntimeClient()
		client.On("Ping", mock.Anything).Return(types.Ping{}, nil)
		client.On("Close").Return(nil)

		return client, nil
	}
}

// detectorOff returns a ClusterDetector that finds nothing.
func detectorOff(t *testing.T) *probe.ClusterDetector {
	t.Helper()

	return &probe.ClusterDetector{
		MarkerPaths: []string{t.TempDir() + "/missing"},
		ProcRoot:    t.TempDir(),
	}
}

// detectorOn returns a ClusterDetector that finds a marker file.
func detectorOn(t *testing.T) *probe.ClusterDetector {
	t.Helper()

	dir := t.TempDir()
	marker := dir + "/kubelet.conf"
	writeFile(t, marker)

	return &probe.ClusterDetector{
		MarkerPaths: []string{marker},
		ProcRoot:    dir,
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte{}, 0o600))
}

func TestProbe_BothEnginesReachable(t *testing.T) {
	t.Parallel()

	prober := probe.NewProber(
		probe.WithGOOS("linux"),
		probe.WithConnector(connectorFor(t, map[string]bool{
			"unix:///var/run/docker.sock":  true,
			"unix:///run/podman/podman.sock": true,
		})),
		probe.WithClusterDetector(detectorOff(t)),
	)

	targets, err := prober.Probe(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(targets))
	for _, target := range targets {
		names = append(names, target.Name())
	}

	assert.ElementsMatch(t, []string{"host/docker", "host/podman"}, names)
}

func TestProbe_UnreachableRuntimeAbsentNotError(t *testing.T) {
	t.Parallel()

	prober := probe.NewProber(
		probe.WithGOOS("linux"),
		probe.WithConnector(connectorFor(t, map[string]bool{
			"unix:///var/run/docker.sock": true,
		})),
		probe.WithClusterDetector(detectorOff(t)),
	)

	targets, err := prober.Probe(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "host/docker", targets[0].Name())
}

func TestProbe_NoTargetsIsTerminal(t *testing.T) {
	t.Parallel()

	prober := probe.NewProber(
		probe.WithGOOS("linux"),
		probe.WithConnector(connectorFor(t, nil)),
		probe.WithClusterDetector(detectorOff(t)),
	)

	_, err := prober.Probe(context.Background())
	require.ErrorIs(t, err, probe.ErrNoRuntime)
}

func TestProbe_ClusterMarkerAddsClusterTarget(t *testing.T) {
	t.Parallel()

	prober := probe.NewProber(
		probe.WithGOOS("linux"),
		probe.WithConnector(connectorFor(t, nil)),
		probe.WithClusterDetector(detectorOn(t)),
	)

	targets, err := prober.Probe(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.True(t, targets[0].IsCluster())
	assert.Equal(t, probe.RuntimeHelm, targets[0].Runtime)
}

func TestProbe_WindowsEnumeratesWSLDistros(t *testing.T) {
	t.Parallel()

	commander := probe.NewMockCommander()
	commander.On("Output", mock.Anything, "wsl.exe", "-l", "--running", "-q").
		Return([]byte("Ubuntu\nDebian\n"), nil)

	prober := probe.NewProber(
		probe.WithGOOS("windows"),
		probe.WithCommander(commander),
		probe.WithConnector(connectorFor(t, map[string]bool{
			"npipe:////./pipe/docker_engine": true,
		})),
		probe.WithClusterDetector(detectorOff(t)),
	)

	targets, err := prober.Probe(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(targets))
	for _, target := range targets {
		names = append(names, target.Name())
	}

	assert.ElementsMatch(
		t,
		[]string{"host/docker", "wsl:Ubuntu/docker", "wsl:Debian/docker"},
		names,
	)
}

func TestProbe_WSLEnumerationFailureSkipsWSLTargets(t *testing.T) {
	t.Parallel()

	commander := probe.NewMockCommander()
	commander.On("Output", mock.Anything, "wsl.exe", "-l", "--running", "-q").
		Return(nil, errDialFailed)

	prober := probe.NewProber(
		probe.WithGOOS("windows"),
		probe.WithCommander(commander),
		probe.WithConnector(connectorFor(t, map[string]bool{
			"npipe:////./pipe/docker_engine": true,
		})),
		probe.WithClusterDetector(detectorOff(t)),
	)

	targets, err := prober.Probe(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "host/docker", targets[0].Name())
}

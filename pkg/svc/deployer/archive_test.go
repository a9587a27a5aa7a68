package deployer_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
)

// stubFetcher serves fixed payloads keyed by location.
type stubFetcher struct {
	payload []byte
	err     error
}

func (s *stubFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	return s.payload, s.err
}

// recordingRunner captures the installer invocation.
type recordingRunner struct {
	name   string
	args   []string
	output []byte
	err    error
}

func (r *recordingRunner) Run(
	_ context.Context, _ string, name string, args ...string,
) ([]byte, error) {
	r.name = name
	r.args = args

	return r.output, r.err
}

// tarGz builds a gzipped tarball from name->content pairs.
func tarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	for name, content := range entries {
		err := tarWriter.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(content)),
		})
		require.NoError(t, err)

		_, err = tarWriter.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzipWriter.Close())

	return buf.Bytes()
}

func TestArchiveInstall_RunsBundledInstaller(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: tarGz(t, map[string]string{
		"sensor/install.sh": "#!/bin/sh\n",
		"sensor/payload.bin": "binary",
	})}
	runner := &recordingRunner{}
	installer := deployer.NewArchiveInstaller(fetcher, runner)

	err := installer.Install(context.Background(), deployer.ArchiveSpec{
		Location:     "https://downloads.example.com/sensor.tar.gz",
		ActivationID: "act-1",
		CustomerID:   "cust-1",
		Runtime:      probe.RuntimeDocker,
		ExtraOptions: []string{"--proxy", "http://proxy:3128"},
	})
	require.NoError(t, err)

	assert.Contains(t, runner.name, "install.sh")
	assert.Equal(t, []string{
		"--activation-id", "act-1",
		"--customer-id", "cust-1",
		"--storage-driver", "overlay2",
		"--proxy", "http://proxy:3128",
	}, runner.args)
}

func TestArchiveInstall_PodmanStorageDriver(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: tarGz(t, map[string]string{"install.sh": "#!/bin/sh\n"})}
	runner := &recordingRunner{}
	installer := deployer.NewArchiveInstaller(fetcher, runner)

	err := installer.Install(context.Background(), deployer.ArchiveSpec{
		Location:     "https://downloads.example.com/sensor.tar.gz",
		ActivationID: "act-1",
		CustomerID:   "cust-1",
		Runtime:      probe.RuntimePodman,
	})
	require.NoError(t, err)

	assert.Contains(t, runner.args, "vfs")
	assert.NotContains(t, runner.args, "overlay2")
}

func TestArchiveInstall_FetchFailureSurfaced(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{err: deployer.ErrFetchFailed}
	installer := deployer.NewArchiveInstaller(fetcher, &recordingRunner{})

	err := installer.Install(context.Background(), deployer.ArchiveSpec{
		Location: "https://downloads.example.com/sensor.tar.gz",
	})
	require.ErrorIs(t, err, deployer.ErrFetchFailed)
}

func TestArchiveInstall_MissingInstaller(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: tarGz(t, map[string]string{"readme.txt": "no installer"})}
	installer := deployer.NewArchiveInstaller(fetcher, &recordingRunner{})

	err := installer.Install(context.Background(), deployer.ArchiveSpec{
		Location: "https://downloads.example.com/sensor.tar.gz",
	})
	require.ErrorIs(t, err, deployer.ErrExtractFailed)
	require.ErrorIs(t, err, deployer.ErrInstallerMissing)
}

func TestArchiveInstall_TraversalEntryRejected(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: tarGz(t, map[string]string{
		"../outside.sh": "#!/bin/sh\n",
	})}
	installer := deployer.NewArchiveInstaller(fetcher, &recordingRunner{})

	err := installer.Install(context.Background(), deployer.ArchiveSpec{
		Location: "https://downloads.example.com/sensor.tar.gz",
	})
	require.ErrorIs(t, err, deployer.ErrExtractFailed)
}

func TestArchiveInstall_CorruptArchive(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: []byte("not a gzip stream")}
	installer := deployer.NewArchiveInstaller(fetcher, &recordingRunner{})

	err := installer.Install(context.Background(), deployer.ArchiveSpec{
		Location: "https://downloads.example.com/sensor.tar.gz",
	})
	require.ErrorIs(t, err, deployer.ErrExtractFailed)
}

func TestArchiveInstall_InstallerExitFailure(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{payload: tarGz(t, map[string]string{"install.sh": "#!/bin/sh\n"})}
	runner := &recordingRunner{output: []byte("disk full"), err: assert.AnError}
	installer := deployer.NewArchiveInstaller(fetcher, runner)

	err := installer.Install(context.Background(), deployer.ArchiveSpec{
		Location: "https://downloads.example.com/sensor.tar.gz",
	})
	require.ErrorIs(t, err, deployer.ErrInstallerFailed)
	assert.Contains(t, err.Error(), "disk full")
}

package deployer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mattskanaut/car-cs-deployment/pkg/svc/probe"
)

const (
	installerScriptName = "install.sh"
	maxDecompressedSize = 1 << 30 // 1 GiB cap on extracted archive content
)

// ErrInstallerMissing means the extracted archive carried no installer script.
var ErrInstallerMissing = errors.New("installer script not found in archive")

// Runner executes a local command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run executes the command in dir and returns combined stdout/stderr.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("run %s: %w", name, err)
	}

	return output, nil
}

// ArchiveSpec describes one archive-sourced installation.
type ArchiveSpec struct {
	Location     string
	ActivationID string
	CustomerID   string
	Runtime      probe.RuntimeKind
	// ExtraOptions are caller-supplied installer arguments, passed verbatim.
	ExtraOptions []string
}

// ArchiveInstaller fetches a sensor archive, extracts it into a fresh
// per-target working directory, and runs the bundled installer.
type ArchiveInstaller struct {
	fetcher Fetcher
	runner  Runner
}

// NewArchiveInstaller creates an ArchiveInstaller.
func NewArchiveInstaller(fetcher Fetcher, runner Runner) *ArchiveInstaller {
	return &ArchiveInstaller{fetcher: fetcher, runner: runner}
}

// Install runs the full archive path: fetch, extract, execute installer.
func (a *ArchiveInstaller) Install(ctx context.Context, spec ArchiveSpec) error {
	payload, err := a.fetcher.Fetch(ctx, spec.Location)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "csdeploy-archive-*")
	if err != nil {
		return fmt.Errorf("%w: create working directory: %w", ErrExtractFailed, err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	if err := extractTarGz(payload, workDir); err != nil {
		return fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	installerPath, err := findInstaller(workDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	args := installerArgs(spec)

	log.WithFields(log.Fields{
		"installer": installerPath,
		"runtime":   spec.Runtime,
	}).Debug("running bundled installer")

	output, err := a.runner.Run(ctx, filepath.Dir(installerPath), installerPath, args...)
	if err != nil {
		return fmt.Errorf("%w: %w: %s", ErrInstallerFailed, err, strings.TrimSpace(string(output)))
	}

	return nil
}

// installerArgs builds the installer invocation from the spec. The storage
// driver follows the runtime's convention.
func installerArgs(spec ArchiveSpec) []string {
	storageDriver := "overlay2"
	if spec.Runtime == probe.RuntimePodman {
		storageDriver = "vfs"
	}

	args := []string{
		"--activation-id", spec.ActivationID,
		"--customer-id", spec.CustomerID,
		"--storage-driver", storageDriver,
	}

	return append(args, spec.ExtraOptions...)
}

// extractTarGz unpacks a gzipped tarball into destDir, rejecting entries that
// would escape it.
func extractTarGz(payload []byte, destDir string) error {
	gzipReader, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() { _ = gzipReader.Close() }()

	tarReader := tar.NewReader(gzipReader)

	var extracted int64

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		targetPath, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o750); err != nil {
				return fmt.Errorf("create directory %q: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(tarReader, targetPath, header, &extracted); err != nil {
				return err
			}
		default:
			// Symlinks and devices have no place in a sensor archive.
			log.WithField("entry", header.Name).Debug("skipping non-regular tar entry")
		}
	}
}

func writeEntry(reader io.Reader, targetPath string, header *tar.Header, extracted *int64) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o750); err != nil {
		return fmt.Errorf("create parent of %q: %w", header.Name, err)
	}

	mode := fs.FileMode(header.Mode).Perm() //nolint:gosec // tar modes fit in FileMode

	file, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %q: %w", header.Name, err)
	}

	written, err := io.Copy(file, io.LimitReader(reader, maxDecompressedSize-*extracted))
	closeErr := file.Close()

	if err != nil {
		return fmt.Errorf("write %q: %w", header.Name, err)
	}

	if closeErr != nil {
		return fmt.Errorf("close %q: %w", header.Name, closeErr)
	}

	*extracted += written
	if *extracted >= maxDecompressedSize {
		return fmt.Errorf("archive exceeds %d byte extraction cap", int64(maxDecompressedSize))
	}

	return nil
}

// safeJoin joins name under destDir and rejects traversal outside it.
func safeJoin(destDir, name string) (string, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("tar entry %q escapes extraction directory", name)
	}

	return filepath.Join(destDir, cleaned), nil
}

// findInstaller locates the bundled installer script within the extracted
// tree. Archives place it either at the root or one directory down.
func findInstaller(workDir string) (string, error) {
	var installerPath string

	err := filepath.WalkDir(workDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !entry.IsDir() && entry.Name() == installerScriptName {
			installerPath = path

			return fs.SkipAll
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan extracted archive: %w", err)
	}

	if installerPath == "" {
		return "", ErrInstallerMissing
	}

	return installerPath, nil
}

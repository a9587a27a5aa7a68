package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Commander runs an external command and returns its combined stdout. The
// WSL enumeration is the single place the installer shells out, so it is kept
// behind this narrow interface and mocked in tests.
type Commander interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommander is the real Commander backed by os/exec.
type ExecCommander struct{}

// Output runs the command and returns its stdout.
func (ExecCommander) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	return out, nil
}

// ListRunningDistros enumerates the running WSL distributions via
// `wsl.exe -l --running -q`. wsl.exe emits UTF-16LE, so the output is decoded
// before splitting into distribution names.
func ListRunningDistros(ctx context.Context, commander Commander) ([]string, error) {
	out, err := commander.Output(ctx, "wsl.exe", "-l", "--running", "-q")
	if err != nil {
		return nil, fmt.Errorf("enumerate wsl distributions: %w", err)
	}

	decoded, err := decodeUTF16(out)
	if err != nil {
		return nil, fmt.Errorf("decode wsl output: %w", err)
	}

	var distros []string

	for _, line := range strings.Split(decoded, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}

		distros = append(distros, name)
	}

	return distros, nil
}

// decodeUTF16 converts UTF-16 little-endian bytes (optionally BOM-prefixed)
// to a UTF-8 string. Plain ASCII input passes through unchanged so tests and
// non-Windows shims keep working.
func decodeUTF16(raw []byte) (string, error) {
	if !looksUTF16(raw) {
		return string(raw), nil
	}

	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()

	decoded, err := decoder.Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("utf-16 decode: %w", err)
	}

	return string(decoded), nil
}

// looksUTF16 reports whether the byte stream looks UTF-16 encoded: either a
// BOM or NUL bytes interleaved in the first characters.
func looksUTF16(raw []byte) bool {
	if len(raw) >= 2 && ((raw[0] == 0xFF && raw[1] == 0xFE) || (raw[0] == 0xFE && raw[1] == 0xFF)) {
		return true
	}

	limit := min(len(raw), 16)
	for i := 0; i < limit; i++ {
		if raw[i] == 0x00 {
			return true
		}
	}

	return false
}

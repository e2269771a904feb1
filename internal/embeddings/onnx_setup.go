//go:build cgo

package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// DefaultONNXRuntimeVersion matches the onnxruntime_go release pulled in by fastembed-go.
const DefaultONNXRuntimeVersion = "1.23.0"

const onnxReleaseURL = "https://github.com/microsoft/onnxruntime/releases/download/v%[1]s/onnxruntime-%[2]s-%[1]s.tgz"

// ErrUnsupportedPlatform indicates the current OS/arch has no prebuilt runtime.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

type onnxPlatform struct {
	archive string
	library string
}

var onnxPlatforms = map[string]onnxPlatform{
	"linux/amd64":  {"linux-x64", "libonnxruntime.so"},
	"linux/arm64":  {"linux-aarch64", "libonnxruntime.so"},
	"darwin/amd64": {"osx-x86_64", "libonnxruntime.dylib"},
	"darwin/arm64": {"osx-arm64", "libonnxruntime.dylib"},
}

func lookupPlatform(goos, goarch string) (onnxPlatform, error) {
	p, ok := onnxPlatforms[goos+"/"+goarch]
	if !ok {
		return onnxPlatform{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	return p, nil
}

// ONNXInstallDir is the managed runtime location, ~/.config/vecli/lib.
func ONNXInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "vecli", "lib")
}

// GetONNXLibraryPath returns ONNX_PATH if set, else the managed library if
// it exists, else "".
func GetONNXLibraryPath() string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	plat, err := lookupPlatform(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return ""
	}
	managed := filepath.Join(ONNXInstallDir(), plat.library)
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// DownloadONNXRuntime installs the runtime for this platform into destDir.
// Empty version means DefaultONNXRuntimeVersion; empty destDir means ONNXInstallDir.
func DownloadONNXRuntime(ctx context.Context, version, destDir string) (string, error) {
	if version == "" {
		version = DefaultONNXRuntimeVersion
	}
	if destDir == "" {
		destDir = ONNXInstallDir()
	}
	plat, err := lookupPlatform(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(onnxReleaseURL, version, plat.archive), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading ONNX runtime: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", plat.archive, version)
	if err := unpackLibs(resp.Body, prefix, destDir, plat.library); err != nil {
		return "", fmt.Errorf("extracting archive: %w", err)
	}
	return filepath.Join(destDir, plat.library), nil
}

// unpackLibs copies regular files and symlinks under prefix into destDir and
// fails if none of them is the runtime library.
func unpackLibs(r io.Reader, prefix, destDir, library string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	found := false
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		base := filepath.Base(name)
		dest := filepath.Join(destDir, base)

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			_ = os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				continue
			}
		case tar.TypeReg:
			if err := writeFile(dest, tr); err != nil {
				return err
			}
		default:
			continue
		}
		if base == library || strings.HasPrefix(base, library+".") {
			found = true
		}
	}

	if !found {
		return fmt.Errorf("library %s not found in archive", library)
	}
	return nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing file %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// EnsureONNXRuntime returns the runtime library path, downloading the
// default version into the managed directory when none is installed.
func EnsureONNXRuntime(ctx context.Context, logger *zap.Logger) (string, error) {
	if path := GetONNXLibraryPath(); path != "" {
		return path, nil
	}

	logger.Info("ONNX runtime not found, downloading",
		zap.String("version", DefaultONNXRuntimeVersion),
		zap.String("platform", runtime.GOOS+"/"+runtime.GOARCH))

	path, err := DownloadONNXRuntime(ctx, "", "")
	if err != nil {
		return "", fmt.Errorf("failed to download ONNX runtime: %w (run 'vecli init' or set ONNX_PATH)", err)
	}
	if err := os.Setenv("ONNX_PATH", path); err != nil {
		return "", fmt.Errorf("set ONNX_PATH: %w", err)
	}
	return path, nil
}

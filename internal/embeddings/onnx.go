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
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// ONNXRuntimeVersion matches the onnxruntime_go version pulled in by fastembed-go.
const ONNXRuntimeVersion = "1.23.0"

const onnxReleaseBase = "https://github.com/microsoft/onnxruntime/releases/download"

// ErrUnsupportedPlatform indicates no ONNX runtime build exists for GOOS/GOARCH.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

var onnxArchives = map[string]string{
	"linux/amd64":  "linux-x64",
	"linux/arm64":  "linux-aarch64",
	"darwin/amd64": "osx-x86_64",
	"darwin/arm64": "osx-arm64",
}

func onnxLibraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// RuntimeInstaller downloads the ONNX runtime shared library that the
// FastEmbed provider loads.
type RuntimeInstaller struct {
	// Dir receives the library files. Default: ~/.config/repoindexer/lib
	Dir string
	// Version defaults to ONNXRuntimeVersion.
	Version string
	// BaseURL is the release download root.
	BaseURL string
	// Client defaults to http.DefaultClient.
	Client *http.Client

	goos, goarch string
}

// NewRuntimeInstaller returns an installer for the running platform.
func NewRuntimeInstaller() *RuntimeInstaller {
	return &RuntimeInstaller{
		Dir:     defaultONNXDir(),
		Version: ONNXRuntimeVersion,
		BaseURL: onnxReleaseBase,
		Client:  http.DefaultClient,
		goos:    runtime.GOOS,
		goarch:  runtime.GOARCH,
	}
}

func defaultONNXDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "repoindexer", "lib")
}

// LibraryPath returns the runtime library location. ONNX_PATH wins over the
// managed install. Empty means the runtime is not installed.
func (r *RuntimeInstaller) LibraryPath() string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	p := filepath.Join(r.Dir, onnxLibraryName(r.goos))
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

func (r *RuntimeInstaller) archive() (string, error) {
	a, ok := onnxArchives[r.goos+"/"+r.goarch]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, r.goos, r.goarch)
	}
	return a, nil
}

func (r *RuntimeInstaller) downloadURL(platform string) string {
	return fmt.Sprintf("%s/v%s/onnxruntime-%s-%s.tgz", strings.TrimSuffix(r.BaseURL, "/"), r.Version, platform, r.Version)
}

// Install downloads and unpacks the runtime unless it is already present
// (or force is set). It returns the library path.
func (r *RuntimeInstaller) Install(ctx context.Context, force bool) (string, error) {
	if !force {
		if p := r.LibraryPath(); p != "" {
			return p, nil
		}
	}
	platform, err := r.archive()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.Dir, 0o700); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.downloadURL(platform), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading ONNX runtime: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading ONNX runtime: status %d", resp.StatusCode)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, r.Version)
	lib, err := unpackLibraries(resp.Body, r.Dir, prefix, onnxLibraryName(r.goos))
	if err != nil {
		return "", fmt.Errorf("extracting archive: %w", err)
	}
	return lib, nil
}

// unpackLibraries copies regular files and symlinks under prefix into dir,
// flattening paths. It fails when libName (or a versioned variant) is absent.
func unpackLibraries(r io.Reader, dir, prefix, libName string) (string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	found := false
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		if !strings.HasPrefix(name, prefix) || hdr.Typeflag == tar.TypeDir {
			continue
		}
		base := path.Base(name)
		dest := filepath.Join(dir, base)

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			_ = os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				continue
			}
		case tar.TypeReg:
			if err := writeFile(dest, tr); err != nil {
				return "", err
			}
		default:
			continue
		}
		if base == libName || strings.HasPrefix(base, libName+".") {
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("library %s not found in archive", libName)
	}
	return filepath.Join(dir, libName), nil
}

func writeFile(dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(dest), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(dest), err)
	}
	return f.Close()
}

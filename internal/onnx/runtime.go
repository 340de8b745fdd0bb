package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// LibraryEnvVar overrides the ONNX Runtime shared library location.
const LibraryEnvVar = "ONNXRUNTIME_LIB"

var (
	runtimeMu   sync.Mutex
	runtimeErr  error
	runtimeDone bool
)

// InitRuntime locates the shared library and initializes the ONNX Runtime
// environment. The outcome of the first call is cached for the lifetime of the
// process, so every model loader can call it unconditionally.
func InitRuntime(libPath string, useGPU bool) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeDone {
		return runtimeErr
	}
	runtimeDone = true

	if onnxrt.IsInitialized() {
		return nil
	}

	path, err := ResolveLibraryPath(libPath, useGPU)
	if err != nil {
		runtimeErr = fmt.Errorf("onnx lib path: %w", err)
		return runtimeErr
	}
	onnxrt.SetSharedLibraryPath(path)

	if err := onnxrt.InitializeEnvironment(); err != nil {
		runtimeErr = fmt.Errorf("init onnx: %w", err)
		return runtimeErr
	}
	slog.Debug("ONNX Runtime initialized", "library", path, "gpu", useGPU)
	return nil
}

// ShutdownRuntime tears the environment down. Only call it once no session is
// in use anymore (process exit).
func ShutdownRuntime() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if onnxrt.IsInitialized() {
		if err := onnxrt.DestroyEnvironment(); err != nil {
			slog.Warn("Failed to destroy ONNX Runtime environment", "error", err)
		}
	}
	runtimeDone = false
	runtimeErr = nil
}

// ResolveLibraryPath returns the first existing shared library among the
// explicit path, $ONNXRUNTIME_LIB, well known system locations and the
// project-local onnxruntime/ directory.
func ResolveLibraryPath(explicit string, useGPU bool) (string, error) {
	var candidates []string
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if env := os.Getenv(LibraryEnvVar); env != "" {
		candidates = append(candidates, env)
	}
	candidates = append(candidates, systemLibraryPaths(useGPU)...)

	libName, err := libraryName()
	if err != nil {
		return "", err
	}
	if root, err := findProjectRoot(); err == nil {
		if useGPU {
			candidates = append(candidates, filepath.Join(root, "onnxruntime", "gpu", "lib", libName))
		}
		candidates = append(candidates, filepath.Join(root, "onnxruntime", "lib", libName))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ONNX Runtime library %s not found (set %s)", libName, LibraryEnvVar)
}

func systemLibraryPaths(useGPU bool) []string {
	if useGPU {
		return []string{
			"/opt/onnxruntime/gpu/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
		}
	}
	return []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
}

func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

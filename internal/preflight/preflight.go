package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"webar/internal/config"
	"webar/internal/deps"
)

// minFreeBytes is the free space below which the data directory check fails.
const minFreeBytes = 256 * 1024 * 1024

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// RunAll executes all applicable preflight checks for the given config.
// The converter is reported but never fails the run; a missing tool only
// disables USDZ generation.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDiskSpace("Data volume", cfg.Paths.DataDir, minFreeBytes),
	}
	if cfg.Backend.Kind == config.BackendEcho3D && !cfg.Backend.TestMode {
		results = append(results, CheckEcho3D(ctx, cfg.Backend.Echo3DAPIURL))
	}
	return results
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the daemon and the CLI status command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil || !cfg.Converter.Enabled {
		return nil
	}
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "Blender",
			Command:     cfg.Converter.Command,
			Description: "Converts GLB uploads into USDZ for iOS Quick Look",
			Optional:    true,
		},
	})
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeBytes reports the space available to unprivileged users on the volume holding path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckDiskSpace fails when the volume holding path has less than minFree bytes available.
func CheckDiskSpace(name, path string, minFree uint64) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", path, err)}
	}
	detail := humanize.IBytes(free) + " free"
	if free < minFree {
		return Result{Name: name, Detail: detail + " (below " + humanize.IBytes(minFree) + ")"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckEcho3D verifies that the echo3D API host answers HTTP requests.
func CheckEcho3D(ctx context.Context, apiURL string) Result {
	const name = "echo3D"
	if apiURL == "" {
		return Result{Name: name, Detail: "missing api url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, apiURL, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

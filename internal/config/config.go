package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Backend kinds accepted by [backend].kind.
const (
	BackendLocal  = "local"
	BackendEcho3D = "echo3d"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Server contains settings for the public HTTP surface.
type Server struct {
	BaseURL                string   `toml:"base_url"`
	MaxUploadBytes         int64    `toml:"max_upload_bytes"`
	AllowedExtensions      []string `toml:"allowed_extensions"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds"`
	// Requests allowed per client IP within the window; 0 disables limiting.
	RateLimitRequests      int `toml:"rate_limit_requests"`
	RateLimitWindowSeconds int `toml:"rate_limit_window_seconds"`
}

// Storage contains configuration for the blob store.
type Storage struct {
	// Codec compresses blob payloads at rest: none, zstd, or lz4.
	Codec string `toml:"codec"`
}

// Converter contains configuration for the GLB to USDZ conversion tool.
type Converter struct {
	Enabled        bool   `toml:"enabled"`
	Command        string `toml:"command"`
	Script         string `toml:"script"` // optional override for the bundled export script
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workers sizes the background conversion pool.
type Workers struct {
	Count int `toml:"count"`
}

// Backend selects the external asset backend binding.
type Backend struct {
	Kind                 string `toml:"kind"`
	Echo3DAPIURL         string `toml:"echo3d_api_url"`
	Echo3DAPIKey         string `toml:"echo3d_api_key"`
	Echo3DSecurityKey    string `toml:"echo3d_security_key"`
	Echo3DTimeoutSeconds int    `toml:"echo3d_timeout_seconds"`
	TestMode             bool   `toml:"test_mode"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for webar.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Server: public base URL and upload limits
//   - Storage: blob codec
//   - Converter: external conversion tool
//   - Workers: background conversion pool size
//   - Backend: external asset backend binding
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Server    Server    `toml:"server"`
	Storage   Storage   `toml:"storage"`
	Converter Converter `toml:"converter"`
	Workers   Workers   `toml:"workers"`
	Backend   Backend   `toml:"backend"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/webar/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("webar.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.BlobDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// BlobDir is the root of the blob store.
func (c *Config) BlobDir() string {
	return filepath.Join(c.Paths.DataDir, "blobs")
}

// RegistryPath is the SQLite database holding asset records.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Paths.DataDir, "assets.db")
}

// LockPath is the single-instance lock file used by the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "webar.lock")
}

// AddressPath holds the API address of the running daemon for CLI discovery.
func (c *Config) AddressPath() string {
	return filepath.Join(c.Paths.DataDir, "webar.addr")
}

// ConverterTimeout returns the hard upper bound for one conversion attempt.
func (c *Config) ConverterTimeout() time.Duration {
	return time.Duration(c.Converter.TimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds how long the API waits for in-flight requests on stop.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// RateLimitWindow returns the per-IP rate limit window.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.Server.RateLimitWindowSeconds) * time.Second
}

// ViewURL builds the public viewer address for a slug.
func (c *Config) ViewURL(slug string) string {
	return c.Server.BaseURL + "/p/" + slug
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

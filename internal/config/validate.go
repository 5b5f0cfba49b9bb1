package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateConverter(); err != nil {
		return err
	}
	if c.Workers.Count < 1 {
		return errors.New("workers.count must be at least 1")
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	parsed, err := url.Parse(c.Server.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("server.base_url must be an absolute URL, got %q", c.Server.BaseURL)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	if c.Server.RateLimitRequests < 0 {
		return errors.New("server.rate_limit_requests must be zero (disabled) or positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Codec {
	case "none", "zstd", "lz4":
		return nil
	default:
		return fmt.Errorf("storage.codec: unsupported value %q (want none, zstd, or lz4)", c.Storage.Codec)
	}
}

func (c *Config) validateConverter() error {
	if !c.Converter.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Converter.Command) == "" {
		return errors.New("converter.command must be set when converter.enabled is true")
	}
	if c.Converter.TimeoutSeconds <= 0 {
		return errors.New("converter.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend.Kind {
	case BackendLocal:
		return nil
	case BackendEcho3D:
		if c.Backend.TestMode {
			return nil
		}
		if c.Backend.Echo3DAPIKey == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/webar/config.toml"
			}
			return fmt.Errorf("backend.echo3d_api_key is required for the echo3d backend. Set ECHO3D_API_KEY env var or edit %s (create with 'webar config init')", defaultPath)
		}
		if c.Backend.Echo3DSecurityKey == "" {
			return errors.New("backend.echo3d_security_key is required for the echo3d backend")
		}
		return nil
	default:
		return fmt.Errorf("backend.kind: unsupported value %q (want %s or %s)", c.Backend.Kind, BackendLocal, BackendEcho3D)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

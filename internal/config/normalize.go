package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeStorage()
	c.normalizeConverter()
	if c.Workers.Count <= 0 {
		c.Workers.Count = defaultWorkerCount
	}
	c.normalizeBackend()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("WEBAR_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaultBaseURL
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = defaultShutdownTimeoutSec
	}
	if c.Server.RateLimitWindowSeconds <= 0 {
		c.Server.RateLimitWindowSeconds = defaultRateLimitWindowSec
	}
	exts := make([]string, 0, len(c.Server.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Server.AllowedExtensions))
	for _, ext := range c.Server.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultAllowedExtensions...)
	}
	c.Server.AllowedExtensions = exts
}

func (c *Config) normalizeStorage() {
	c.Storage.Codec = strings.ToLower(strings.TrimSpace(c.Storage.Codec))
	if c.Storage.Codec == "" {
		c.Storage.Codec = defaultStorageCodec
	}
}

func (c *Config) normalizeConverter() {
	if value, ok := os.LookupEnv("BLENDER_BIN"); ok && strings.TrimSpace(value) != "" {
		c.Converter.Command = strings.TrimSpace(value)
	}
	c.Converter.Command = strings.TrimSpace(c.Converter.Command)
	if c.Converter.Command == "" {
		c.Converter.Command = defaultConverterCommand
	}
	c.Converter.Script = strings.TrimSpace(c.Converter.Script)
	if c.Converter.Script != "" {
		if expanded, err := expandPath(c.Converter.Script); err == nil {
			c.Converter.Script = expanded
		}
	}
	if c.Converter.TimeoutSeconds <= 0 {
		c.Converter.TimeoutSeconds = defaultConverterTimeout
	}
}

func (c *Config) normalizeBackend() {
	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	if c.Backend.Kind == "" {
		c.Backend.Kind = defaultBackendKind
	}
	c.Backend.Echo3DAPIURL = strings.TrimRight(strings.TrimSpace(c.Backend.Echo3DAPIURL), "/")
	if c.Backend.Echo3DAPIURL == "" {
		c.Backend.Echo3DAPIURL = defaultEcho3DAPIURL
	}
	c.Backend.Echo3DAPIKey = strings.TrimSpace(c.Backend.Echo3DAPIKey)
	if c.Backend.Echo3DAPIKey == "" {
		if value, ok := os.LookupEnv("ECHO3D_API_KEY"); ok {
			c.Backend.Echo3DAPIKey = strings.TrimSpace(value)
		}
	}
	c.Backend.Echo3DSecurityKey = strings.TrimSpace(c.Backend.Echo3DSecurityKey)
	if c.Backend.Echo3DSecurityKey == "" {
		if value, ok := os.LookupEnv("ECHO3D_SECURITY_KEY"); ok {
			c.Backend.Echo3DSecurityKey = strings.TrimSpace(value)
		}
	}
	if c.Backend.Echo3DTimeoutSeconds <= 0 {
		c.Backend.Echo3DTimeoutSeconds = defaultEcho3DTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"webar/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Server.BaseURL = "http://viewer.test"
	cfgVal.Converter.TimeoutSeconds = 5
	cfgVal.Workers.Count = 1
	cfgVal.Server.RateLimitRequests = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken requires bearer auth on admin routes.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithCodec sets the blob store codec.
func WithCodec(codec string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Codec = codec
	}
}

// WithConverterDisabled turns off derived-variant conversion.
func WithConverterDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Converter.Enabled = false
	}
}

// WithConverterCommand points the converter at a specific executable.
func WithConverterCommand(command string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Converter.Command = command
	}
}

// WithEcho3DTestMode selects the echo3D backend without network calls.
func WithEcho3DTestMode() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.Kind = config.BackendEcho3D
		b.cfg.Backend.TestMode = true
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the converter command is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Converter.Command}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

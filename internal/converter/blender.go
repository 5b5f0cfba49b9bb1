package converter

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"webar/internal/config"
)

//go:embed glb_to_usdz.py
var exportScript []byte

const diagnosticsLimit = 2048

// Executor abstracts command execution for testability. Run returns the
// combined stdout and stderr of the process.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the Blender converter.
type Option func(*Blender)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(b *Blender) {
		if exec != nil {
			b.exec = exec
		}
	}
}

// WithScript replaces the bundled export script with a file on disk.
func WithScript(path string) Option {
	return func(b *Blender) {
		b.scriptPath = strings.TrimSpace(path)
	}
}

// WithTempDir sets where per-conversion work directories are created.
func WithTempDir(dir string) Option {
	return func(b *Blender) {
		b.tempDir = dir
	}
}

// WithLookPath overrides executable resolution (primarily for tests).
func WithLookPath(fn func(string) (string, error)) Option {
	return func(b *Blender) {
		if fn != nil {
			b.lookPath = fn
		}
	}
}

// Blender converts GLB to USDZ with a headless Blender process.
type Blender struct {
	binary     string
	scriptPath string
	tempDir    string
	exec       Executor
	lookPath   func(string) (string, error)
}

// NewBlender constructs a Blender converter for the given executable.
func NewBlender(binary string, opts ...Option) (*Blender, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("blender binary required")
	}
	b := &Blender{
		binary:   binary,
		exec:     commandExecutor{},
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// New returns the converter selected by configuration.
func New(cfg *config.Config) (Converter, error) {
	if cfg == nil || !cfg.Converter.Enabled {
		return Disabled{}, nil
	}
	return NewBlender(cfg.Converter.Command, WithScript(cfg.Converter.Script))
}

// Binary returns the configured executable name or path.
func (b *Blender) Binary() string {
	return b.binary
}

// Convert makes one conversion attempt bounded by timeout.
func (b *Blender) Convert(ctx context.Context, primary []byte, timeout time.Duration) Outcome {
	resolved, err := b.lookPath(b.binary)
	if err != nil {
		return Unavailable(fmt.Sprintf("%s not found: %v", b.binary, err))
	}

	workDir, err := os.MkdirTemp(b.tempDir, "webar-convert-*")
	if err != nil {
		return Failed(fmt.Sprintf("create work directory: %v", err))
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.glb")
	outputPath := filepath.Join(workDir, "output.usdz")
	if err := os.WriteFile(inputPath, primary, 0o600); err != nil {
		return Failed(fmt.Sprintf("stage input: %v", err))
	}
	scriptPath := b.scriptPath
	if scriptPath == "" {
		scriptPath = filepath.Join(workDir, "glb_to_usdz.py")
		if err := os.WriteFile(scriptPath, exportScript, 0o600); err != nil {
			return Failed(fmt.Sprintf("stage export script: %v", err))
		}
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := []string{"-b", "--factory-startup", "--python", scriptPath, "--", inputPath, outputPath}
	output, runErr := b.exec.Run(runCtx, resolved, args)
	if runErr != nil {
		switch {
		case errors.Is(runErr, exec.ErrNotFound), errors.Is(runErr, fs.ErrNotExist), errors.Is(runErr, fs.ErrPermission):
			return Unavailable(fmt.Sprintf("start %s: %v", b.binary, runErr))
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return Failed(withOutput(fmt.Sprintf("timed out after %s", timeout), output))
		case ctx.Err() != nil:
			return Failed(fmt.Sprintf("conversion canceled: %v", ctx.Err()))
		default:
			return Failed(withOutput(runErr.Error(), output))
		}
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Failed(withOutput("tool exited 0 but wrote no output", output))
		}
		return Failed(fmt.Sprintf("read output: %v", err))
	}
	if err := ValidateUSDZ(data, primary); err != nil {
		return Failed(err.Error())
	}
	return Success(data)
}

func withOutput(msg string, output []byte) string {
	tail := bytes.TrimSpace(output)
	if len(tail) == 0 {
		return msg
	}
	if len(tail) > diagnosticsLimit {
		tail = tail[len(tail)-diagnosticsLimit:]
	}
	return msg + ": " + string(tail)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}

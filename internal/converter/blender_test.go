package converter_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"webar/internal/converter"
	"webar/internal/testsupport"
)

type stubExecutor struct {
	write  func(input []byte) []byte
	output string
	err    error
	block  bool
	args   []string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	s.args = append([]string{binary}, args...)
	if s.block {
		<-ctx.Done()
		return []byte(s.output), ctx.Err()
	}
	if s.write != nil {
		in, err := os.ReadFile(args[len(args)-2])
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(args[len(args)-1], s.write(in), 0o644); err != nil {
			return nil, err
		}
	}
	return []byte(s.output), s.err
}

func foundAt(path string) converter.Option {
	return converter.WithLookPath(func(string) (string, error) { return path, nil })
}

func newBlender(t *testing.T, exec converter.Executor) *converter.Blender {
	t.Helper()
	b, err := converter.NewBlender("blender", converter.WithExecutor(exec), foundAt("/opt/blender/blender"), converter.WithTempDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewBlender: %v", err)
	}
	return b
}

func TestConvertSuccess(t *testing.T) {
	usdz := testsupport.USDZ(t, "#usda 1.0")
	exec := &stubExecutor{write: func([]byte) []byte { return usdz }}
	b := newBlender(t, exec)

	out := b.Convert(context.Background(), testsupport.SampleGLB(t), time.Minute)
	if out.Kind != converter.KindSuccess {
		t.Fatalf("expected success, got %s: %s", out.Kind, out.Diagnostics)
	}
	if string(out.Data) != string(usdz) {
		t.Fatal("expected derived bytes returned")
	}
	if exec.args[0] != "/opt/blender/blender" || exec.args[1] != "-b" || exec.args[2] != "--factory-startup" || exec.args[3] != "--python" || exec.args[5] != "--" {
		t.Fatalf("unexpected invocation: %v", exec.args)
	}
	if filepath.Ext(exec.args[6]) != ".glb" || filepath.Ext(exec.args[7]) != ".usdz" {
		t.Fatalf("unexpected io paths: %v", exec.args[6:])
	}
}

func TestConvertToolMissing(t *testing.T) {
	b, err := converter.NewBlender("blender",
		converter.WithExecutor(&stubExecutor{}),
		converter.WithLookPath(func(string) (string, error) { return "", exec.ErrNotFound }),
	)
	if err != nil {
		t.Fatalf("NewBlender: %v", err)
	}
	out := b.Convert(context.Background(), testsupport.SampleGLB(t), time.Minute)
	if out.Kind != converter.KindToolUnavailable {
		t.Fatalf("expected tool unavailable, got %s", out.Kind)
	}
	if !strings.Contains(out.Diagnostics, "blender not found") {
		t.Fatalf("unexpected diagnostics: %q", out.Diagnostics)
	}
}

func TestConvertStartFailureIsUnavailable(t *testing.T) {
	b := newBlender(t, &stubExecutor{err: fmt.Errorf("fork/exec: %w", os.ErrPermission)})
	if out := b.Convert(context.Background(), testsupport.SampleGLB(t), time.Minute); out.Kind != converter.KindToolUnavailable {
		t.Fatalf("expected tool unavailable, got %s", out.Kind)
	}
}

func TestConvertNonZeroExit(t *testing.T) {
	b := newBlender(t, &stubExecutor{output: "Error: import failed", err: errors.New("exit status 1")})
	out := b.Convert(context.Background(), testsupport.SampleGLB(t), time.Minute)
	if out.Kind != converter.KindToolFailed {
		t.Fatalf("expected tool failed, got %s", out.Kind)
	}
	if !strings.Contains(out.Diagnostics, "exit status 1") || !strings.Contains(out.Diagnostics, "import failed") {
		t.Fatalf("expected exit status and output in diagnostics, got %q", out.Diagnostics)
	}
}

func TestConvertRejectsCopiedInput(t *testing.T) {
	b := newBlender(t, &stubExecutor{write: func(in []byte) []byte { return in }})
	out := b.Convert(context.Background(), testsupport.SampleGLB(t), time.Minute)
	if out.Kind != converter.KindToolFailed || !strings.Contains(out.Diagnostics, "identical") {
		t.Fatalf("expected copied input to be rejected, got %s: %s", out.Kind, out.Diagnostics)
	}
}

func TestConvertRejectsNonArchive(t *testing.T) {
	b := newBlender(t, &stubExecutor{write: func([]byte) []byte { return []byte("#usda 1.0\n") }})
	out := b.Convert(context.Background(), testsupport.SampleGLB(t), time.Minute)
	if out.Kind != converter.KindToolFailed {
		t.Fatalf("expected tool failed, got %s", out.Kind)
	}
}

func TestConvertMissingOutput(t *testing.T) {
	b := newBlender(t, &stubExecutor{output: "done"})
	out := b.Convert(context.Background(), testsupport.SampleGLB(t), time.Minute)
	if out.Kind != converter.KindToolFailed || !strings.Contains(out.Diagnostics, "no output") {
		t.Fatalf("expected missing output failure, got %s: %s", out.Kind, out.Diagnostics)
	}
}

func TestConvertTimeout(t *testing.T) {
	b := newBlender(t, &stubExecutor{block: true})
	start := time.Now()
	out := b.Convert(context.Background(), testsupport.SampleGLB(t), 50*time.Millisecond)
	if out.Kind != converter.KindToolFailed || !strings.Contains(out.Diagnostics, "timed out") {
		t.Fatalf("expected timeout failure, got %s: %s", out.Kind, out.Diagnostics)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout was not enforced")
	}
}

func TestConvertRealProcessTimeout(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "slow-blender")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 10\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	b, err := converter.NewBlender(script, converter.WithTempDir(dir))
	if err != nil {
		t.Fatalf("NewBlender: %v", err)
	}
	out := b.Convert(context.Background(), testsupport.SampleGLB(t), 100*time.Millisecond)
	if out.Kind != converter.KindToolFailed {
		t.Fatalf("expected tool failed, got %s: %s", out.Kind, out.Diagnostics)
	}
}

func TestConvertRealProcessMissingBinary(t *testing.T) {
	b, err := converter.NewBlender(filepath.Join(t.TempDir(), "no-such-blender"))
	if err != nil {
		t.Fatalf("NewBlender: %v", err)
	}
	if out := b.Convert(context.Background(), testsupport.SampleGLB(t), time.Second); out.Kind != converter.KindToolUnavailable {
		t.Fatalf("expected tool unavailable, got %s", out.Kind)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConverterDisabled())
	conv, err := converter.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if out := conv.Convert(context.Background(), nil, time.Second); out.Kind != converter.KindToolUnavailable {
		t.Fatalf("expected disabled converter to be unavailable, got %s", out.Kind)
	}

	cfg = testsupport.NewConfig(t)
	conv, err = converter.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b, ok := conv.(*converter.Blender); !ok || b.Binary() != "blender" {
		t.Fatalf("expected blender converter, got %#v", conv)
	}
	if _, err := converter.NewBlender("  "); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestValidateUSDZ(t *testing.T) {
	primary := testsupport.SampleGLB(t)
	if err := converter.ValidateUSDZ(testsupport.USDZ(t, "layer"), primary); err != nil {
		t.Fatalf("expected valid archive, got %v", err)
	}
	if err := converter.ValidateUSDZ(nil, primary); !errors.Is(err, converter.ErrInvalidArtifact) {
		t.Fatalf("expected invalid artifact for empty output, got %v", err)
	}
	if err := converter.ValidateUSDZ(primary, primary); !errors.Is(err, converter.ErrInvalidArtifact) {
		t.Fatalf("expected invalid artifact for copied input, got %v", err)
	}
}

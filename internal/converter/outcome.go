package converter

import (
	"context"
	"time"
)

// Kind classifies a conversion outcome.
type Kind int

const (
	// KindSuccess means Data holds a valid derived artifact.
	KindSuccess Kind = iota
	// KindToolUnavailable means the conversion tool could not be started.
	KindToolUnavailable
	// KindToolFailed means the tool ran but produced no valid artifact.
	KindToolFailed
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindToolUnavailable:
		return "tool_unavailable"
	case KindToolFailed:
		return "tool_failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one conversion attempt.
type Outcome struct {
	Kind        Kind
	Data        []byte
	Diagnostics string
}

// Success wraps a validated derived artifact.
func Success(data []byte) Outcome {
	return Outcome{Kind: KindSuccess, Data: data}
}

// Unavailable reports that the tool could not be started.
func Unavailable(diagnostics string) Outcome {
	return Outcome{Kind: KindToolUnavailable, Diagnostics: diagnostics}
}

// Failed reports a tool run that did not yield a valid artifact.
func Failed(diagnostics string) Outcome {
	return Outcome{Kind: KindToolFailed, Diagnostics: diagnostics}
}

// Converter turns primary GLB bytes into USDZ bytes.
type Converter interface {
	Convert(ctx context.Context, primary []byte, timeout time.Duration) Outcome
}

// Disabled is used when conversion is switched off in configuration.
type Disabled struct{}

// Convert always reports the tool as unavailable.
func (Disabled) Convert(context.Context, []byte, time.Duration) Outcome {
	return Unavailable("converter disabled in configuration")
}

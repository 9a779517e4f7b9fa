// Package ai wraps the text-generation service behind a narrow interface so the
// provider can be swapped without touching classification or extraction logic.
package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/coolfix/service-desk/internal/observability"
)

// ErrDisabled is returned when no provider is configured.
var ErrDisabled = errors.New("ai: text generation disabled")

// TextGenerator produces free-form text for a prompt plus an optional context blob.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, contextBlob string) (string, error)
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, prompt, contextBlob string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt, contextBlob string) (string, error) {
	return f(ctx, prompt, contextBlob)
}

type disabledGenerator struct{}

// Disabled returns a generator that always fails with ErrDisabled, so callers take
// their heuristic fallback.
func Disabled() TextGenerator {
	return disabledGenerator{}
}

func (disabledGenerator) Generate(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

type instrumented struct {
	next    TextGenerator
	model   string
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// WithDeadline bounds every call by timeout and records latency and outcome.
func WithDeadline(next TextGenerator, model string, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) TextGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{next: next, model: model, timeout: timeout, metrics: metrics, logger: logger}
}

func (g *instrumented) Generate(ctx context.Context, prompt, contextBlob string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := g.next.Generate(ctx, prompt, contextBlob)
	status := "ok"
	switch {
	case errors.Is(err, ErrDisabled):
		status = "disabled"
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	g.metrics.ObserveAI(g.model, status, time.Since(start))
	if err != nil && status != "disabled" {
		g.logger.Warn("ai generation failed", zap.String("model", g.model), zap.String("status", status), zap.Error(err))
	}
	return out, err
}

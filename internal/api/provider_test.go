package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/samcharles93/beamscore/internal/pipeline"
)

func TestCachedPipelineProviderLoadsOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte("predictors:\n  - type: wc\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var builds atomic.Int32
	p := NewCachedPipelineProvider(PipelineProviderConfig{
		ConfigPath: path,
		Build: func(cfg pipeline.Config, opts ...pipeline.Option) (*pipeline.Combination, error) {
			builds.Add(1)
			return pipeline.Build(cfg, opts...)
		},
	})

	for range 3 {
		err := p.WithPipeline(context.Background(), func(c *pipeline.Combination) error {
			if c.Len() != 1 {
				t.Fatalf("expected 1 predictor, got %d", c.Len())
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithPipeline: %v", err)
		}
	}
	if got := builds.Load(); got != 1 {
		t.Fatalf("expected one build, got %d", got)
	}
}

func TestCachedPipelineProviderErrors(t *testing.T) {
	t.Parallel()

	noop := func(*pipeline.Combination) error { return nil }

	if err := NewCachedPipelineProvider(PipelineProviderConfig{}).WithPipeline(context.Background(), noop); err == nil {
		t.Fatalf("expected error without config path")
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if err := NewCachedPipelineProvider(PipelineProviderConfig{ConfigPath: missing}).WithPipeline(context.Background(), noop); err == nil {
		t.Fatalf("expected error for missing config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewStaticPipelineProvider(pipeline.NewCombination())
	if err := p.WithPipeline(ctx, noop); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/pipeline"
)

// PipelineProvider runs fn with exclusive access to a predictor pipeline.
type PipelineProvider interface {
	WithPipeline(ctx context.Context, fn func(c *pipeline.Combination) error) error
}

type PipelineProviderConfig struct {
	// ConfigPath is the pipeline YAML file loaded on first use.
	ConfigPath string
	Logger     logger.Logger
	// Build overrides pipeline.Build, mainly for tests.
	Build func(cfg pipeline.Config, opts ...pipeline.Option) (*pipeline.Combination, error)
}

// CachedPipelineProvider loads the pipeline once and serializes access to it.
// Predictors keep per-sentence state, so requests cannot share one
// concurrently.
type CachedPipelineProvider struct {
	cfg PipelineProviderConfig

	loadMu sync.Mutex
	comb   *pipeline.Combination

	mu sync.Mutex
}

func NewCachedPipelineProvider(cfg PipelineProviderConfig) *CachedPipelineProvider {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Build == nil {
		cfg.Build = pipeline.Build
	}
	return &CachedPipelineProvider{cfg: cfg}
}

// NewStaticPipelineProvider serves an already built pipeline.
func NewStaticPipelineProvider(c *pipeline.Combination) *CachedPipelineProvider {
	return &CachedPipelineProvider{
		cfg:  PipelineProviderConfig{Logger: logger.Discard()},
		comb: c,
	}
}

func (p *CachedPipelineProvider) WithPipeline(ctx context.Context, fn func(c *pipeline.Combination) error) error {
	comb, err := p.getOrLoad()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(comb)
}

func (p *CachedPipelineProvider) getOrLoad() (*pipeline.Combination, error) {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if p.comb != nil {
		return p.comb, nil
	}
	if p.cfg.ConfigPath == "" {
		return nil, fmt.Errorf("pipeline config path is required")
	}
	cfg, err := pipeline.LoadConfig(p.cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	comb, err := p.cfg.Build(cfg, pipeline.WithLogger(p.cfg.Logger))
	if err != nil {
		return nil, err
	}
	p.cfg.Logger.Info("pipeline loaded", "path", p.cfg.ConfigPath, "predictors", comb.Len())
	p.comb = comb
	return comb, nil
}

// Package wrap contains decorators that change the scores of another
// predictor.
package wrap

import (
	"context"
	"fmt"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// WeightConfig selects the ids whose scores WeightNonTerminal multiplies.
// NonTerminalIDs takes precedence over NonTerminalIDsFile, which takes
// precedence over the ids outside [MinTerminalID, MaxTerminalID].
type WeightConfig struct {
	PenaltyFactor      float64
	NonTerminalIDs     []int
	NonTerminalIDsFile string
	MinTerminalID      int
	MaxTerminalID      int
	VocabSize          int
}

// DefaultWeightConfig leaves scores unchanged.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		PenaltyFactor: 1.0,
		MaxTerminalID: 30003,
		VocabSize:     30003,
	}
}

// Option configures a decorator.
type Option func(*options)

type options struct {
	log logger.Logger
}

// WithLogger sets the logger for load-time messages.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WeightNonTerminal multiplies the scores of non-terminal ids returned by
// its inner predictor. EOS and UNK are never weighted. Every other
// operation is passed through.
type WeightNonTerminal struct {
	inner predictor.Predictor
	mult  map[int]float64
}

// NewWeightNonTerminal wraps inner.
func NewWeightNonTerminal(inner predictor.Predictor, cfg WeightConfig, opts ...Option) (*WeightNonTerminal, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: weight_nt needs an inner predictor", predictor.ErrInvalidConfig)
	}
	o := options{log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	ids := cfg.NonTerminalIDs
	switch {
	case len(ids) > 0:
	case cfg.NonTerminalIDsFile != "":
		loaded, err := vocab.LoadIDs(cfg.NonTerminalIDsFile)
		if err != nil {
			return nil, fmt.Errorf("weight_nt: %w", err)
		}
		o.log.Debug("loaded non-terminal ids", "path", cfg.NonTerminalIDsFile, "ids", len(loaded))
		ids = loaded
	default:
		ids = vocab.NonTerminalIDs(cfg.MinTerminalID, cfg.MaxTerminalID, cfg.VocabSize)
	}
	mult := make(map[int]float64, len(ids))
	for _, id := range ids {
		mult[id] = cfg.PenaltyFactor
	}
	delete(mult, vocab.EOS)
	delete(mult, vocab.UNK)
	return &WeightNonTerminal{inner: inner, mult: mult}, nil
}

// Inner returns the wrapped predictor.
func (w *WeightNonTerminal) Inner() predictor.Predictor {
	return w.inner
}

// Factor returns the multiplier applied to id.
func (w *WeightNonTerminal) Factor(id int) float64 {
	return predictor.Lookup(w.mult, id, 1.0)
}

// PredictNext returns a copy of the inner posterior with the weighted ids
// multiplied.
func (w *WeightNonTerminal) PredictNext() predictor.Posterior {
	inner := w.inner.PredictNext()
	var post predictor.Posterior
	for id, score := range inner {
		f, ok := w.mult[id]
		if !ok {
			continue
		}
		if post == nil {
			post = predictor.Clone(inner)
		}
		post[id] = score * f
	}
	if post == nil {
		return inner
	}
	return post
}

// Initialize implements predictor.Predictor.
func (w *WeightNonTerminal) Initialize(ctx context.Context, src []int) error {
	return w.inner.Initialize(ctx, src)
}

// UnkProbability implements predictor.Predictor.
func (w *WeightNonTerminal) UnkProbability(post predictor.Posterior) float64 {
	return w.inner.UnkProbability(post)
}

// Consume implements predictor.Predictor.
func (w *WeightNonTerminal) Consume(token int) {
	w.inner.Consume(token)
}

// State implements predictor.Predictor.
func (w *WeightNonTerminal) State() predictor.State {
	return w.inner.State()
}

// SetState implements predictor.Predictor.
func (w *WeightNonTerminal) SetState(s predictor.State) error {
	return w.inner.SetState(s)
}

// IsEqual implements predictor.Predictor.
func (w *WeightNonTerminal) IsEqual(a, b predictor.State) bool {
	return w.inner.IsEqual(a, b)
}

// SetSentenceID implements predictor.Predictor.
func (w *WeightNonTerminal) SetSentenceID(id int) {
	w.inner.SetSentenceID(id)
}

// Memoryless reports what the inner predictor declares, and false if it
// declares nothing.
func (w *WeightNonTerminal) Memoryless() bool {
	memoryless, known := predictor.IsMemoryless(w.inner)
	return known && memoryless
}

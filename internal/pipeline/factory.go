package pipeline

import (
	"fmt"
	"strconv"

	"github.com/samcharles93/beamscore/internal/length"
	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/ngram"
	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/wrap"
)

// Option configures Build.
type Option func(*options)

type options struct {
	log logger.Logger
}

// WithLogger passes l to every predictor built.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Build constructs every predictor of cfg. Static resources (source text,
// length tables, id lists) are loaded here; per-sentence files are loaded by
// Initialize.
func Build(cfg Config, opts ...Option) (*Combination, error) {
	o := options{log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := builder{cfg: cfg, log: o.log}
	members := make([]Member, 0, len(cfg.Predictors))
	seen := make(map[string]int)
	for i, spec := range cfg.Predictors {
		p, err := b.build(spec)
		if err != nil {
			return nil, fmt.Errorf("predictor %d (%s): %w", i, spec.Type, err)
		}
		name := spec.Name
		if name == "" {
			name = spec.Type
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name += "_" + strconv.Itoa(n)
		}
		members = append(members, Member{Name: name, Type: spec.Type, Weight: spec.weight(), Predictor: p})
	}
	o.log.Info("pipeline built", "predictors", len(members))
	return NewCombination(members...), nil
}

type builder struct {
	cfg Config
	log logger.Logger
}

func (b builder) build(spec PredictorSpec) (predictor.Predictor, error) {
	log := b.log.With("predictor", spec.Type)
	switch spec.Type {
	case TypeNBLength:
		return length.NewNBLengthFromFile(spec.SrcText, length.NBLengthConfig{
			Weights:       spec.Weights,
			UsePointProbs: spec.UsePointProbs,
			Offset:        spec.Offset,
		}, length.WithLogger(log))
	case TypeUnkCount:
		return length.NewUnkCount(b.cfg.SrcVocabSize, spec.Lambdas, length.WithLogger(log))
	case TypeWordCount:
		wc := length.DefaultWordCountConfig()
		if spec.Word != nil {
			wc.Word = *spec.Word
		}
		if spec.NegativeWC != nil {
			wc.NegativeWC = *spec.NegativeWC
		}
		wc.NonTerminalPenalty = spec.NonTerminalPenalty
		wc.NonTerminalIDsFile = spec.NonTerminalIDs
		wc.MinTerminalID = spec.MinTerminalID
		wc.MaxTerminalID = b.maxTerminal(spec)
		wc.VocabSize = b.cfg.VocabSize
		return length.NewWordCount(wc, length.WithLogger(log))
	case TypeExtLength:
		return length.NewExternalLength(spec.Path, length.WithLogger(log))
	case TypeNgramCount:
		cc := ngram.DefaultCountConfig(spec.Path)
		cc.Order = spec.Order
		if spec.DiscountFactor != nil {
			cc.DiscountFactor = *spec.DiscountFactor
		}
		return ngram.NewCount(cc, ngram.WithLogger(log))
	case TypeWeightNT:
		inner, err := b.build(*spec.Inner)
		if err != nil {
			return nil, fmt.Errorf("inner %s: %w", spec.Inner.Type, err)
		}
		wcfg := wrap.DefaultWeightConfig()
		if spec.PenaltyFactor != nil {
			wcfg.PenaltyFactor = *spec.PenaltyFactor
		}
		wcfg.NonTerminalIDsFile = spec.NonTerminalIDs
		wcfg.MinTerminalID = spec.MinTerminalID
		wcfg.MaxTerminalID = b.maxTerminal(spec)
		wcfg.VocabSize = b.cfg.VocabSize
		return wrap.NewWeightNonTerminal(inner, wcfg, wrap.WithLogger(log))
	case TypeNgramize:
		inner, err := b.build(*spec.Inner)
		if err != nil {
			return nil, fmt.Errorf("inner %s: %w", spec.Inner.Type, err)
		}
		return ngram.NewNgramize(inner, ngram.NgramizeConfig{
			MinOrder:     spec.MinOrder,
			MaxOrder:     spec.MaxOrder,
			MaxLenFactor: spec.MaxLenFactor,
		}, ngram.WithLogger(log))
	}
	return nil, fmt.Errorf("%w: unknown predictor type %q", predictor.ErrInvalidConfig, spec.Type)
}

// maxTerminal defaults the terminal span to the whole vocabulary.
func (b builder) maxTerminal(spec PredictorSpec) int {
	if spec.MaxTerminalID != nil {
		return *spec.MaxTerminalID
	}
	return b.cfg.VocabSize
}

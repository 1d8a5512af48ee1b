// Package pipeline builds a weighted combination of predictors from a YAML
// description and drives it over given target sentences.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/beamscore/internal/predictor"
)

// Predictor types understood by Build.
const (
	TypeNBLength   = "nblength"
	TypeUnkCount   = "unkc"
	TypeWordCount  = "wc"
	TypeExtLength  = "extlength"
	TypeNgramCount = "ngramc"
	TypeWeightNT   = "weight_nt"
	TypeNgramize   = "ngramize"
)

const (
	defaultVocab  = 30003
	defaultWeight = 1.0
)

// TypeInfo describes a predictor type.
type TypeInfo struct {
	Name        string `json:"name"`
	Decorator   bool   `json:"decorator"`
	Description string `json:"description"`
}

var types = []TypeInfo{
	{TypeNBLength, false, "negative binomial target length model over source text features"},
	{TypeUnkCount, false, "Poisson model of the number of UNK tokens"},
	{TypeWordCount, false, "constant score per word, per chosen word or per non-terminal"},
	{TypeExtLength, false, "per-sentence length scores read from a file"},
	{TypeNgramCount, false, "sum of n-gram posteriors read from per-sentence files"},
	{TypeWeightNT, true, "multiplies the scores of non-terminal ids of the inner predictor"},
	{TypeNgramize, true, "n-gram scores derived from a memoryless inner predictor"},
}

// Types lists the predictor types in a stable order.
func Types() []TypeInfo {
	out := make([]TypeInfo, len(types))
	copy(out, types)
	return out
}

func lookupType(name string) (TypeInfo, bool) {
	for _, t := range types {
		if t.Name == name {
			return t, true
		}
	}
	return TypeInfo{}, false
}

// Config is the pipeline file.
type Config struct {
	// VocabSize bounds the target ids. Defaults to 30003.
	VocabSize int `yaml:"vocab_size"`
	// SrcVocabSize marks larger source ids as unknown. Defaults to 30003.
	SrcVocabSize int             `yaml:"src_vocab_size"`
	Predictors   []PredictorSpec `yaml:"predictors"`
}

// PredictorSpec describes one predictor. Only the fields of its Type are
// read. Pointer fields distinguish "not set" from zero values.
type PredictorSpec struct {
	Type string `yaml:"type"`
	// Name labels the predictor in score breakdowns. Defaults to Type.
	Name   string   `yaml:"name,omitempty"`
	Weight *float64 `yaml:"weight,omitempty"`

	// nblength
	SrcText       string    `yaml:"src_text,omitempty"`
	Weights       []float64 `yaml:"weights,omitempty"`
	UsePointProbs bool      `yaml:"use_point_probs,omitempty"`
	Offset        int       `yaml:"offset,omitempty"`

	// unkc
	Lambdas []float64 `yaml:"lambdas,omitempty"`

	// wc and weight_nt
	Word               *int     `yaml:"word,omitempty"`
	NegativeWC         *bool    `yaml:"negative_wc,omitempty"`
	NonTerminalPenalty bool     `yaml:"nonterminal_penalty,omitempty"`
	NonTerminalIDs     string   `yaml:"nonterminal_ids,omitempty"`
	MinTerminalID      int      `yaml:"min_terminal_id,omitempty"`
	MaxTerminalID      *int     `yaml:"max_terminal_id,omitempty"`
	PenaltyFactor      *float64 `yaml:"penalty_factor,omitempty"`

	// extlength and ngramc
	Path           string   `yaml:"path,omitempty"`
	Order          int      `yaml:"order,omitempty"`
	DiscountFactor *float64 `yaml:"discount_factor,omitempty"`

	// ngramize
	MinOrder     int `yaml:"min_order,omitempty"`
	MaxOrder     int `yaml:"max_order,omitempty"`
	MaxLenFactor int `yaml:"max_len_factor,omitempty"`

	// Inner is the wrapped predictor of weight_nt and ngramize.
	Inner *PredictorSpec `yaml:"inner,omitempty"`
}

// LoadConfig reads a pipeline file. Relative file paths inside it are
// resolved against the directory of path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read pipeline config: %w", err)
	}
	cfg, err := ParseConfig(data, filepath.Dir(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a pipeline description. Unknown keys are
// rejected. If baseDir is not empty, relative paths are joined to it.
func ParseConfig(data []byte, baseDir string) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", predictor.ErrInvalidConfig, err)
	}
	if cfg.VocabSize == 0 {
		cfg.VocabSize = defaultVocab
	}
	if cfg.SrcVocabSize == 0 {
		cfg.SrcVocabSize = defaultVocab
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if baseDir != "" {
		for i := range cfg.Predictors {
			cfg.Predictors[i].resolvePaths(baseDir)
		}
	}
	return cfg, nil
}

// Validate checks the structure of the pipeline. Parameter ranges are
// checked by the predictor constructors.
func (c Config) Validate() error {
	if len(c.Predictors) == 0 {
		return fmt.Errorf("%w: pipeline has no predictors", predictor.ErrInvalidConfig)
	}
	if c.VocabSize < 0 || c.SrcVocabSize < 0 {
		return fmt.Errorf("%w: vocabulary sizes must not be negative", predictor.ErrInvalidConfig)
	}
	var errs []error
	for i, p := range c.Predictors {
		if err := p.validate(); err != nil {
			errs = append(errs, fmt.Errorf("predictor %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (p PredictorSpec) validate() error {
	info, ok := lookupType(p.Type)
	if !ok {
		return fmt.Errorf("%w: unknown predictor type %q", predictor.ErrInvalidConfig, p.Type)
	}
	switch {
	case info.Decorator && p.Inner == nil:
		return fmt.Errorf("%w: %s needs an inner predictor", predictor.ErrInvalidConfig, p.Type)
	case !info.Decorator && p.Inner != nil:
		return fmt.Errorf("%w: %s does not wrap a predictor", predictor.ErrInvalidConfig, p.Type)
	case p.Inner != nil:
		if err := p.Inner.validate(); err != nil {
			return fmt.Errorf("%s inner: %w", p.Type, err)
		}
	}
	return nil
}

func (p *PredictorSpec) resolvePaths(baseDir string) {
	for _, s := range []*string{&p.SrcText, &p.NonTerminalIDs, &p.Path} {
		if *s != "" && !filepath.IsAbs(*s) {
			*s = filepath.Join(baseDir, *s)
		}
	}
	if p.Inner != nil {
		p.Inner.resolvePaths(baseDir)
	}
}

// weight returns the configured weight, 1 by default.
func (p PredictorSpec) weight() float64 {
	if p.Weight == nil {
		return defaultWeight
	}
	return *p.Weight
}

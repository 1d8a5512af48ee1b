package length

import (
	"context"
	"fmt"

	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// WordCountConfig selects one of three mutually exclusive modes:
//
//   - NonTerminalPenalty: penalize every non-terminal id (NonTerminalIDs,
//     NonTerminalIDsFile, or everything outside [MinTerminalID, MaxTerminalID]);
//   - Word >= 0: penalize only that id;
//   - otherwise: penalize every token except EOS.
type WordCountConfig struct {
	Word               int
	NonTerminalPenalty bool
	NonTerminalIDs     []int
	NonTerminalIDsFile string
	MinTerminalID      int
	MaxTerminalID      int
	VocabSize          int
	// NegativeWC makes the per-token score -1 instead of +1.
	NegativeWC bool
}

// DefaultWordCountConfig counts every word with a negative score.
func DefaultWordCountConfig() WordCountConfig {
	return WordCountConfig{
		Word:          -1,
		MaxTerminalID: 30003,
		VocabSize:     30003,
		NegativeWC:    true,
	}
}

// WordCount adds a constant score per penalized token. It has no mutable
// state.
type WordCount struct {
	predictor.Base

	posterior predictor.Posterior
	unk       float64
}

// WordCountState is the snapshot type of WordCount.
type WordCountState struct{}

// NewWordCount creates a word count predictor.
func NewWordCount(cfg WordCountConfig, opts ...Option) (*WordCount, error) {
	o := applyOptions(opts)
	val := 1.0
	if cfg.NegativeWC {
		val = -1.0
	}
	wc := &WordCount{}
	switch {
	case cfg.NonTerminalPenalty:
		ids := cfg.NonTerminalIDs
		if len(ids) == 0 && cfg.NonTerminalIDsFile != "" {
			loaded, err := vocab.LoadIDs(cfg.NonTerminalIDsFile)
			if err != nil {
				return nil, fmt.Errorf("wc: %w", err)
			}
			ids = loaded
			o.log.Debug("loaded non-terminal ids", "path", cfg.NonTerminalIDsFile, "ids", len(ids))
		} else if len(ids) == 0 {
			ids = vocab.NonTerminalIDs(cfg.MinTerminalID, cfg.MaxTerminalID, cfg.VocabSize)
		}
		wc.posterior = make(predictor.Posterior, len(ids)+2)
		for _, id := range ids {
			wc.posterior[id] = val
		}
		wc.posterior[vocab.EOS] = 0.0
		wc.posterior[vocab.UNK] = 0.0
		wc.unk = 0.0
	case cfg.Word >= 0:
		wc.posterior = predictor.Posterior{vocab.EOS: 0.0, cfg.Word: val}
		wc.unk = 0.0
	default:
		wc.posterior = predictor.Posterior{vocab.EOS: 0.0}
		wc.unk = val
	}
	return wc, nil
}

// Initialize is a no-op.
func (wc *WordCount) Initialize(context.Context, []int) error { return nil }

// PredictNext returns the same posterior at every step.
func (wc *WordCount) PredictNext() predictor.Posterior { return wc.posterior }

// UnkProbability returns the configured fallback.
func (wc *WordCount) UnkProbability(predictor.Posterior) float64 { return wc.unk }

// Consume is a no-op.
func (wc *WordCount) Consume(int) {}

// State implements predictor.Predictor.
func (wc *WordCount) State() predictor.State { return WordCountState{} }

// SetState implements predictor.Predictor.
func (wc *WordCount) SetState(s predictor.State) error {
	if _, ok := s.(WordCountState); !ok {
		return fmt.Errorf("wc: %w: %T", predictor.ErrStateType, s)
	}
	return nil
}

// IsEqual is always true.
func (wc *WordCount) IsEqual(predictor.State, predictor.State) bool { return true }

// Memoryless reports true.
func (wc *WordCount) Memoryless() bool { return true }

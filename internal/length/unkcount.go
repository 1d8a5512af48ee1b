package length

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// UnkCount regulates the number of UNK tokens in the output. The UNK count of
// the target is modelled as Poisson distributed, with a rate chosen by the
// number of UNKs in the source: lambdas[i] applies to i source UNKs and the
// last entry to everything beyond.
type UnkCount struct {
	predictor.Base

	lambdas      []float64
	srcVocabSize int
	log          logger.Logger

	pois   distuv.Poisson
	maxIdx int
	maxLP  float64

	consumed   int
	nUnk       int
	unkLP      float64
	consumedLP float64
}

// UnkCountState is the snapshot type of UnkCount.
type UnkCountState struct {
	NUnk       int     `json:"n_unk"`
	Consumed   int     `json:"consumed"`
	UnkLP      float64 `json:"unk_logprob"`
	ConsumedLP float64 `json:"consumed_logprob"`
}

// NewUnkCount creates an UNK count predictor. Source ids equal to UNK or
// greater than srcVocabSize count as unknown.
func NewUnkCount(srcVocabSize int, lambdas []float64, opts ...Option) (*UnkCount, error) {
	if len(lambdas) == 0 {
		return nil, fmt.Errorf("%w: unkc needs at least one lambda", predictor.ErrInvalidConfig)
	}
	for i, l := range lambdas {
		if !(l > 0) || math.IsInf(l, 1) {
			return nil, fmt.Errorf("%w: unkc lambda %d must be positive and finite, got %g", predictor.ErrInvalidConfig, i, l)
		}
	}
	o := applyOptions(opts)
	uc := &UnkCount{
		lambdas:      slices.Clone(lambdas),
		srcVocabSize: srcVocabSize,
		log:          o.log,
	}
	uc.setLambda(lambdas[0])
	return uc, nil
}

// Initialize counts the UNKs in src, selects the Poisson rate and resets the
// counters.
func (uc *UnkCount) Initialize(ctx context.Context, src []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	srcUnks := 0
	for _, w := range src {
		if w == vocab.UNK || w > uc.srcVocabSize {
			srcUnks++
		}
	}
	uc.setLambda(uc.lambdas[min(len(uc.lambdas)-1, srcUnks)])
	uc.log.Debug("unkc initialized", "sentence", uc.SentenceID(), "src_unks", srcUnks,
		"lambda", uc.pois.Lambda, "mode", uc.maxIdx)
	return nil
}

func (uc *UnkCount) setLambda(lambda float64) {
	uc.pois = distuv.Poisson{Lambda: lambda}
	uc.consumed = 0
	uc.nUnk = 0
	uc.unkLP = uc.LogPMF(1)
	uc.maxIdx = int(math.Floor(lambda))
	uc.maxLP = uc.LogPMF(uc.maxIdx)
	if ceil := uc.LogPMF(uc.maxIdx + 1); ceil > uc.maxLP {
		uc.maxLP = ceil
		uc.maxIdx++
	}
	uc.consumedLP = uc.maxLP
}

// Lambda returns the Poisson rate selected for the current sentence.
func (uc *UnkCount) Lambda() float64 {
	return uc.pois.Lambda
}

// LogPMF is the Poisson log-probability of n UNKs.
func (uc *UnkCount) LogPMF(n int) float64 {
	return uc.pois.LogProb(float64(n))
}

// PredictNext scores EOS relative to the mode while fewer UNKs than the mode
// have been produced, and scores further UNKs once the mode is reached.
func (uc *UnkCount) PredictNext() predictor.Posterior {
	if uc.consumed == 0 {
		return predictor.Posterior{vocab.EOS: uc.maxLP}
	}
	if uc.nUnk < uc.maxIdx {
		return predictor.Posterior{vocab.EOS: uc.unkLP - uc.maxLP}
	}
	return predictor.Posterior{vocab.UNK: uc.unkLP - uc.consumedLP}
}

// UnkProbability is the mode probability before the first token and 0 after.
func (uc *UnkCount) UnkProbability(predictor.Posterior) float64 {
	if uc.consumed == 0 {
		return uc.maxLP
	}
	return 0.0
}

// Consume counts token and, for UNK, moves on to the next count.
func (uc *UnkCount) Consume(token int) {
	uc.consumed++
	if token != vocab.UNK {
		return
	}
	if uc.nUnk >= uc.maxIdx {
		uc.consumedLP = uc.unkLP
	}
	uc.nUnk++
	uc.unkLP = uc.LogPMF(uc.nUnk + 1)
}

// State implements predictor.Predictor.
func (uc *UnkCount) State() predictor.State {
	return UnkCountState{NUnk: uc.nUnk, Consumed: uc.consumed, UnkLP: uc.unkLP, ConsumedLP: uc.consumedLP}
}

// SetState implements predictor.Predictor.
func (uc *UnkCount) SetState(s predictor.State) error {
	st, ok := s.(UnkCountState)
	if !ok {
		return fmt.Errorf("unkc: %w: %T", predictor.ErrStateType, s)
	}
	uc.nUnk, uc.consumed, uc.unkLP, uc.consumedLP = st.NUnk, st.Consumed, st.UnkLP, st.ConsumedLP
	return nil
}

// IsEqual requires identical snapshots.
func (uc *UnkCount) IsEqual(a, b predictor.State) bool {
	sa, okA := a.(UnkCountState)
	sb, okB := b.(UnkCountState)
	return okA && okB && sa == sb
}

// Memoryless reports false: scores depend on how many UNKs were consumed.
func (uc *UnkCount) Memoryless() bool { return false }

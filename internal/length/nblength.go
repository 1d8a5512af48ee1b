package length

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/mathutil"
	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// NBLengthConfig configures NBLength.
type NBLengthConfig struct {
	// Weights holds w0..w9 and optionally the biases w10 (for r) and w11
	// (for p). r uses w0..w4 and p uses w5..w9, each applied to the five
	// source Features.
	Weights []float64
	// UsePointProbs scores EOS by its point probability relative to the
	// mode. Otherwise EOS probabilities are renormalized step by step.
	UsePointProbs bool
	// Offset is subtracted from the hypothesis length before scoring.
	Offset int
}

// NBLength scores EOS under a negative binomial model of the target length
// with
//
//	r = max(EpsR, w[0:5]·f + w10)
//	p = clamp(sigmoid(w[5:10]·f + w11), EpsP, 1-EpsP)
//
// where f are the Features of the current source sentence.
type NBLength struct {
	predictor.Base

	features      []Features
	rWeights      []float64
	pWeights      []float64
	usePointProbs bool
	offset        int
	log           logger.Logger

	r, p     float64
	maxEOS   float64
	consumed int
	prevEOS  []float64
}

// NBLengthState is the snapshot type of NBLength.
type NBLengthState struct {
	Consumed int       `json:"consumed"`
	PrevEOS  []float64 `json:"prev_eos,omitempty"`
}

// NewNBLength creates a length model over precomputed source features, one
// entry per sentence. The weight vector must have 10 or 12 entries.
func NewNBLength(features []Features, cfg NBLengthConfig, opts ...Option) (*NBLength, error) {
	w := cfg.Weights
	switch len(w) {
	case 2 * NumFeatures:
		w = append(slices.Clone(w), 0, 0)
	case 2*NumFeatures + 2:
		w = slices.Clone(w)
	default:
		return nil, fmt.Errorf("%w: number of length model weights has to be %d or %d, got %d",
			predictor.ErrInvalidConfig, 2*NumFeatures, 2*NumFeatures+2, len(w))
	}
	o := applyOptions(opts)
	return &NBLength{
		features:      features,
		rWeights:      append(slices.Clone(w[:NumFeatures]), w[2*NumFeatures]),
		pWeights:      append(slices.Clone(w[NumFeatures:2*NumFeatures]), w[2*NumFeatures+1]),
		usePointProbs: cfg.UsePointProbs,
		offset:        cfg.Offset,
		log:           o.log,
	}, nil
}

// NewNBLengthFromFile extracts features from the untokenized source text at
// textPath and creates the length model.
func NewNBLengthFromFile(textPath string, cfg NBLengthConfig, opts ...Option) (*NBLength, error) {
	feats, err := LoadFeatures(textPath)
	if err != nil {
		return nil, err
	}
	nb, err := NewNBLength(feats, cfg, opts...)
	if err != nil {
		return nil, err
	}
	nb.log.Debug("loaded source features", "path", textPath, "sentences", len(feats))
	return nb, nil
}

// Initialize computes r and p for the current sentence. src is not used:
// features come from the raw source text.
func (nb *NBLength) Initialize(ctx context.Context, _ []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := nb.SentenceID()
	if id < 0 || id >= len(nb.features) {
		return fmt.Errorf("nblength: sentence %d of %d: %w", id, len(nb.features), predictor.ErrSentenceRange)
	}
	f := nb.features[id]
	feat := append(f[:], 1.0)
	nb.SetParams(
		mathutil.Dot(feat, nb.rWeights),
		mathutil.Sigmoid(mathutil.Dot(feat, nb.pWeights)),
	)
	nb.log.Debug("nblength initialized", "sentence", id, "r", nb.r, "p", nb.p)
	return nil
}

// SetParams sets r and p directly (after flooring r and clamping p) and
// resets the per-sentence state, as Initialize does.
func (nb *NBLength) SetParams(r, p float64) {
	nb.r = max(EpsR, r)
	nb.p = mathutil.Clamp(p, EpsP, 1.0-EpsP)
	nb.consumed = 0
	nb.prevEOS = nil
	if nb.usePointProbs {
		nb.maxEOS = nb.modeLogPMF()
	}
}

// Params returns the current r and p.
func (nb *NBLength) Params() (r, p float64) {
	return nb.r, nb.p
}

// LogPMF is the negative binomial log-probability of length n.
func (nb *NBLength) LogPMF(n int) float64 {
	x := float64(n)
	lgNR, _ := math.Lgamma(x + nb.r)
	lgN1, _ := math.Lgamma(x + 1)
	lgR, _ := math.Lgamma(nb.r)
	return lgNR - lgN1 - lgR + x*math.Log(nb.p) + nb.r*math.Log(1.0-nb.p)
}

// modeLogPMF scans n = 1, 2, ... while the pmf keeps increasing.
func (nb *NBLength) modeLogPMF() float64 {
	best := mathutil.NegInf
	for n := 1; ; n++ {
		lp := nb.LogPMF(n)
		if !(lp >= best) {
			return best
		}
		best = lp
	}
}

func (nb *NBLength) length() int {
	return max(1, nb.consumed-nb.offset)
}

// PredictNext scores only EOS. Termination of an empty hypothesis is
// forbidden.
func (nb *NBLength) PredictNext() predictor.Posterior {
	if nb.consumed == 0 {
		return predictor.Posterior{vocab.EOS: mathutil.NegInf}
	}
	point := nb.LogPMF(nb.length())
	if nb.usePointProbs {
		return predictor.Posterior{vocab.EOS: point - nb.maxEOS}
	}
	if len(nb.prevEOS) == 0 {
		return predictor.Posterior{vocab.EOS: point}
	}
	// Surviving this far rules out every earlier length.
	prev := mathutil.LogSumExp(nb.prevEOS)
	return predictor.Posterior{vocab.EOS: point - mathutil.Log1mExp(prev)}
}

// UnkProbability returns the mode probability before the first token in
// point mode and 0 afterwards. In renormalized mode it is the complement of
// the EOS probability in post.
func (nb *NBLength) UnkProbability(post predictor.Posterior) float64 {
	if nb.usePointProbs {
		if nb.consumed == 0 {
			return nb.maxEOS
		}
		return 0.0
	}
	if nb.consumed == 0 {
		return 0.0
	}
	return mathutil.Log1mExp(predictor.Lookup(post, vocab.EOS, mathutil.NegInf))
}

// Consume increases the hypothesis length. In renormalized mode the point
// mass of the length just passed is recorded.
func (nb *NBLength) Consume(int) {
	if !nb.usePointProbs && nb.consumed > 0 {
		nb.prevEOS = append(nb.prevEOS, nb.LogPMF(nb.length()))
	}
	nb.consumed++
}

// State implements predictor.Predictor.
func (nb *NBLength) State() predictor.State {
	return NBLengthState{Consumed: nb.consumed, PrevEOS: slices.Clone(nb.prevEOS)}
}

// SetState implements predictor.Predictor.
func (nb *NBLength) SetState(s predictor.State) error {
	st, ok := s.(NBLengthState)
	if !ok {
		return fmt.Errorf("nblength: %w: %T", predictor.ErrStateType, s)
	}
	nb.consumed = st.Consumed
	nb.prevEOS = slices.Clone(st.PrevEOS)
	return nil
}

// IsEqual compares hypothesis lengths. The accumulated EOS masses are a
// function of the length for fixed r and p.
func (nb *NBLength) IsEqual(a, b predictor.State) bool {
	sa, okA := a.(NBLengthState)
	sb, okB := b.(NBLengthState)
	return okA && okB && sa.Consumed == sb.Consumed
}

// Memoryless reports true: Consume ignores the token.
func (nb *NBLength) Memoryless() bool { return true }

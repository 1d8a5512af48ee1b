package ngram

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/mathutil"
	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// ErrNotMemoryless is returned when Ngramize wraps a predictor that declares
// its output depends on the consumed tokens.
var ErrNotMemoryless = errors.New("inner predictor is not memoryless")

// NgramizeConfig configures Ngramize.
type NgramizeConfig struct {
	MinOrder int
	MaxOrder int
	// MaxLenFactor bounds the greedy pass to MaxLenFactor times the source
	// length.
	MaxLenFactor int
}

// Ngramize turns a memoryless predictor into an n-gram model. Initialize
// records the inner posteriors along one greedy pass. PredictNext then sums,
// over all positions in that pass, the probability of the current n-gram
// history followed by each next token.
type Ngramize struct {
	cfg   NgramizeConfig
	inner predictor.Predictor
	log   logger.Logger

	maxHistory int
	minOrder   int

	scores    []predictor.Posterior
	unkScores []float64

	history  []int
	unkScore float64
}

// NgramizeState is the snapshot type of Ngramize.
type NgramizeState struct {
	History []int `json:"history"`
	// UnkScore is recomputed by every PredictNext and may be -Inf.
	UnkScore float64 `json:"-"`
}

// NewNgramize wraps inner. MaxOrder must be positive and not below MinOrder.
// Orders below 1 are raised to 1.
func NewNgramize(inner predictor.Predictor, cfg NgramizeConfig, opts ...Option) (*Ngramize, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: ngramize needs an inner predictor", predictor.ErrInvalidConfig)
	}
	if cfg.MaxOrder < 1 {
		return nil, fmt.Errorf("%w: max_order must be positive, got %d", predictor.ErrInvalidConfig, cfg.MaxOrder)
	}
	if cfg.MinOrder > cfg.MaxOrder {
		return nil, fmt.Errorf("%w: min_order %d greater than max_order %d",
			predictor.ErrInvalidConfig, cfg.MinOrder, cfg.MaxOrder)
	}
	o := applyOptions(opts)
	memoryless, known := predictor.IsMemoryless(inner)
	switch {
	case known && !memoryless:
		return nil, fmt.Errorf("ngramize: %T: %w", inner, ErrNotMemoryless)
	case !known:
		o.log.Warn("ngramize cannot verify that the inner predictor is memoryless", "inner", fmt.Sprintf("%T", inner))
	}
	return &Ngramize{
		cfg:        cfg,
		inner:      inner,
		log:        o.log,
		maxHistory: cfg.MaxOrder - 1,
		minOrder:   max(1, cfg.MinOrder),
		unkScore:   mathutil.NegInf,
	}, nil
}

// Inner returns the wrapped predictor.
func (ng *Ngramize) Inner() predictor.Predictor {
	return ng.inner
}

// SetSentenceID forwards id to the inner predictor.
func (ng *Ngramize) SetSentenceID(id int) {
	ng.inner.SetSentenceID(id)
}

// Initialize runs the greedy pass over the inner predictor. UNK is consumed
// at every step because the inner predictor ignores the token. The pass
// stops after the first step whose best token is EOS or after
// MaxLenFactor*len(src)+1 steps.
func (ng *Ngramize) Initialize(ctx context.Context, src []int) error {
	if err := ng.inner.Initialize(ctx, src); err != nil {
		return err
	}
	ng.scores = ng.scores[:0]
	ng.unkScores = ng.unkScores[:0]
	maxLen := ng.cfg.MaxLenFactor * len(src)
	trg := -1
	steps := 0
	for trg != vocab.EOS && steps <= maxLen {
		if err := ctx.Err(); err != nil {
			return err
		}
		post := ng.inner.PredictNext()
		if best, ok := predictor.ArgMax(post); ok {
			trg = best
		}
		ng.scores = append(ng.scores, predictor.Clone(post))
		ng.unkScores = append(ng.unkScores, ng.inner.UnkProbability(post))
		ng.inner.Consume(vocab.UNK)
		steps++
	}
	ng.log.Debug("ngramize greedy pass", "steps", steps, "reached_eos", trg == vocab.EOS)
	ng.history = nil
	ng.unkScore = mathutil.NegInf
	return nil
}

// Steps returns the length of the recorded greedy pass.
func (ng *Ngramize) Steps() int {
	return len(ng.scores)
}

// alignment is the score of the history at one position of the greedy pass:
// acc is the log-probability of the history tokens, post and unk the
// recorded scores of the position that follows.
type alignment struct {
	acc  float64
	post predictor.Posterior
	unk  float64
}

// PredictNext combines, for each order k in [MinOrder-1, len(history)], the
// alignments of the last k history tokens with the greedy pass via
// log-sum-exp. Orders are combined the same way.
func (ng *Ngramize) PredictNext() predictor.Posterior {
	post, unk := ng.combine()
	ng.unkScore = unk
	return post
}

func (ng *Ngramize) combine() (predictor.Posterior, float64) {
	var (
		orderPosts []predictor.Posterior
		orderUnks  []float64
	)
	for k := 0; k <= len(ng.history); k++ {
		if k+1 < ng.minOrder {
			continue
		}
		aligned := ng.align(ng.history[len(ng.history)-k:])
		if len(aligned) == 0 {
			continue
		}
		post, unk := logSumExpPosteriors(aligned)
		orderPosts = append(orderPosts, post)
		orderUnks = append(orderUnks, unk)
	}
	if len(orderPosts) == 0 {
		return predictor.Posterior{}, 0.0
	}
	aligned := make([]alignment, len(orderPosts))
	for i := range orderPosts {
		aligned[i] = alignment{post: orderPosts[i], unk: orderUnks[i]}
	}
	return logSumExpPosteriors(aligned)
}

// align places hist at every position of the greedy pass that leaves room
// for the token that follows it.
func (ng *Ngramize) align(hist []int) []alignment {
	var out []alignment
	for pos := 0; pos+len(hist) < len(ng.scores); pos++ {
		acc := 0.0
		for i, w := range hist {
			acc += predictor.Lookup(ng.scores[pos+i], w, ng.unkScores[pos+i])
		}
		next := pos + len(hist)
		out = append(out, alignment{acc: acc, post: ng.scores[next], unk: ng.unkScores[next]})
	}
	return out
}

// logSumExpPosteriors sums the alignments in probability space. An id absent
// from one alignment contributes that alignment's unk score.
func logSumExpPosteriors(aligned []alignment) (predictor.Posterior, float64) {
	ids := make(map[int]struct{})
	for _, a := range aligned {
		for id := range a.post {
			ids[id] = struct{}{}
		}
	}
	terms := make([]float64, len(aligned))
	for i, a := range aligned {
		terms[i] = a.acc + a.unk
	}
	unk := mathutil.LogSumExp(terms)
	post := make(predictor.Posterior, len(ids))
	for id := range ids {
		for i, a := range aligned {
			terms[i] = a.acc + predictor.Lookup(a.post, id, a.unk)
		}
		post[id] = mathutil.LogSumExp(terms)
	}
	return post, unk
}

// UnkProbability returns the combined unk score computed by the last
// PredictNext.
func (ng *Ngramize) UnkProbability(predictor.Posterior) float64 {
	return ng.unkScore
}

// Consume appends word to the n-gram history.
func (ng *Ngramize) Consume(word int) {
	if ng.maxHistory <= 0 {
		return
	}
	h := append(ng.history, word)
	if len(h) > ng.maxHistory {
		h = h[len(h)-ng.maxHistory:]
	}
	ng.history = h
}

// State implements predictor.Predictor.
func (ng *Ngramize) State() predictor.State {
	return NgramizeState{History: slices.Clone(ng.history), UnkScore: ng.unkScore}
}

// SetState implements predictor.Predictor.
func (ng *Ngramize) SetState(s predictor.State) error {
	st, ok := s.(NgramizeState)
	if !ok {
		return fmt.Errorf("ngramize: %w: %T", predictor.ErrStateType, s)
	}
	ng.history = slices.Clone(st.History)
	ng.unkScore = st.UnkScore
	return nil
}

// IsEqual compares histories. The unk score is a function of the history.
func (ng *Ngramize) IsEqual(a, b predictor.State) bool {
	sa, okA := a.(NgramizeState)
	sb, okB := b.(NgramizeState)
	return okA && okB && slices.Equal(sa.History, sb.History)
}

// Memoryless reports false: scores depend on the n-gram history.
func (ng *Ngramize) Memoryless() bool { return false }

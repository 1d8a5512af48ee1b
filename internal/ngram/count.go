package ngram

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/trie"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// CountConfig configures Count.
type CountConfig struct {
	// Path is the n-gram posterior file. Every %d is replaced with the
	// 1-based sentence index.
	Path string
	// Order keeps only n-grams of this order if positive.
	Order int
	// DiscountFactor multiplies the score of an n-gram each time it is
	// consumed. Negative values disable discounting.
	DiscountFactor float64
}

// DefaultCountConfig counts n-grams of all orders without discounting.
func DefaultCountConfig(path string) CountConfig {
	return CountConfig{Path: path, DiscountFactor: -1}
}

// Count scores a hypothesis with the sum of the posteriors of all n-grams it
// contains. Posteriors are reloaded from a per-sentence file at every
// Initialize.
type Count struct {
	predictor.Base

	cfg CountConfig
	log logger.Logger

	table     *Table
	history   []int
	discounts *trie.Trie[map[int]float64]
}

// CountState is the snapshot type of Count.
type CountState struct {
	History []int `json:"history"`
	// Discounts holds the accumulated discount factors per context and
	// word. It is nil when discounting is disabled.
	Discounts *trie.Trie[map[int]float64] `json:"-"`
}

// NewCount creates an n-gram count predictor. Nothing is loaded before the
// first Initialize.
func NewCount(cfg CountConfig, opts ...Option) (*Count, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: ngramc needs a posterior file", predictor.ErrInvalidConfig)
	}
	if cfg.Order < 0 {
		cfg.Order = 0
	}
	o := applyOptions(opts)
	return &Count{
		cfg:   cfg,
		log:   o.log,
		table: &Table{Contexts: trie.New[map[int]float64]()},
	}, nil
}

func (c *Count) discounting() bool {
	return c.cfg.DiscountFactor >= 0
}

// Initialize loads the posteriors of the current sentence and resets the
// history to GO.
func (c *Count) Initialize(ctx context.Context, _ []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := vocab.SentencePath(c.cfg.Path, c.SentenceID())
	table, err := LoadPosteriors(path, c.cfg.Order)
	if err != nil {
		return fmt.Errorf("ngramc: %w", err)
	}
	c.log.Debug("loaded n-gram posteriors", "path", path, "sentence", c.SentenceID(),
		"entries", table.Entries, "max_history", table.MaxHistoryLen)
	c.table = table
	c.history = []int{vocab.GO}
	c.discounts = nil
	if c.discounting() {
		c.discounts = trie.New[map[int]float64]()
	}
	return nil
}

// Table returns the posteriors of the current sentence.
func (c *Count) Table() *Table {
	return c.table
}

// PredictNext sums the scores of every suffix of the history that is a
// known context, longest first.
func (c *Count) PredictNext() predictor.Posterior {
	post := make(predictor.Posterior)
	for i := 0; i <= len(c.history); i++ {
		ctx := c.history[i:]
		scores := c.table.Scores(ctx)
		if len(scores) == 0 {
			continue
		}
		var factors map[int]float64
		if c.discounting() {
			factors, _ = c.discounts.Get(ctx)
		}
		for w, score := range scores {
			post[w] += predictor.Lookup(factors, w, 1.0) * score
		}
	}
	return post
}

// UnkProbability is always 0: tokens without n-gram posteriors are neither
// rewarded nor penalized.
func (c *Count) UnkProbability(predictor.Posterior) float64 {
	return 0.0
}

// Consume discounts every (context, word) pair that PredictNext just scored
// and appends word to the history, keeping at most MaxHistoryLen tokens.
func (c *Count) Consume(word int) {
	if c.discounting() {
		for i := 0; i <= len(c.history); i++ {
			ctx := c.history[i:]
			factors, ok := c.discounts.Get(ctx)
			if !ok {
				c.discounts.Add(ctx, map[int]float64{word: c.cfg.DiscountFactor})
				continue
			}
			factors[word] = predictor.Lookup(factors, word, 1.0) * c.cfg.DiscountFactor
		}
	}
	h := append(c.history, word)
	if n := c.table.MaxHistoryLen; len(h) > n {
		h = h[len(h)-n:]
	}
	c.history = h
}

// State implements predictor.Predictor.
func (c *Count) State() predictor.State {
	st := CountState{History: slices.Clone(c.history)}
	if c.discounts != nil {
		st.Discounts = c.discounts.Clone(cloneScores)
	}
	return st
}

// SetState implements predictor.Predictor.
func (c *Count) SetState(s predictor.State) error {
	st, ok := s.(CountState)
	if !ok {
		return fmt.Errorf("ngramc: %w: %T", predictor.ErrStateType, s)
	}
	c.history = slices.Clone(st.History)
	c.discounts = nil
	if st.Discounts != nil {
		c.discounts = st.Discounts.Clone(cloneScores)
	}
	return nil
}

// IsEqual compares histories by their effect on future scores. With
// discounting enabled the discount factors must match as well.
func (c *Count) IsEqual(a, b predictor.State) bool {
	sa, okA := a.(CountState)
	sb, okB := b.(CountState)
	if !okA || !okB {
		return false
	}
	if c.discounting() {
		return slices.Equal(sa.History, sb.History) &&
			trie.Equal(sa.Discounts, sb.Discounts, scoresEqual)
	}
	h1, h2 := sa.History, sb.History
	if slices.Equal(h1, h2) {
		return true
	}
	long, short := h1, h2
	if len(h2) > len(h1) {
		long, short = h2, h1
	}
	for n := 1; n <= len(short); n++ {
		k1, k2 := h1[len(h1)-n:], h2[len(h2)-n:]
		if slices.Equal(k1, k2) {
			continue
		}
		if c.table.Has(k1) || c.table.Has(k2) {
			return false
		}
	}
	for n := len(short) + 1; n <= len(long); n++ {
		if c.table.Has(long[len(long)-n:]) {
			return false
		}
	}
	return true
}

// Memoryless reports false: scores depend on the consumed history.
func (c *Count) Memoryless() bool { return false }

func cloneScores(m map[int]float64) map[int]float64 {
	return maps.Clone(m)
}

func scoresEqual(a, b map[int]float64) bool {
	return maps.Equal(a, b)
}

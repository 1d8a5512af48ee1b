package pipeline

import (
	"context"
	"fmt"

	"github.com/samcharles93/beamscore/internal/predictor"
)

// Member is a named, weighted predictor of a Combination.
type Member struct {
	Name string
	// Type is the pipeline type the predictor was built from, if any.
	Type      string
	Weight    float64
	Predictor predictor.Predictor
}

// Combination scores tokens with the weighted sum of its members' scores,
// the way a decoder combines predictors:
//
//	score(id) = Σ weight_i · (post_i[id] or unk_i)
//
// A Combination is not safe for concurrent use.
type Combination struct {
	members []Member
}

// NewCombination combines members in the given order.
func NewCombination(members ...Member) *Combination {
	return &Combination{members: members}
}

// Members returns the members in order.
func (c *Combination) Members() []Member {
	out := make([]Member, len(c.members))
	copy(out, c.members)
	return out
}

// Len returns the number of members.
func (c *Combination) Len() int {
	return len(c.members)
}

// Initialize sets the sentence id of every member and initializes it with
// src.
func (c *Combination) Initialize(ctx context.Context, sentenceID int, src []int) error {
	for _, m := range c.members {
		m.Predictor.SetSentenceID(sentenceID)
		if err := m.Predictor.Initialize(ctx, src); err != nil {
			return fmt.Errorf("initialize %s: %w", m.Name, err)
		}
	}
	return nil
}

// Step holds the member posteriors of one decoding step, with the unk score
// of each.
type Step struct {
	Posteriors []predictor.Posterior
	Unks       []float64
	weights    []float64
}

// Step asks every member for its next posterior.
func (c *Combination) Step() Step {
	s := Step{
		Posteriors: make([]predictor.Posterior, len(c.members)),
		Unks:       make([]float64, len(c.members)),
		weights:    make([]float64, len(c.members)),
	}
	for i, m := range c.members {
		post := m.Predictor.PredictNext()
		s.Posteriors[i] = post
		s.Unks[i] = m.Predictor.UnkProbability(post)
		s.weights[i] = m.Weight
	}
	return s
}

// MemberScore is the unweighted score member i gives token.
func (s Step) MemberScore(i, token int) float64 {
	return predictor.Lookup(s.Posteriors[i], token, s.Unks[i])
}

// Score is the combined score of token.
func (s Step) Score(token int) float64 {
	total := 0.0
	for i := range s.Posteriors {
		total += weighted(s.weights[i], s.MemberScore(i, token))
	}
	return total
}

// Combined returns the combined scores of every id some member scores
// explicitly, together with the combined score of all other ids.
func (s Step) Combined() (predictor.Posterior, float64) {
	post := make(predictor.Posterior)
	for _, p := range s.Posteriors {
		for id := range p {
			if _, ok := post[id]; !ok {
				post[id] = s.Score(id)
			}
		}
	}
	unk := 0.0
	for i, u := range s.Unks {
		unk += weighted(s.weights[i], u)
	}
	return post, unk
}

// weighted keeps a zero weight from turning -Inf into NaN.
func weighted(w, score float64) float64 {
	if w == 0 {
		return 0
	}
	return w * score
}

// Consume feeds token to every member.
func (c *Combination) Consume(token int) {
	for _, m := range c.members {
		m.Predictor.Consume(token)
	}
}

// States snapshots every member.
func (c *Combination) States() []predictor.State {
	states := make([]predictor.State, len(c.members))
	for i, m := range c.members {
		states[i] = m.Predictor.State()
	}
	return states
}

// SetStates restores the snapshots taken by States.
func (c *Combination) SetStates(states []predictor.State) error {
	if len(states) != len(c.members) {
		return fmt.Errorf("%w: got %d states for %d predictors", predictor.ErrStateType, len(states), len(c.members))
	}
	for i, m := range c.members {
		if err := m.Predictor.SetState(states[i]); err != nil {
			return fmt.Errorf("restore %s: %w", m.Name, err)
		}
	}
	return nil
}

// IsEqual reports whether every member considers its snapshots equal.
func (c *Combination) IsEqual(a, b []predictor.State) bool {
	if len(a) != len(c.members) || len(b) != len(c.members) {
		return false
	}
	for i, m := range c.members {
		if !m.Predictor.IsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

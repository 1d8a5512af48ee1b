// Package predictor defines the contract between incremental scorers and the
// beam-search decoder that drives them.
//
// The decoder calls SetSentenceID and Initialize once per source sentence,
// then alternates PredictNext/UnkProbability (to score candidates) with
// Consume (to extend the hypothesis). State, SetState and IsEqual let the
// decoder fork and merge hypotheses while the heavy resources of a predictor
// (tries, loaded tables) stay shared and read-only.
//
// Predictors are not safe for concurrent use.
package predictor

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig reports a construction-time configuration error.
	ErrInvalidConfig = errors.New("invalid predictor configuration")
	// ErrStateType reports a snapshot produced by a different predictor kind.
	ErrStateType = errors.New("state of wrong type")
	// ErrSentenceRange reports a sentence id beyond a per-sentence table.
	ErrSentenceRange = errors.New("sentence id out of range")
)

// Posterior maps target vocabulary ids to log-probabilities. Ids missing
// from a posterior are scored by the predictor's UnkProbability.
//
// Callers must treat a returned Posterior as read-only: predictors may hand
// out a map they keep for later steps.
type Posterior map[int]float64

// State is an opaque snapshot of a predictor's per-sentence progress. Each
// predictor kind defines its own concrete snapshot type.
type State any

// Predictor is an incremental scorer over a fixed target vocabulary.
type Predictor interface {
	// Initialize resets all per-sentence state for the source sentence src.
	// It is the only call that may block on file I/O.
	Initialize(ctx context.Context, src []int) error
	// PredictNext returns the scores for the next target token.
	PredictNext() Posterior
	// UnkProbability is the score of any id absent from post, where post
	// is the value most recently returned by PredictNext.
	UnkProbability(post Posterior) float64
	// Consume extends the hypothesis by token.
	Consume(token int)
	// State returns a snapshot that later Consume calls do not modify.
	State() State
	// SetState restores a snapshot obtained from State.
	SetState(s State) error
	// IsEqual reports whether two snapshots are guaranteed to produce the
	// same future scores. False negatives are allowed, false positives are not.
	IsEqual(a, b State) bool
	// SetSentenceID selects the 0-based index of the sentence about to be
	// initialized, for predictors backed by per-sentence resources.
	SetSentenceID(id int)
}

// Memoryless is implemented by predictors that can state whether their
// PredictNext output is independent of the tokens passed to Consume.
type Memoryless interface {
	Memoryless() bool
}

// IsMemoryless reports what p declares about itself. known is false when p
// does not implement Memoryless.
func IsMemoryless(p Predictor) (memoryless, known bool) {
	m, ok := p.(Memoryless)
	if !ok {
		return false, false
	}
	return m.Memoryless(), true
}

// Base carries the sentence id for predictors that need it. Embed it to get
// SetSentenceID.
type Base struct {
	sentenceID int
}

// SetSentenceID implements Predictor.
func (b *Base) SetSentenceID(id int) {
	b.sentenceID = id
}

// SentenceID returns the id set by SetSentenceID.
func (b *Base) SentenceID() int {
	return b.sentenceID
}

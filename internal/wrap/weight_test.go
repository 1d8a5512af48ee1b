package wrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samcharles93/beamscore/internal/length"
	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// fixed returns the same posterior at every step and counts calls.
type fixed struct {
	predictor.Base
	post     predictor.Posterior
	consumed []int
}

func (f *fixed) Initialize(context.Context, []int) error {
	f.consumed = nil
	return nil
}

func (f *fixed) PredictNext() predictor.Posterior { return f.post }

func (f *fixed) UnkProbability(predictor.Posterior) float64 { return -3 }

func (f *fixed) Consume(token int) { f.consumed = append(f.consumed, token) }

func (f *fixed) State() predictor.State { return len(f.consumed) }

func (f *fixed) SetState(s predictor.State) error {
	n, ok := s.(int)
	if !ok {
		return predictor.ErrStateType
	}
	f.consumed = f.consumed[:n]
	return nil
}

func (f *fixed) IsEqual(a, b predictor.State) bool { return a == b }

func TestWeightNonTerminalRange(t *testing.T) {
	t.Parallel()
	inner := &fixed{post: predictor.Posterior{vocab.UNK: -1, vocab.EOS: -2, 4: -2, 7: -4, 12: -1}}
	w, err := NewWeightNonTerminal(inner, WeightConfig{
		PenaltyFactor: 2,
		MinTerminalID: 5,
		MaxTerminalID: 10,
		VocabSize:     20,
	})
	if err != nil {
		t.Fatalf("NewWeightNonTerminal: %v", err)
	}
	want := predictor.Posterior{vocab.UNK: -1, vocab.EOS: -2, 4: -4, 7: -4, 12: -2}
	if got := w.PredictNext(); !reflect.DeepEqual(got, want) {
		t.Fatalf("PredictNext = %v, want %v", got, want)
	}
	if inner.post[4] != -2 {
		t.Fatal("inner posterior was modified")
	}
	if w.Factor(vocab.EOS) != 1 || w.Factor(vocab.UNK) != 1 || w.Factor(7) != 1 || w.Factor(19) != 2 {
		t.Fatal("unexpected factors")
	}
}

func TestWeightNonTerminalIDSources(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nt.ids")
	if err := os.WriteFile(path, []byte("7\n2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	inner := &fixed{post: predictor.Posterior{vocab.EOS: -2, 4: -2, 7: -4}}

	fromFile, err := NewWeightNonTerminal(inner, WeightConfig{PenaltyFactor: 0.5, NonTerminalIDsFile: path})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fromFile.PredictNext(), (predictor.Posterior{vocab.EOS: -2, 4: -2, 7: -2}); !reflect.DeepEqual(got, want) {
		t.Fatalf("file ids: PredictNext = %v, want %v", got, want)
	}

	explicit, err := NewWeightNonTerminal(inner, WeightConfig{PenaltyFactor: 3, NonTerminalIDs: []int{4}, NonTerminalIDsFile: path})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := explicit.PredictNext(), (predictor.Posterior{vocab.EOS: -2, 4: -6, 7: -4}); !reflect.DeepEqual(got, want) {
		t.Fatalf("explicit ids: PredictNext = %v, want %v", got, want)
	}

	if _, err := NewWeightNonTerminal(inner, WeightConfig{NonTerminalIDsFile: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatal("missing id file should fail")
	}
	if _, err := NewWeightNonTerminal(nil, DefaultWeightConfig()); !errors.Is(err, predictor.ErrInvalidConfig) {
		t.Fatalf("nil inner err = %v", err)
	}
}

func TestWeightNonTerminalDelegates(t *testing.T) {
	t.Parallel()
	inner := &fixed{post: predictor.Posterior{5: -1}}
	w, err := NewWeightNonTerminal(inner, DefaultWeightConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Initialize(context.Background(), []int{3}); err != nil {
		t.Fatal(err)
	}
	w.SetSentenceID(6)
	w.Consume(5)
	w.Consume(8)
	if !reflect.DeepEqual(inner.consumed, []int{5, 8}) || inner.SentenceID() != 6 {
		t.Fatalf("inner saw consumed=%v sentence=%d", inner.consumed, inner.SentenceID())
	}
	if got := w.UnkProbability(nil); got != -3 {
		t.Fatalf("unk = %f, want -3", got)
	}
	s := w.State()
	w.Consume(9)
	if err := w.SetState(s); err != nil {
		t.Fatal(err)
	}
	if len(inner.consumed) != 2 || !w.IsEqual(s, w.State()) {
		t.Fatal("state was not passed through")
	}
	if w.Memoryless() {
		t.Fatal("undeclared inner reported memoryless")
	}
}

func TestWeightNonTerminalMemoryless(t *testing.T) {
	t.Parallel()
	wc, err := length.NewWordCount(length.DefaultWordCountConfig())
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWeightNonTerminal(wc, DefaultWeightConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !w.Memoryless() {
		t.Fatal("wrapped word count should be memoryless")
	}
}

package ngram

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// scripted returns a fixed posterior per step, independent of the consumed
// tokens.
type scripted struct {
	predictor.Base
	steps []predictor.Posterior
	unks  []float64
	pos   int
}

func (s *scripted) Initialize(context.Context, []int) error {
	s.pos = 0
	return nil
}

func (s *scripted) PredictNext() predictor.Posterior {
	return s.steps[min(s.pos, len(s.steps)-1)]
}

func (s *scripted) UnkProbability(predictor.Posterior) float64 {
	return s.unks[min(s.pos, len(s.unks)-1)]
}

func (s *scripted) Consume(int) { s.pos++ }

func (s *scripted) State() predictor.State { return s.pos }

func (s *scripted) SetState(st predictor.State) error {
	s.pos = st.(int)
	return nil
}

func (s *scripted) IsEqual(a, b predictor.State) bool { return a == b }

func (s *scripted) Memoryless() bool { return true }

func (s *scripted) setSteps(steps []predictor.Posterior, unk float64) {
	s.steps = steps
	s.unks = make([]float64, len(steps))
	for i := range s.unks {
		s.unks[i] = unk
	}
}

// undeclared hides the Memoryless method of scripted behind one with a
// different signature, so it does not implement predictor.Memoryless.
type undeclared struct{ scripted }

func (undeclared) Memoryless() {}

func twoStepInner() *scripted {
	s := &scripted{}
	s.setSteps([]predictor.Posterior{
		{5: math.Log(0.6), 6: math.Log(0.3), vocab.EOS: math.Log(0.1)},
		{5: math.Log(0.2), 6: math.Log(0.1), vocab.EOS: math.Log(0.7)},
	}, -10)
	return s
}

func newNgramize(t *testing.T, inner predictor.Predictor, cfg NgramizeConfig, src []int) *Ngramize {
	t.Helper()
	ng, err := NewNgramize(inner, cfg)
	if err != nil {
		t.Fatalf("NewNgramize: %v", err)
	}
	if err := ng.Initialize(context.Background(), src); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return ng
}

func assertPosterior(t *testing.T, got, want predictor.Posterior) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("posterior = %v, want %v", got, want)
	}
	for id, w := range want {
		g, ok := got[id]
		if !ok || math.Abs(g-w) > 1e-9 {
			t.Fatalf("posterior[%d] = %v (present %v), want %v; full %v", id, g, ok, w, got)
		}
	}
}

func TestNgramizeConfigErrors(t *testing.T) {
	t.Parallel()
	cases := []NgramizeConfig{
		{MinOrder: 1, MaxOrder: 0},
		{MinOrder: 3, MaxOrder: 2},
	}
	for _, cfg := range cases {
		if _, err := NewNgramize(twoStepInner(), cfg); !errors.Is(err, predictor.ErrInvalidConfig) {
			t.Errorf("%+v: err = %v, want ErrInvalidConfig", cfg, err)
		}
	}
	if _, err := NewNgramize(nil, NgramizeConfig{MaxOrder: 1}); !errors.Is(err, predictor.ErrInvalidConfig) {
		t.Errorf("nil inner: err = %v", err)
	}
}

func TestNgramizeRejectsStatefulInner(t *testing.T) {
	t.Parallel()
	count, err := NewCount(DefaultCountConfig("unused.%d"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewNgramize(count, NgramizeConfig{MaxOrder: 2}); !errors.Is(err, ErrNotMemoryless) {
		t.Fatalf("err = %v, want ErrNotMemoryless", err)
	}
	var _ predictor.Predictor = &undeclared{}
	if _, err := NewNgramize(&undeclared{}, NgramizeConfig{MaxOrder: 2}); err != nil {
		t.Fatalf("undeclared inner should only warn: %v", err)
	}
}

func TestNgramizeGreedyPass(t *testing.T) {
	t.Parallel()
	ng := newNgramize(t, twoStepInner(), NgramizeConfig{MinOrder: 1, MaxOrder: 2, MaxLenFactor: 2}, []int{7, 8, 9})
	if ng.Steps() != 2 {
		t.Fatalf("greedy pass stopped after %d steps, want 2 (EOS at step 2)", ng.Steps())
	}

	never := &scripted{}
	never.setSteps([]predictor.Posterior{{5: 0}}, -1)
	ng = newNgramize(t, never, NgramizeConfig{MaxOrder: 1, MaxLenFactor: 1}, []int{7, 8})
	if ng.Steps() != 3 {
		t.Fatalf("bounded greedy pass took %d steps, want 3", ng.Steps())
	}
}

func TestNgramizeScores(t *testing.T) {
	t.Parallel()
	ng := newNgramize(t, twoStepInner(), NgramizeConfig{MinOrder: 1, MaxOrder: 2, MaxLenFactor: 2}, []int{7, 8, 9})

	// Unigrams sum over both positions.
	post := ng.PredictNext()
	assertPosterior(t, post, predictor.Posterior{
		5:         math.Log(0.8),
		6:         math.Log(0.4),
		vocab.EOS: math.Log(0.8),
	})
	if got, want := ng.UnkProbability(post), -10+math.Log(2); math.Abs(got-want) > 1e-9 {
		t.Fatalf("unk = %f, want %f", got, want)
	}

	// With history [5] the bigram can only start at position 0.
	ng.Consume(5)
	post = ng.PredictNext()
	assertPosterior(t, post, predictor.Posterior{
		5:         math.Log(0.8 + 0.6*0.2),
		6:         math.Log(0.4 + 0.6*0.1),
		vocab.EOS: math.Log(0.8 + 0.6*0.7),
	})
	if got, want := ng.UnkProbability(post), -10+math.Log(2.6); math.Abs(got-want) > 1e-9 {
		t.Fatalf("unk = %f, want %f", got, want)
	}
}

func TestNgramizeUsesTrailingHistory(t *testing.T) {
	t.Parallel()
	// The bigram is scored with the most recent token. The trigram [6 5 x]
	// does not fit into the two step pass.
	ng := newNgramize(t, twoStepInner(), NgramizeConfig{MinOrder: 2, MaxOrder: 3, MaxLenFactor: 2}, []int{7, 8, 9})
	ng.Consume(6)
	ng.Consume(5)
	post := ng.PredictNext()
	assertPosterior(t, post, predictor.Posterior{
		5:         math.Log(0.6 * 0.2),
		6:         math.Log(0.6 * 0.1),
		vocab.EOS: math.Log(0.6 * 0.7),
	})
}

func TestNgramizeNoQualifyingOrder(t *testing.T) {
	t.Parallel()
	ng := newNgramize(t, twoStepInner(), NgramizeConfig{MinOrder: 2, MaxOrder: 3, MaxLenFactor: 2}, []int{7})
	post := ng.PredictNext()
	if len(post) != 0 {
		t.Fatalf("PredictNext = %v, want empty", post)
	}
	if got := ng.UnkProbability(post); got != 0 {
		t.Fatalf("unk = %f, want 0", got)
	}
}

func TestNgramizeStateRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := NgramizeConfig{MinOrder: 1, MaxOrder: 3, MaxLenFactor: 2}
	ng := newNgramize(t, twoStepInner(), cfg, []int{7, 8, 9})
	ng.Consume(5)
	ng.PredictNext()
	snap := ng.State()
	want := ng.PredictNext()
	wantUnk := ng.UnkProbability(want)

	ng.Consume(6)
	ng.PredictNext()
	if err := ng.SetState(snap); err != nil {
		t.Fatal(err)
	}
	if got := ng.UnkProbability(nil); got != wantUnk {
		t.Fatalf("restored unk = %f, want %f", got, wantUnk)
	}
	if got := ng.PredictNext(); !reflect.DeepEqual(got, want) {
		t.Fatalf("PredictNext after restore = %v, want %v", got, want)
	}

	fresh := newNgramize(t, twoStepInner(), cfg, []int{7, 8, 9})
	if err := fresh.SetState(snap); err != nil {
		t.Fatal(err)
	}
	if got := fresh.PredictNext(); !reflect.DeepEqual(got, want) {
		t.Fatalf("fresh PredictNext = %v, want %v", got, want)
	}
	if !ng.IsEqual(snap, snap) || ng.IsEqual(snap, NgramizeState{History: []int{6}}) {
		t.Fatal("IsEqual mismatch")
	}
	if err := ng.SetState(CountState{}); !errors.Is(err, predictor.ErrStateType) {
		t.Fatalf("foreign state err = %v", err)
	}
}

func TestNgramizeForwardsSentenceID(t *testing.T) {
	t.Parallel()
	inner := twoStepInner()
	ng, err := NewNgramize(inner, NgramizeConfig{MaxOrder: 1})
	if err != nil {
		t.Fatal(err)
	}
	ng.SetSentenceID(4)
	if inner.SentenceID() != 4 {
		t.Fatalf("inner sentence id = %d, want 4", inner.SentenceID())
	}
}

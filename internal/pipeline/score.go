package pipeline

import (
	"context"
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// LogProb is a log-probability that encodes infinities as the JSON strings
// "-inf" and "inf".
type LogProb float64

// MarshalJSON implements json.Marshaler.
func (lp LogProb) MarshalJSON() ([]byte, error) {
	f := float64(lp)
	switch {
	case math.IsInf(f, -1):
		return []byte(`"-inf"`), nil
	case math.IsInf(f, 1):
		return []byte(`"inf"`), nil
	case math.IsNaN(f):
		return []byte(`"nan"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// StepScore is the score of one forced target token.
type StepScore struct {
	Token int     `json:"token"`
	Score LogProb `json:"score"`
	// Predictors holds the unweighted member scores by member name.
	Predictors map[string]LogProb `json:"predictors"`
}

// Result is the forced decoding score of one target sentence.
type Result struct {
	SentenceID int         `json:"sentence_id"`
	Steps      []StepScore `json:"steps"`
	Total      LogProb     `json:"total"`
	// Totals holds the unweighted sum of each member's scores.
	Totals map[string]LogProb `json:"totals"`
}

// Score initializes c for sentence sentenceID with src and forces it through
// trg, appending EOS if trg does not end with it. Tokens after the first EOS
// are ignored.
func Score(ctx context.Context, c *Combination, sentenceID int, src, trg []int) (*Result, error) {
	if err := c.Initialize(ctx, sentenceID, src); err != nil {
		return nil, err
	}
	tokens := make([]int, 0, len(trg)+1)
	for _, tok := range trg {
		tokens = append(tokens, tok)
		if tok == vocab.EOS {
			break
		}
	}
	if len(tokens) == 0 || tokens[len(tokens)-1] != vocab.EOS {
		tokens = append(tokens, vocab.EOS)
	}

	res := &Result{
		SentenceID: sentenceID,
		Steps:      make([]StepScore, 0, len(tokens)),
		Totals:     make(map[string]LogProb, c.Len()),
	}
	total := 0.0
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := c.Step()
		score := step.Score(tok)
		parts := make(map[string]LogProb, c.Len())
		for i, m := range c.members {
			s := step.MemberScore(i, tok)
			parts[m.Name] = LogProb(s)
			res.Totals[m.Name] += LogProb(s)
		}
		res.Steps = append(res.Steps, StepScore{Token: tok, Score: LogProb(score), Predictors: parts})
		total += score
		c.Consume(tok)
	}
	res.Total = LogProb(total)
	return res, nil
}

// EncodeStates encodes the current member snapshots as a JSON object keyed
// by member name, for inspection.
func EncodeStates(c *Combination) ([]byte, error) {
	states := make(map[string]predictor.State, c.Len())
	for i, s := range c.States() {
		states[c.members[i].Name] = s
	}
	return json.Marshal(states)
}

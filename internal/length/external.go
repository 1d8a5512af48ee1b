package length

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/mathutil"
	"github.com/samcharles93/beamscore/internal/predictor"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// ErrNoLengths is returned when a sentence has an empty length distribution.
var ErrNoLengths = errors.New("no target lengths")

// LoadLengths reads a length file: one line per sentence of blank separated
// "<length>" or "<length>:<score>" entries. A bare length scores 0.
func LoadLengths(path string) ([]map[int]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open length file: %w", err)
	}
	defer f.Close()
	table, err := ParseLengths(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ParseLengths parses the length file format from r.
func ParseLengths(r io.Reader) ([]map[int]float64, error) {
	var table []map[int]float64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		scores := make(map[int]float64)
		for _, pair := range strings.Fields(scanner.Text()) {
			lenStr, scoreStr, hasScore := strings.Cut(pair, ":")
			n, err := strconv.Atoi(lenStr)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w: length %q", lineNo, vocab.ErrMalformed, lenStr)
			}
			score := 0.0
			if hasScore {
				score, err = strconv.ParseFloat(scoreStr, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w: score %q", lineNo, vocab.ErrMalformed, scoreStr)
				}
			}
			scores[n] = score
		}
		table = append(table, scores)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// ExternalLength adds an externally supplied per-sentence length score to
// EOS. Lengths missing from the table cannot end the hypothesis, and the
// hypothesis cannot grow beyond the longest tabulated length.
//
// Note that a hypothesis whose length is untabulated but not below the
// maximum has no legal continuation at all.
type ExternalLength struct {
	predictor.Base

	table []map[int]float64
	log   logger.Logger

	cur       map[int]float64
	maxLength int
	consumed  int
}

// ExternalLengthState is the snapshot type of ExternalLength.
type ExternalLengthState struct {
	Consumed int `json:"consumed"`
}

// NewExternalLength loads the length file at path.
func NewExternalLength(path string, opts ...Option) (*ExternalLength, error) {
	table, err := LoadLengths(path)
	if err != nil {
		return nil, err
	}
	el := NewExternalLengthFromTable(table, opts...)
	el.log.Debug("loaded length distributions", "path", path, "sentences", len(table))
	return el, nil
}

// NewExternalLengthFromTable uses an already parsed length table.
func NewExternalLengthFromTable(table []map[int]float64, opts ...Option) *ExternalLength {
	o := applyOptions(opts)
	return &ExternalLength{table: table, log: o.log}
}

// Initialize selects the distribution of the current sentence.
func (el *ExternalLength) Initialize(ctx context.Context, _ []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := el.SentenceID()
	if id < 0 || id >= len(el.table) {
		return fmt.Errorf("extlength: sentence %d of %d: %w", id, len(el.table), predictor.ErrSentenceRange)
	}
	scores := el.table[id]
	if len(scores) == 0 {
		return fmt.Errorf("extlength: sentence %d: %w", id, ErrNoLengths)
	}
	el.cur = scores
	el.maxLength = 0
	first := true
	for n := range scores {
		if first || n > el.maxLength {
			el.maxLength = n
			first = false
		}
	}
	el.consumed = 0
	return nil
}

// MaxLength returns the longest tabulated length of the current sentence.
func (el *ExternalLength) MaxLength() int {
	return el.maxLength
}

// PredictNext scores EOS with the tabulated score of the current length.
func (el *ExternalLength) PredictNext() predictor.Posterior {
	if score, ok := el.cur[el.consumed]; ok {
		return predictor.Posterior{vocab.EOS: score}
	}
	return predictor.Posterior{vocab.EOS: mathutil.NegInf}
}

// UnkProbability allows other tokens only below the maximum length.
func (el *ExternalLength) UnkProbability(predictor.Posterior) float64 {
	if el.consumed < el.maxLength {
		return 0.0
	}
	return mathutil.NegInf
}

// Consume increases the hypothesis length.
func (el *ExternalLength) Consume(int) {
	el.consumed++
}

// State implements predictor.Predictor.
func (el *ExternalLength) State() predictor.State {
	return ExternalLengthState{Consumed: el.consumed}
}

// SetState implements predictor.Predictor.
func (el *ExternalLength) SetState(s predictor.State) error {
	st, ok := s.(ExternalLengthState)
	if !ok {
		return fmt.Errorf("extlength: %w: %T", predictor.ErrStateType, s)
	}
	el.consumed = st.Consumed
	return nil
}

// IsEqual compares hypothesis lengths.
func (el *ExternalLength) IsEqual(a, b predictor.State) bool {
	sa, okA := a.(ExternalLengthState)
	sb, okB := b.(ExternalLengthState)
	return okA && okB && sa == sb
}

// Memoryless reports true.
func (el *ExternalLength) Memoryless() bool { return true }

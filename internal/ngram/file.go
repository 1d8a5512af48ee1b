// Package ngram implements n-gram based predictors: Count scores hypotheses
// with n-gram posteriors read from per-sentence files, and Ngramize derives
// n-gram scores from a memoryless predictor.
package ngram

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samcharles93/beamscore/internal/trie"
	"github.com/samcharles93/beamscore/internal/vocab"
)

// Table holds the n-gram posteriors of one sentence, keyed by context.
type Table struct {
	// Contexts maps a context (all but the last token of an n-gram) to the
	// scores of the tokens that may follow it.
	Contexts *trie.Trie[map[int]float64]
	// MaxHistoryLen is the longest context in the table.
	MaxHistoryLen int
	// Entries counts the n-grams kept.
	Entries int
}

// Scores returns the follow-up scores of context, or nil.
func (t *Table) Scores(context []int) map[int]float64 {
	scores, _ := t.Contexts.Get(context)
	return scores
}

// Has reports whether context has at least one follow-up score.
func (t *Table) Has(context []int) bool {
	return len(t.Scores(context)) > 0
}

// LoadPosteriors reads an n-gram posterior file. If order is positive only
// n-grams of exactly that order are kept.
func LoadPosteriors(path string, order int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open n-gram file: %w", err)
	}
	defer f.Close()
	table, err := ParsePosteriors(f, order)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ParsePosteriors parses lines of the form "<tok1> ... <tokN> : <score>".
// Blank lines are skipped. N-grams ending in GO are dropped since GO is never
// predicted.
func ParsePosteriors(r io.Reader, order int) (*Table, error) {
	table := &Table{Contexts: trie.New[map[int]float64]()}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ngramStr, scoreStr, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: %w: missing ':'", lineNo, vocab.ErrMalformed)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(scoreStr), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: score %q", lineNo, vocab.ErrMalformed, scoreStr)
		}
		fields := strings.Fields(ngramStr)
		if len(fields) == 0 {
			return nil, fmt.Errorf("line %d: %w: empty n-gram", lineNo, vocab.ErrMalformed)
		}
		words := make([]int, len(fields))
		for i, field := range fields {
			if words[i], err = strconv.Atoi(field); err != nil {
				return nil, fmt.Errorf("line %d: %w: token %q", lineNo, vocab.ErrMalformed, field)
			}
		}
		if order > 0 && len(words) != order {
			continue
		}
		hist, last := words[:len(words)-1], words[len(words)-1]
		if last == vocab.GO {
			continue
		}
		table.MaxHistoryLen = max(table.MaxHistoryLen, len(hist))
		if scores, ok := table.Contexts.Get(hist); ok {
			scores[last] = score
		} else {
			table.Contexts.Add(hist, map[int]float64{last: score})
		}
		table.Entries++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

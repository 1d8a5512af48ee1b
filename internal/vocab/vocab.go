// Package vocab holds the reserved target vocabulary ids shared by every
// predictor and the plain-text id list format.
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Reserved ids. The decoder and all predictors must agree on these.
const (
	UNK = 0
	GO  = 1
	EOS = 2
)

// ErrMalformed is returned when a model or id file cannot be parsed.
var ErrMalformed = errors.New("malformed input")

// LoadIDs reads an id list file with one integer per line.
func LoadIDs(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open id list: %w", err)
	}
	defer f.Close()
	ids, err := ParseIDs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ids, nil
}

// ParseIDs parses one integer per line. Blank lines are skipped.
func ParseIDs(r io.Reader) ([]int, error) {
	var ids []int
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %q", lineNo, ErrMalformed, line)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// LoadSentences reads an indexed text file: one sentence per line, tokens
// given as whitespace-separated integer ids.
func LoadSentences(path string) ([][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sentences: %w", err)
	}
	defer f.Close()
	sents, err := ParseSentences(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sents, nil
}

// ParseSentences parses one sentence of ids per line. A blank line is an
// empty sentence, so line numbers stay aligned with sentence ids.
func ParseSentences(r io.Reader) ([][]int, error) {
	var sents [][]int
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		sent := make([]int, 0, len(fields))
		for _, tok := range fields {
			id, err := strconv.Atoi(tok)
			if err != nil || id < 0 {
				return nil, fmt.Errorf("line %d: %w: token %q", lineNo, ErrMalformed, tok)
			}
			sent = append(sent, id)
		}
		sents = append(sents, sent)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sents, nil
}

const maxLineBytes = 4 << 20

// NonTerminalIDs returns every id in [0, vocabSize) that lies outside the
// terminal span [minTerminal, maxTerminal].
func NonTerminalIDs(minTerminal, maxTerminal, vocabSize int) []int {
	ids := make([]int, 0, max(0, minTerminal)+max(0, vocabSize-maxTerminal-1))
	for id := 0; id < minTerminal && id < vocabSize; id++ {
		ids = append(ids, id)
	}
	for id := max(0, maxTerminal+1); id < vocabSize; id++ {
		ids = append(ids, id)
	}
	return ids
}

// SentencePath substitutes the 1-based index of sentence sentenceID (which is
// 0-based) for every %d in tmpl.
func SentencePath(tmpl string, sentenceID int) string {
	return strings.ReplaceAll(tmpl, "%d", strconv.Itoa(sentenceID+1))
}

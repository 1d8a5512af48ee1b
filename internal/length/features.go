package length

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// NumFeatures is the number of source sentence features used by NBLength.
const NumFeatures = 5

const punctuation = ",.:;-"

// Features describes a raw (untokenized) source sentence:
// characters, words, punctuation marks, characters per word and
// punctuation marks per word.
type Features [NumFeatures]float64

// Analyse extracts Features from one sentence. Ratios are 0 for a sentence
// without words.
func Analyse(sentence string) Features {
	nChar := float64(utf8.RuneCountInString(sentence))
	nWords := float64(len(strings.Fields(sentence)))
	nPunct := 0.0
	for _, r := range sentence {
		if strings.ContainsRune(punctuation, r) {
			nPunct++
		}
	}
	f := Features{nChar, nWords, nPunct, 0, 0}
	if nWords > 0 {
		f[3] = nChar / nWords
		f[4] = nPunct / nWords
	}
	return f
}

// LoadFeatures reads a text file with one source sentence per line.
func LoadFeatures(path string) ([]Features, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source text: %w", err)
	}
	defer f.Close()
	return ReadFeatures(f)
}

// ReadFeatures analyses every line of r.
func ReadFeatures(r io.Reader) ([]Features, error) {
	var feats []Features
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		feats = append(feats, Analyse(strings.TrimSpace(scanner.Text())))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read source text: %w", err)
	}
	return feats, nil
}

// Package feature turns raw query text into fixed-length numeric feature
// vectors for anomaly scoring and complexity estimation.
package feature

import (
	"sort"
	"strings"
	"sync/atomic"
	"unicode"

	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
)

// derivedFeatures is the number of scalar features appended after the
// vocabulary term weights: token count, average token length, punctuation
// density.
const derivedFeatures = 3

// defaultStopWords are excluded from the vocabulary unless the caller
// supplies an explicit stop-word list.
var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"this", "to", "was", "will", "with",
}

// vocabulary is an immutable snapshot of a fitted term index.
type vocabulary struct {
	index map[string]int // term -> position in the vector
}

// Extractor builds term-frequency feature vectors over a fitted vocabulary.
// Fit replaces the vocabulary atomically; Extract is pure and safe for
// concurrent use.
type Extractor struct {
	maxFeatures int
	stopWords   map[string]bool
	vocab       atomic.Pointer[vocabulary]
}

// NewExtractor creates an extractor with the given vocabulary budget.
// stopWords may be nil to use the default English list.
func NewExtractor(maxFeatures int, stopWords []string) *Extractor {
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	if stopWords == nil {
		stopWords = defaultStopWords
	}

	sw := make(map[string]bool, len(stopWords))
	for _, w := range stopWords {
		sw[strings.ToLower(w)] = true
	}

	return &Extractor{
		maxFeatures: maxFeatures,
		stopWords:   sw,
	}
}

// Dimension returns the length of every vector this extractor produces.
func (e *Extractor) Dimension() int {
	return e.maxFeatures + derivedFeatures
}

// Fitted reports whether Fit has been called.
func (e *Extractor) Fitted() bool {
	return e.vocab.Load() != nil
}

// Fit builds a vocabulary of at most maxFeatures terms from the corpus,
// keeping the most frequent non-stop-word terms. The new vocabulary is
// published atomically; extractions already in progress keep the one they
// started with.
func (e *Extractor) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return apperrors.ValidationError("corpus is empty")
	}

	counts := make(map[string]int)
	for _, text := range corpus {
		for _, tok := range Tokenize(text) {
			if e.stopWords[tok] {
				continue
			}
			counts[tok]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	// Most frequent first; ties alphabetical so re-fitting the same corpus
	// yields the same vocabulary.
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > e.maxFeatures {
		terms = terms[:e.maxFeatures]
	}

	index := make(map[string]int, len(terms))
	for i, term := range terms {
		index[term] = i
	}

	e.vocab.Store(&vocabulary{index: index})
	return nil
}

// Extract computes the feature representation of a single query. It fails
// with a NOT_FITTED error before Fit. Tokens outside the vocabulary never
// grow it; they only contribute to the derived features.
func (e *Extractor) Extract(text string) (*Features, error) {
	vocab := e.vocab.Load()
	if vocab == nil {
		return nil, apperrors.NotFittedError("feature extractor")
	}

	tokens := Tokenize(text)

	vec := make(Vector, e.Dimension())
	unknown := 0
	totalLen := 0
	for _, tok := range tokens {
		totalLen += len(tok)
		idx, ok := vocab.index[tok]
		if !ok {
			if !e.stopWords[tok] {
				unknown++
			}
			continue
		}
		vec[idx]++
	}

	// Normalize term counts to frequencies.
	if len(tokens) > 0 {
		for i := 0; i < e.maxFeatures; i++ {
			vec[i] /= float64(len(tokens))
		}
	}

	avgLen := 0.0
	if len(tokens) > 0 {
		avgLen = float64(totalLen) / float64(len(tokens))
	}

	punct := punctuationDensity(text)

	vec[e.maxFeatures] = float64(len(tokens))
	vec[e.maxFeatures+1] = avgLen
	vec[e.maxFeatures+2] = punct

	return &Features{
		Vector:        vec,
		TokenCount:    len(tokens),
		AvgTokenLen:   avgLen,
		PunctDensity:  punct,
		UnknownTokens: unknown,
	}, nil
}

// Tokenize lowercases text and splits it into alphanumeric tokens.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func punctuationDensity(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	count := 0
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r) {
			count++
		}
	}
	return float64(count) / float64(len(text))
}

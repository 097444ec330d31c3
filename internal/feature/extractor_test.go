package feature

import (
	"fmt"
	"testing"

	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
)

var fitCorpus = []string{
	"how do I configure the database connection",
	"what is the best way to cache query results",
	"explain the database index strategy",
	"how does connection pooling work",
	"cache invalidation strategies for query results",
}

func TestExtractBeforeFit(t *testing.T) {
	e := NewExtractor(10, nil)
	if _, err := e.Extract("some query"); !apperrors.IsNotFitted(err) {
		t.Errorf("expected NOT_FITTED error, got %v", err)
	}
	if e.Fitted() {
		t.Error("Fitted should be false before Fit")
	}
}

func TestFitEmptyCorpus(t *testing.T) {
	e := NewExtractor(10, nil)
	if err := e.Fit(nil); err == nil {
		t.Error("expected error fitting empty corpus")
	}
}

func TestVectorDimensionInvariant(t *testing.T) {
	e := NewExtractor(10, nil)
	if err := e.Fit(fitCorpus); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	queries := []string{
		"",
		"database",
		"a completely novel query with unseen vocabulary terms",
		"how do I configure the database connection",
	}
	for _, q := range queries {
		f, err := e.Extract(q)
		if err != nil {
			t.Fatalf("Extract(%q) failed: %v", q, err)
		}
		if len(f.Vector) != e.Dimension() {
			t.Errorf("Extract(%q) vector length %d, want %d", q, len(f.Vector), e.Dimension())
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := NewExtractor(20, nil)
	if err := e.Fit(fitCorpus); err != nil {
		t.Fatal(err)
	}

	a, err := e.Extract("how does database caching work")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Extract("how does database caching work")
	if err != nil {
		t.Fatal(err)
	}

	for i := range a.Vector {
		if a.Vector[i] != b.Vector[i] {
			t.Fatalf("vectors differ at index %d: %f vs %f", i, a.Vector[i], b.Vector[i])
		}
	}
}

func TestUnknownTokensIgnoredByVocabulary(t *testing.T) {
	e := NewExtractor(10, nil)
	if err := e.Fit(fitCorpus); err != nil {
		t.Fatal(err)
	}

	f, err := e.Extract("xylophone quasar zeppelin")
	if err != nil {
		t.Fatal(err)
	}

	// No vocabulary weight should be set by unseen terms.
	for i := 0; i < 10; i++ {
		if f.Vector[i] != 0 {
			t.Errorf("vocabulary weight %d = %f for unseen terms, want 0", i, f.Vector[i])
		}
	}
	if f.UnknownTokens != 3 {
		t.Errorf("UnknownTokens = %d, want 3", f.UnknownTokens)
	}
}

func TestStopWordsExcluded(t *testing.T) {
	e := NewExtractor(50, nil)
	corpus := []string{"the the the the database", "the the connection"}
	if err := e.Fit(corpus); err != nil {
		t.Fatal(err)
	}

	f, err := e.Extract("the")
	if err != nil {
		t.Fatal(err)
	}
	// "the" is a stop word: no vocabulary slot, and not counted unknown.
	for i := 0; i < 50; i++ {
		if f.Vector[i] != 0 {
			t.Errorf("stop word produced vocabulary weight at %d", i)
		}
	}
	if f.UnknownTokens != 0 {
		t.Errorf("stop word counted as unknown: %d", f.UnknownTokens)
	}
}

func TestRefitReplacesVocabulary(t *testing.T) {
	e := NewExtractor(5, nil)
	if err := e.Fit([]string{"alpha alpha beta"}); err != nil {
		t.Fatal(err)
	}

	before, err := e.Extract("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if before.UnknownTokens != 0 {
		t.Fatal("alpha should be in vocabulary before refit")
	}

	if err := e.Fit([]string{"gamma delta gamma"}); err != nil {
		t.Fatal(err)
	}

	after, err := e.Extract("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if after.UnknownTokens != 1 {
		t.Error("alpha should be unknown after refit on a disjoint corpus")
	}
}

func TestDerivedFeatures(t *testing.T) {
	e := NewExtractor(10, nil)
	if err := e.Fit(fitCorpus); err != nil {
		t.Fatal(err)
	}

	f, err := e.Extract("ab cdef")
	if err != nil {
		t.Fatal(err)
	}

	if f.TokenCount != 2 {
		t.Errorf("TokenCount = %d, want 2", f.TokenCount)
	}
	if f.AvgTokenLen != 3 {
		t.Errorf("AvgTokenLen = %f, want 3", f.AvgTokenLen)
	}
	if f.Vector[10] != 2 || f.Vector[11] != 3 {
		t.Errorf("derived vector slots = %f, %f", f.Vector[10], f.Vector[11])
	}
}

func TestComplexityMonotonicInLength(t *testing.T) {
	e := NewExtractor(20, nil)
	if err := e.Fit(fitCorpus); err != nil {
		t.Fatal(err)
	}

	prev := -1.0
	text := ""
	for i := 0; i < 10; i++ {
		text += fmt.Sprintf("database query %d ", i)
		f, err := e.Extract(text)
		if err != nil {
			t.Fatal(err)
		}
		c := Complexity(f)
		if c < prev {
			t.Fatalf("complexity decreased from %f to %f as query grew", prev, c)
		}
		prev = c
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"foo_bar baz-qux", []string{"foo", "bar", "baz", "qux"}},
		{"", nil},
		{"   ", nil},
	}

	for _, tt := range tests {
		got := Tokenize(tt.input)
		if len(got) != len(tt.expected) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("Tokenize(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.expected[i])
			}
		}
	}
}

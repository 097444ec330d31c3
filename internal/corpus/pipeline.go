package corpus

import (
	"sync/atomic"

	"github.com/smartroute/smart-route/internal/feature"
	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
)

// Extractor turns query text into features.
type Extractor interface {
	Extract(text string) (*feature.Features, error)
}

// Scorer assigns an anomaly score in [0, 1] to a feature vector.
type Scorer interface {
	Score(v feature.Vector) (float64, error)
}

// Pipeline holds the fitted extractor/scorer pair behind a single pointer.
// A refit publishes both at once: readers never see a new vocabulary paired
// with an ensemble trained on the old one, and a pair taken before a refit
// stays internally consistent for as long as the caller holds it.
type Pipeline struct {
	cur atomic.Pointer[fittedPair]
}

type fittedPair struct {
	extractor Extractor
	scorer    Scorer
}

// NewPipeline creates an unfitted pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Fitted reports whether a trained pair has been published.
func (p *Pipeline) Fitted() bool {
	return p.cur.Load() != nil
}

// Publish swaps in an extractor/scorer pair that were trained together:
// the scorer's ensembles expect vectors from this extractor's vocabulary.
func (p *Pipeline) Publish(extractor Extractor, scorer Scorer) {
	p.cur.Store(&fittedPair{extractor: extractor, scorer: scorer})
}

// Snapshot returns the current pair. Fails with a NOT_FITTED error before
// the first Publish.
func (p *Pipeline) Snapshot() (Extractor, Scorer, error) {
	cur := p.cur.Load()
	if cur == nil {
		return nil, nil, apperrors.NotFittedError("scoring pipeline")
	}
	return cur.extractor, cur.scorer, nil
}

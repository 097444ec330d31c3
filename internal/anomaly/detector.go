package anomaly

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/smartroute/smart-route/internal/feature"
	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
)

// Config configures the detector.
type Config struct {
	// NEstimators is the number of trees per ensemble.
	NEstimators int

	// SubsampleSize is the number of points sampled per tree.
	SubsampleSize int

	// Contamination is the expected fraction of anomalous traffic. It sets
	// the score threshold reported by Threshold.
	Contamination float64

	// Seed makes training deterministic when non-zero.
	Seed int64
}

// DefaultConfig returns the standard isolation-forest parameters.
func DefaultConfig() Config {
	return Config{
		NEstimators:   100,
		SubsampleSize: 256,
		Contamination: 0.1,
	}
}

// state is an immutable trained snapshot: per-modality sub-ensembles plus a
// union ensemble over all training data, with the contamination-derived
// score threshold.
type state struct {
	modalities map[string]*forest
	union      *forest
	threshold  float64
}

// Detector scores feature vectors against one or more historical
// populations. Fit builds a replacement snapshot off to the side and
// publishes it atomically; Score calls in flight keep the snapshot they
// loaded.
type Detector struct {
	cfg Config

	fitMu sync.Mutex // serializes fits; scoring never takes it
	st    atomic.Pointer[state]
}

// NewDetector creates an unfitted detector.
func NewDetector(cfg Config) *Detector {
	if cfg.NEstimators < 1 {
		cfg.NEstimators = DefaultConfig().NEstimators
	}
	if cfg.SubsampleSize < 2 {
		cfg.SubsampleSize = DefaultConfig().SubsampleSize
	}
	return &Detector{cfg: cfg}
}

// Fitted reports whether the detector has been trained.
func (d *Detector) Fitted() bool {
	return d.st.Load() != nil
}

// Fit trains a single ensemble on one historical population.
func (d *Detector) Fit(matrix []feature.Vector) error {
	return d.FitModalities(map[string][]feature.Vector{"": matrix})
}

// FitModalities trains one sub-ensemble per historical population plus a
// union ensemble over all of them. Populations with fewer than two points
// are folded into the union only.
func (d *Detector) FitModalities(batches map[string][]feature.Vector) error {
	d.fitMu.Lock()
	defer d.fitMu.Unlock()

	var all [][]float64
	named := make(map[string][][]float64)
	for label, vectors := range batches {
		points := make([][]float64, 0, len(vectors))
		for _, v := range vectors {
			points = append(points, v)
		}
		all = append(all, points...)
		if label != "" && len(points) >= 2 {
			named[label] = points
		}
	}

	if len(all) < 2 {
		return apperrors.ValidationError("at least two historical vectors are required to fit")
	}

	rng := rand.New(rand.NewSource(d.seed()))

	st := &state{
		modalities: make(map[string]*forest, len(named)),
		union:      buildForest(all, d.cfg.NEstimators, d.cfg.SubsampleSize, rng),
	}
	for label, points := range named {
		st.modalities[label] = buildForest(points, d.cfg.NEstimators, d.cfg.SubsampleSize, rng)
	}

	st.threshold = trainThreshold(st, all, d.cfg.Contamination)

	d.st.Store(st)
	return nil
}

func (d *Detector) seed() int64 {
	if d.cfg.Seed != 0 {
		return d.cfg.Seed
	}
	return rand.Int63()
}

// Score returns the anomaly score of a vector in [0,1]. With multiple
// fitted modalities it returns the minimum score across them: a query is
// only anomalous if it is anomalous relative to every plausible context.
// Fails with a NOT_FITTED error before Fit.
func (d *Detector) Score(v feature.Vector) (float64, error) {
	st := d.st.Load()
	if st == nil {
		return 0, apperrors.NotFittedError("anomaly detector")
	}
	return st.scoreVector(v), nil
}

// ScoreModality scores against a single named population, falling back to
// the union ensemble when the modality is unknown.
func (d *Detector) ScoreModality(v feature.Vector, modality string) (float64, error) {
	st := d.st.Load()
	if st == nil {
		return 0, apperrors.NotFittedError("anomaly detector")
	}
	if f, ok := st.modalities[modality]; ok {
		return f.score(v), nil
	}
	return st.union.score(v), nil
}

// Threshold returns the contamination-derived score above which a point is
// considered anomalous. Fails with a NOT_FITTED error before Fit.
func (d *Detector) Threshold() (float64, error) {
	st := d.st.Load()
	if st == nil {
		return 0, apperrors.NotFittedError("anomaly detector")
	}
	return st.threshold, nil
}

func (s *state) scoreVector(v feature.Vector) float64 {
	if len(s.modalities) == 0 {
		return s.union.score(v)
	}
	min := 1.0
	for _, f := range s.modalities {
		if sc := f.score(v); sc < min {
			min = sc
		}
	}
	return min
}

// trainThreshold computes the (1 - contamination) quantile of training
// scores, so roughly the configured fraction of historical traffic would
// have been flagged.
func trainThreshold(st *state, points [][]float64, contamination float64) float64 {
	if contamination <= 0 || contamination >= 1 {
		return 0.5
	}
	scores := make([]float64, len(points))
	for i, p := range points {
		scores[i] = st.scoreVector(p)
	}
	sort.Float64s(scores)

	idx := int(float64(len(scores)) * (1 - contamination))
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	return scores[idx]
}

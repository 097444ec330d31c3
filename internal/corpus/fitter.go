package corpus

import (
	"context"
	"fmt"

	"github.com/smartroute/smart-route/internal/anomaly"
	"github.com/smartroute/smart-route/internal/feature"
	"github.com/smartroute/smart-route/internal/pkg/logger"
)

// FitterConfig carries the training parameters for one fit cycle.
type FitterConfig struct {
	// MaxFeatures is the vocabulary budget of the feature extractor.
	MaxFeatures int

	// StopWords may be nil to use the default English list.
	StopWords []string

	// Detector configures the isolation-forest ensembles.
	Detector anomaly.Config

	// MinBatch is the minimum total number of historical queries required
	// before fitting proceeds.
	MinBatch int
}

// Fitter runs the (re)fit cycle: pull historical batches, train a fresh
// extractor on their union, re-extract the corpus with it, train a fresh
// detector on those vectors, and only then publish the pair to the
// pipeline. Nothing is visible to routing until both components are ready,
// so a query in flight is never extracted with the new vocabulary and
// scored against the old ensembles.
type Fitter struct {
	pipeline *Pipeline
	cfg      FitterConfig
	log      *logger.Logger
}

// NewFitter creates a fitter that publishes into pipeline.
func NewFitter(pipeline *Pipeline, cfg FitterConfig, log *logger.Logger) *Fitter {
	if cfg.MinBatch < 2 {
		cfg.MinBatch = 2
	}
	return &Fitter{
		pipeline: pipeline,
		cfg:      cfg,
		log:      log.WithComponent("fitter"),
	}
}

// Fit pulls from the source and trains a replacement extractor/detector
// pair. It returns an error when the corpus is too small or training
// fails, leaving the previously published pair in place.
func (f *Fitter) Fit(ctx context.Context, source Source) error {
	batches, err := source.Batches(ctx)
	if err != nil {
		return fmt.Errorf("pulling corpus: %w", err)
	}

	total := 0
	var union []string
	for _, queries := range batches {
		total += len(queries)
		union = append(union, queries...)
	}
	if total < f.cfg.MinBatch {
		return fmt.Errorf("corpus too small: %d queries, need %d", total, f.cfg.MinBatch)
	}

	extractor := feature.NewExtractor(f.cfg.MaxFeatures, f.cfg.StopWords)
	if err := extractor.Fit(union); err != nil {
		return fmt.Errorf("fitting extractor: %w", err)
	}

	vectors := make(map[string][]feature.Vector, len(batches))
	for label, queries := range batches {
		batch := make([]feature.Vector, 0, len(queries))
		for _, q := range queries {
			feats, err := extractor.Extract(q)
			if err != nil {
				return fmt.Errorf("extracting corpus query: %w", err)
			}
			batch = append(batch, feats.Vector)
		}
		vectors[label] = batch
	}

	detector := anomaly.NewDetector(f.cfg.Detector)
	if err := detector.FitModalities(vectors); err != nil {
		return fmt.Errorf("fitting detector: %w", err)
	}

	f.pipeline.Publish(extractor, detector)

	f.log.Info("fit complete",
		"queries", total,
		"modalities", len(batches),
		"vocabulary_dim", extractor.Dimension(),
	)
	return nil
}

package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartroute/smart-route/internal/anomaly"
	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
	"github.com/smartroute/smart-route/internal/pkg/logger"
)

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	writeFile := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	writeFile("simple.txt", "what time is it\nhello there\n\nweather today\n")
	writeFile("technical.txt", "explain database sharding\nhow does raft consensus work\n")
	writeFile("empty.txt", "\n\n")

	src := NewFileSource(dir)
	batches, err := src.Batches(context.Background())
	if err != nil {
		t.Fatalf("Batches failed: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("expected 2 non-empty batches, got %d", len(batches))
	}
	if len(batches["simple"]) != 3 {
		t.Errorf("simple batch has %d queries, want 3", len(batches["simple"]))
	}
	if len(batches["technical"]) != 2 {
		t.Errorf("technical batch has %d queries, want 2", len(batches["technical"]))
	}
}

func TestFileSourceMissingDir(t *testing.T) {
	src := NewFileSource("/nonexistent/corpus")
	if _, err := src.Batches(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestHistoryRing(t *testing.T) {
	h := NewHistory(3)

	if h.Len() != 0 {
		t.Errorf("empty history Len = %d", h.Len())
	}

	h.Add("one")
	h.Add("two")
	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}

	h.Add("three")
	h.Add("four") // evicts "one"

	if h.Len() != 3 {
		t.Errorf("Len = %d, want 3", h.Len())
	}

	batches, err := h.Batches(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	queries := batches[""]
	if len(queries) != 3 {
		t.Fatalf("batch has %d queries, want 3", len(queries))
	}
	expected := []string{"two", "three", "four"}
	for i, q := range queries {
		if q != expected[i] {
			t.Errorf("queries[%d] = %q, want %q", i, q, expected[i])
		}
	}
}

func testFitterConfig() FitterConfig {
	return FitterConfig{
		MaxFeatures: 20,
		Detector: anomaly.Config{
			NEstimators:   20,
			SubsampleSize: 16,
			Contamination: 0.1,
			Seed:          1,
		},
		MinBatch: 5,
	}
}

func TestPipelineUnfitted(t *testing.T) {
	p := NewPipeline()
	if p.Fitted() {
		t.Error("Fitted() = true before any publish")
	}
	if _, _, err := p.Snapshot(); !apperrors.IsNotFitted(err) {
		t.Errorf("Snapshot() error = %v, want NOT_FITTED", err)
	}
}

func TestFitterFit(t *testing.T) {
	pipeline := NewPipeline()
	fitter := NewFitter(pipeline, testFitterConfig(), logger.Default())

	src := StaticSource{}
	for i := 0; i < 2; i++ {
		label := fmt.Sprintf("tier%d", i)
		for j := 0; j < 20; j++ {
			src[label] = append(src[label], fmt.Sprintf("query number %d about topic %d", j, i))
		}
	}

	if err := fitter.Fit(context.Background(), src); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if !pipeline.Fitted() {
		t.Fatal("pipeline not fitted after Fit")
	}

	extractor, scorer, err := pipeline.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	feats, err := extractor.Extract("query about topic")
	if err != nil {
		t.Fatal(err)
	}
	score, err := scorer.Score(feats.Vector)
	if err != nil {
		t.Fatal(err)
	}
	if score < 0 || score > 1 {
		t.Errorf("score %f out of range", score)
	}
}

func TestFitterTooSmall(t *testing.T) {
	pipeline := NewPipeline()
	cfg := testFitterConfig()
	cfg.MinBatch = 10
	fitter := NewFitter(pipeline, cfg, logger.Default())

	src := StaticSource{"": {"only", "three", "queries"}}
	if err := fitter.Fit(context.Background(), src); err == nil {
		t.Error("expected error for undersized corpus")
	}
	if pipeline.Fitted() {
		t.Error("pipeline should stay unfitted after a rejected corpus")
	}
}

func TestRefitKeepsHeldPairCoherent(t *testing.T) {
	pipeline := NewPipeline()
	fitter := NewFitter(pipeline, testFitterConfig(), logger.Default())

	first := StaticSource{}
	for i := 0; i < 30; i++ {
		first[""] = append(first[""], fmt.Sprintf("alpha bravo charlie question %d", i))
	}
	if err := fitter.Fit(context.Background(), first); err != nil {
		t.Fatalf("first Fit failed: %v", err)
	}

	oldExtractor, oldScorer, err := pipeline.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	oldThreshold, err := oldScorer.(*anomaly.Detector).Threshold()
	if err != nil {
		t.Fatal(err)
	}

	second := StaticSource{}
	for i := 0; i < 30; i++ {
		second[""] = append(second[""], fmt.Sprintf("zulu yankee xray request %d", i))
	}
	if err := fitter.Fit(context.Background(), second); err != nil {
		t.Fatalf("second Fit failed: %v", err)
	}

	// The pair held across the refit still speaks the first corpus: its
	// vocabulary never learned the new terms and its detector keeps the
	// threshold it was trained with. A reader holding it never extracts
	// with one vocabulary and scores against ensembles from another.
	feats, err := oldExtractor.Extract("zulu yankee xray")
	if err != nil {
		t.Fatal(err)
	}
	if feats.UnknownTokens != 3 {
		t.Errorf("held extractor knows %d of 3 new-corpus terms, want 0 known",
			3-feats.UnknownTokens)
	}
	if th, _ := oldScorer.(*anomaly.Detector).Threshold(); th != oldThreshold {
		t.Errorf("held detector threshold changed across refit: %f -> %f", oldThreshold, th)
	}

	// A fresh snapshot sees both components replaced at once.
	newExtractor, newScorer, err := pipeline.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if newExtractor == oldExtractor || newScorer == oldScorer {
		t.Error("refit reused a component from the previous pair")
	}
	feats, err = newExtractor.Extract("zulu yankee xray")
	if err != nil {
		t.Fatal(err)
	}
	if feats.UnknownTokens != 0 {
		t.Errorf("new extractor missing %d new-corpus terms", feats.UnknownTokens)
	}
}

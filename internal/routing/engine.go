package routing

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/smartroute/smart-route/internal/cache"
	"github.com/smartroute/smart-route/internal/catalog"
	"github.com/smartroute/smart-route/internal/config"
	"github.com/smartroute/smart-route/internal/corpus"
	"github.com/smartroute/smart-route/internal/feature"
	"github.com/smartroute/smart-route/internal/loadmon"
	"github.com/smartroute/smart-route/internal/metrics"
	"github.com/smartroute/smart-route/internal/pkg/errors"
	"github.com/smartroute/smart-route/internal/pkg/hash"
	"github.com/smartroute/smart-route/internal/pkg/logger"
	"github.com/smartroute/smart-route/internal/pkg/security"
	"github.com/smartroute/smart-route/internal/telemetry"
)

// LoadSource reports the current host load.
type LoadSource interface {
	Current() loadmon.Snapshot
}

// Invoker runs a prompt against a named model.
type Invoker interface {
	Invoke(ctx context.Context, model, prompt string) (string, error)
}

// Engine routes queries to models. All dependencies are set at
// construction and the engine is safe for concurrent use.
type Engine struct {
	pipeline *corpus.Pipeline
	catalog  *catalog.Catalog
	cache    *cache.Cache
	load     LoadSource
	invoker  Invoker
	sink     telemetry.Sink
	metrics  *metrics.Metrics
	history  *corpus.History
	log      *logger.Logger
	cfg      config.RoutingConfig
}

// Options carries the engine's dependencies. Sink, Metrics, and History
// are optional.
type Options struct {
	Pipeline *corpus.Pipeline
	Catalog  *catalog.Catalog
	Cache    *cache.Cache
	Load     LoadSource
	Invoker  Invoker
	Sink     telemetry.Sink
	Metrics  *metrics.Metrics
	History  *corpus.History
	Logger   *logger.Logger
	Config   config.RoutingConfig
}

// NewEngine builds a routing engine.
func NewEngine(opts Options) *Engine {
	sink := opts.Sink
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		pipeline: opts.Pipeline,
		catalog:  opts.Catalog,
		cache:    opts.Cache,
		load:     opts.Load,
		invoker:  opts.Invoker,
		sink:     sink,
		metrics:  m,
		history:  opts.History,
		log:      opts.Logger.WithComponent("routing"),
		cfg:      opts.Config,
	}
}

// Route scores the query, picks a profile, and returns the model's answer.
// Answers are served from the response cache when a fresh entry exists for
// the same normalized query and model.
func (e *Engine) Route(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	e.metrics.RouteRequests.Inc()

	resp, err := e.route(ctx, req, start)

	e.metrics.RouteLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.RouteErrors.Inc(errorType(err))
	}
	return resp, err
}

func (e *Engine) route(ctx context.Context, req Request, start time.Time) (*Response, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.InvalidRequestError("query text must not be empty")
	}

	dec, err := e.Decide(req.Text)
	if err != nil {
		return nil, err
	}

	if e.history != nil {
		e.history.Add(req.Text)
	}

	resp, err := e.invoke(ctx, req.Text, dec)
	e.record(req, dec, resp, err, start)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Decide runs feature extraction, anomaly scoring, and profile selection
// without invoking the model. It fails with NOT_FITTED before the first
// corpus fit and with ROUTING_ERROR when no profile is eligible.
//
// The extractor/scorer pair is taken from one pipeline snapshot, so a
// refit landing mid-decision never mixes vocabularies between extraction
// and scoring.
func (e *Engine) Decide(text string) (*Decision, error) {
	extractor, scorer, err := e.pipeline.Snapshot()
	if err != nil {
		return nil, err
	}

	feats, err := extractor.Extract(text)
	if err != nil {
		return nil, err
	}

	score, err := scorer.Score(feats.Vector)
	if err != nil {
		return nil, err
	}

	complexity := feature.Complexity(feats)
	snap := e.load.Current()
	risk := score + e.cfg.LoadWeight*e.loadFactor(snap)

	profile, err := e.selectProfile(complexity, risk)
	if err != nil {
		return nil, err
	}

	e.metrics.AnomalyScore.Observe(score)
	e.metrics.QueryComplexity.Observe(complexity)

	return &Decision{
		QueryID:      hash.SHA256String(text)[:16],
		Profile:      profile,
		AnomalyScore: score,
		Complexity:   complexity,
		Risk:         risk,
		Load:         snap,
	}, nil
}

// loadFactor normalizes the in-flight request count to [0, 1].
func (e *Engine) loadFactor(snap loadmon.Snapshot) float64 {
	norm := e.cfg.InFlightNorm
	if norm < 1 {
		norm = 1
	}
	f := float64(snap.InFlightRequests) / float64(norm)
	if f > 1 {
		f = 1
	}
	return f
}

// selectProfile picks the cheapest eligible profile whose threshold covers
// the risk score. When the risk exceeds every threshold, the most capable
// eligible profile takes the query rather than rejecting it.
func (e *Engine) selectProfile(complexity, risk float64) (catalog.Profile, error) {
	eligible := e.catalog.Eligible(complexity)
	if len(eligible) == 0 {
		return catalog.Profile{}, errors.RoutingError("no profile eligible for query")
	}
	for _, p := range eligible {
		if risk <= p.Threshold {
			return p, nil
		}
	}
	return eligible[len(eligible)-1], nil
}

func (e *Engine) invoke(ctx context.Context, text string, dec *Decision) (*Response, error) {
	payload, hit, err := e.callModel(ctx, text, dec.Profile.Model)

	if err != nil && e.cfg.RetryLowerCost && errors.IsInferenceFailure(err) {
		if alt, ok := e.retryProfile(dec); ok {
			e.metrics.Retries.Inc()
			e.log.WithModel(alt.Model).Warn("retrying after inference failure",
				"failed_model", dec.Profile.Model,
				"error", err.Error())

			payload, hit, err = e.callModel(ctx, text, alt.Model)
			if err == nil {
				dec.FailedModel = dec.Profile.Model
				dec.Profile = alt
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if hit {
		e.metrics.CacheHits.Inc()
	} else {
		e.metrics.CacheMisses.Inc()
	}
	e.metrics.DecisionsByProfile.Inc(dec.Profile.Name)

	return &Response{
		ResponseText:  payload,
		SelectedModel: dec.Profile.Model,
		Profile:       dec.Profile.Name,
		AnomalyScore:  dec.AnomalyScore,
		Complexity:    dec.Complexity,
		Risk:          dec.Risk,
		CacheHit:      hit,
		Retried:       dec.FailedModel != "",
	}, nil
}

// callModel serves from cache or invokes the model, deduplicating
// concurrent identical requests.
func (e *Engine) callModel(ctx context.Context, text, model string) (string, bool, error) {
	key := hash.Fingerprint(text, model)
	return e.cache.GetOrCompute(ctx, key, model, func(ctx context.Context) (string, error) {
		started := time.Now()
		out, err := e.invoker.Invoke(ctx, model, text)
		e.metrics.InferenceLatency.Observe(time.Since(started).Seconds())
		return out, err
	})
}

// retryProfile returns the eligible profile to retry against after the
// selected one fails: the next cheaper one, or the selected profile itself
// when it was already the cheapest. The retry never escalates cost.
func (e *Engine) retryProfile(dec *Decision) (catalog.Profile, bool) {
	eligible := e.catalog.Eligible(dec.Complexity)
	for i, p := range eligible {
		if p.Name != dec.Profile.Name {
			continue
		}
		if i > 0 {
			return eligible[i-1], true
		}
		return p, true
	}
	return catalog.Profile{}, false
}

func (e *Engine) record(req Request, dec *Decision, resp *Response, err error, start time.Time) {
	event := telemetry.DecisionEvent{
		QueryID:      dec.QueryID,
		Caller:       req.CallerID,
		Profile:      dec.Profile.Name,
		Model:        dec.Profile.Model,
		AnomalyScore: dec.AnomalyScore,
		Complexity:   dec.Complexity,
		Risk:         dec.Risk,
		Load:         dec.Load,
		LatencyMS:    time.Since(start).Milliseconds(),
		Timestamp:    time.Now().UTC(),
		DegradedLoad: dec.Load.Degraded,
	}
	if len(req.Attributes) > 0 {
		event.Attributes = security.MaskSensitiveMap(req.Attributes)
	}
	if resp != nil {
		event.CacheHit = resp.CacheHit
	}
	if dec.FailedModel != "" {
		event.RetriedModel = dec.FailedModel
	}
	if err != nil {
		event.Error = err.Error()
	}
	e.sink.RecordDecision(event)
}

func errorType(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return errors.CodeInternal
}

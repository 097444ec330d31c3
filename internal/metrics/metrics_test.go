package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_total", "test counter")

	c.Inc()
	c.Add(5)
	c.Add(-3) // ignored

	if got := c.Value(); got != 6 {
		t.Errorf("Value() = %d, want 6", got)
	}
}

func TestCounterConcurrent(t *testing.T) {
	c := NewCounter("test_total", "test counter")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	if got := c.Value(); got != 1000 {
		t.Errorf("Value() = %d, want 1000", got)
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "test gauge")

	g.Set(0.75)
	if got := g.Value(); got != 0.75 {
		t.Errorf("Value() = %v, want 0.75", got)
	}

	g.Set(0)
	if got := g.Value(); got != 0 {
		t.Errorf("Value() = %v, want 0", got)
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("test_seconds", "test histogram", []float64{1, 5, 10})

	h.Observe(0.5)
	h.Observe(3)
	h.Observe(7)
	h.Observe(100)

	bounds, counts, sum, total := h.Snapshot()
	if len(bounds) != 3 {
		t.Fatalf("len(bounds) = %d, want 3", len(bounds))
	}
	// Cumulative: <=1 has 1, <=5 has 2, <=10 has 3.
	wantCounts := []int64{1, 2, 3}
	for i, want := range wantCounts {
		if counts[i] != want {
			t.Errorf("counts[%d] = %d, want %d", i, counts[i], want)
		}
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if sum != 110.5 {
		t.Errorf("sum = %v, want 110.5", sum)
	}
}

func TestCounterVec(t *testing.T) {
	v := NewCounterVec("test_errors_total", "test errors", "error_type")

	v.Inc("timeout")
	v.Inc("timeout")
	v.Inc("unavailable")

	if got := v.Value("timeout"); got != 2 {
		t.Errorf("Value(timeout) = %d, want 2", got)
	}
	if got := v.Value("unavailable"); got != 1 {
		t.Errorf("Value(unavailable) = %d, want 1", got)
	}
	if got := v.Value("unknown"); got != 0 {
		t.Errorf("Value(unknown) = %d, want 0", got)
	}

	values := v.Values()
	if len(values) != 2 {
		t.Errorf("len(Values()) = %d, want 2", len(values))
	}
}

func TestPrometheusFormat(t *testing.T) {
	m := New()

	m.RouteRequests.Inc()
	m.RouteErrors.Inc("timeout")
	m.DecisionsByProfile.Inc("simple")
	m.AnomalyScore.Observe(0.42)
	m.RequestsInFlight.Set(3)

	out := m.PrometheusFormat()

	want := []string{
		"# HELP route_requests_total",
		"# TYPE route_requests_total counter",
		"route_requests_total 1",
		`route_errors_total{error_type="timeout"} 1`,
		`route_decisions_total{profile="simple"} 1`,
		`route_anomaly_score_bucket{le="0.5"} 1`,
		`route_anomaly_score_bucket{le="+Inf"} 1`,
		"route_anomaly_score_count 1",
		"requests_in_flight 3",
		"# TYPE route_latency_seconds histogram",
		"uptime_seconds",
	}
	for _, s := range want {
		if !strings.Contains(out, s) {
			t.Errorf("PrometheusFormat() missing %q", s)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RouteRequests.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if !strings.Contains(rec.Body.String(), "route_requests_total 1") {
		t.Errorf("body missing counter line:\n%s", rec.Body.String())
	}
}

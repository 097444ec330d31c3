package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// PrometheusFormat exports all metrics in Prometheus text exposition format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func (m *Metrics) PrometheusFormat() string {
	m.UpdateRuntime()

	var sb strings.Builder

	// Request metrics
	writeCounter(&sb, m.RouteRequests)
	writeCounterVec(&sb, m.RouteErrors)
	writeHistogram(&sb, m.RouteLatency)

	// Decision metrics
	writeCounterVec(&sb, m.DecisionsByProfile)
	writeHistogram(&sb, m.AnomalyScore)
	writeHistogram(&sb, m.QueryComplexity)
	writeCounter(&sb, m.Retries)

	// Cache metrics
	writeCounter(&sb, m.CacheHits)
	writeCounter(&sb, m.CacheMisses)

	// Inference metrics
	writeHistogram(&sb, m.InferenceLatency)

	// Load metrics
	writeGauge(&sb, m.RequestsInFlight)
	writeGauge(&sb, m.CPUUtilization)
	writeGauge(&sb, m.MemUtilization)

	// Telemetry metrics
	writeCounter(&sb, m.TelemetryErrors)

	// Runtime metrics
	writeGauge(&sb, m.Goroutines)
	writeGauge(&sb, m.MemoryBytes)

	sb.WriteString("# HELP uptime_seconds Seconds since the process started\n")
	sb.WriteString("# TYPE uptime_seconds counter\n")
	sb.WriteString(fmt.Sprintf("uptime_seconds %.0f\n", m.Uptime().Seconds()))

	return sb.String()
}

// Handler returns an HTTP handler serving the Prometheus exposition.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(m.PrometheusFormat()))
	})
}

func writeCounter(sb *strings.Builder, c *Counter) {
	writeHeader(sb, c.Name(), c.Help(), "counter")
	sb.WriteString(c.Name())
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatInt(c.Value(), 10))
	sb.WriteString("\n")
}

func writeGauge(sb *strings.Builder, g *Gauge) {
	writeHeader(sb, g.Name(), g.Help(), "gauge")
	sb.WriteString(g.Name())
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatFloat(g.Value(), 'g', -1, 64))
	sb.WriteString("\n")
}

func writeHistogram(sb *strings.Builder, h *Histogram) {
	writeHeader(sb, h.Name(), h.Help(), "histogram")

	bounds, counts, sum, total := h.Snapshot()
	for i, bound := range bounds {
		sb.WriteString(h.Name())
		sb.WriteString(`_bucket{le="`)
		sb.WriteString(strconv.FormatFloat(bound, 'g', -1, 64))
		sb.WriteString(`"} `)
		sb.WriteString(strconv.FormatInt(counts[i], 10))
		sb.WriteString("\n")
	}

	sb.WriteString(h.Name())
	sb.WriteString(`_bucket{le="+Inf"} `)
	sb.WriteString(strconv.FormatInt(total, 10))
	sb.WriteString("\n")

	sb.WriteString(h.Name())
	sb.WriteString("_sum ")
	sb.WriteString(strconv.FormatFloat(sum, 'g', -1, 64))
	sb.WriteString("\n")

	sb.WriteString(h.Name())
	sb.WriteString("_count ")
	sb.WriteString(strconv.FormatInt(total, 10))
	sb.WriteString("\n")
}

func writeCounterVec(sb *strings.Builder, v *CounterVec) {
	writeHeader(sb, v.Name(), v.Help(), "counter")

	values := v.Values()
	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		sb.WriteString(v.Name())
		sb.WriteString("{")
		sb.WriteString(v.LabelName())
		sb.WriteString(`="`)
		sb.WriteString(escapeLabelValue(label))
		sb.WriteString(`"} `)
		sb.WriteString(strconv.FormatInt(values[label], 10))
		sb.WriteString("\n")
	}
}

func writeHeader(sb *strings.Builder, name, help, kind string) {
	sb.WriteString("# HELP ")
	sb.WriteString(name)
	sb.WriteString(" ")
	sb.WriteString(help)
	sb.WriteString("\n")
	sb.WriteString("# TYPE ")
	sb.WriteString(name)
	sb.WriteString(" ")
	sb.WriteString(kind)
	sb.WriteString("\n")
}

func escapeLabelValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return v
}

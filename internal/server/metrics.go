package server

import (
	"context"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/mbolt/svgpress/pkg/observability"
)

// PromHooks implements the observability hook interfaces with Prometheus
// metrics. Register it globally to instrument every pass the process runs.
type PromHooks struct {
	observability.NoopExportHooks
	observability.NoopCacheHooks

	passDuration  prom.Histogram
	passBytes     prom.Histogram
	passOutcome   *prom.CounterVec
	stageDuration *prom.HistogramVec
	diagnostics   *prom.CounterVec
	cacheOps      *prom.CounterVec
	evictions     *prom.CounterVec
}

// NewPromHooks constructs and registers the metrics on reg. A nil registry
// gets a private one.
func NewPromHooks(reg *prom.Registry) *PromHooks {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	h := &PromHooks{
		passDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "svgpress",
			Name:      "pass_duration_seconds",
			Help:      "Total export pass duration",
			Buckets:   prom.DefBuckets,
		}),
		passBytes: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "svgpress",
			Name:      "pass_output_bytes",
			Help:      "Assembled artifact size",
			Buckets:   prom.ExponentialBuckets(1024, 4, 8),
		}),
		passOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "svgpress",
			Name:      "pass_outcomes_total",
			Help:      "Export pass outcomes",
		}, []string{"outcome"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "svgpress",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		diagnostics: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "svgpress",
			Name:      "diagnostics_total",
			Help:      "Degradations by stage and code",
		}, []string{"stage", "code"}),
		cacheOps: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "svgpress",
			Name:      "cache_ops_total",
			Help:      "Cache operations by key type and result",
		}, []string{"key_type", "op"}),
		evictions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "svgpress",
			Name:      "cache_evictions_total",
			Help:      "Entries removed by eviction sweeps",
		}, []string{"key_type"}),
	}
	reg.MustRegister(h.passDuration, h.passBytes, h.passOutcome,
		h.stageDuration, h.diagnostics, h.cacheOps, h.evictions)
	return h
}

// Register installs the hooks globally.
func (h *PromHooks) Register() {
	observability.SetExportHooks(h)
	observability.SetCacheHooks(h)
}

func (h *PromHooks) OnPassComplete(_ context.Context, _ string, bytes int, d time.Duration, err error) {
	h.passDuration.Observe(d.Seconds())
	if err != nil {
		h.passOutcome.WithLabelValues("error").Inc()
		return
	}
	h.passOutcome.WithLabelValues("ok").Inc()
	h.passBytes.Observe(float64(bytes))
}

func (h *PromHooks) OnStageComplete(_ context.Context, stage string, _ int, d time.Duration, _ error) {
	h.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (h *PromHooks) OnDiagnostic(_ context.Context, stage, code string) {
	h.diagnostics.WithLabelValues(stage, code).Inc()
}

func (h *PromHooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (h *PromHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (h *PromHooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	h.cacheOps.WithLabelValues(keyType, "set").Inc()
}

func (h *PromHooks) OnEviction(_ context.Context, keyType string, n int) {
	h.evictions.WithLabelValues(keyType).Add(float64(n))
}

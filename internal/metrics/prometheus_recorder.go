package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration   prom.Histogram
	versionDuration *prom.HistogramVec
	buildOutcome    *prom.CounterVec
	releaseFetch    prom.Histogram
	versionsBuilt   prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docver",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		versionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docver",
			Name:      "version_build_duration_seconds",
			Help:      "Duration of individual per-version builds",
			Buckets:   prom.DefBuckets,
		}, []string{"version", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docver",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		releaseFetch: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docver",
			Name:      "release_fetch_duration_seconds",
			Help:      "Duration of release list fetches",
			Buckets:   prom.DefBuckets,
		}),
		versionsBuilt: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docver",
			Name:      "versions_built",
			Help:      "Number of versions built in the last run",
		}),
	}
	reg.MustRegister(pr.buildDuration, pr.versionDuration, pr.buildOutcome, pr.releaseFetch, pr.versionsBuilt)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveVersionBuildDuration(version string, d time.Duration, success bool) {
	if p == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	p.versionDuration.WithLabelValues(version, result).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveReleaseFetchDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.releaseFetch.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetVersionsBuilt(n int) {
	if p == nil {
		return
	}
	p.versionsBuilt.Set(float64(n))
}

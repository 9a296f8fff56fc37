package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "slidebuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	repoResults   *prom.CounterVec
	runDuration   prom.Histogram
	runOutcome    *prom.CounterVec
	slides        *prom.GaugeVec
	concurrency   prom.Gauge
	lastRun       prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "repository_stage_duration_seconds",
			Help:      "Duration of per-repository sync and build stages",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		repoResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "repository_results_total",
			Help:      "Final per-repository states",
		}, []string{"state"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total orchestrator run duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Run outcomes",
		}, []string{"outcome"}),
		slides: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "manifest_slides",
			Help:      "Slides in the last manifest by build status",
		}, []string{"status"}),
		concurrency: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "concurrency",
			Help:      "Repository concurrency of the last run",
		}),
		lastRun: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.repoResults, pr.runDuration, pr.runOutcome, pr.slides, pr.concurrency, pr.lastRun)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRepositoryResult(state string) {
	p.repoResults.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
	p.lastRun.SetToCurrentTime()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcome) {
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetSlides(success, failure int) {
	p.slides.WithLabelValues("success").Set(float64(success))
	p.slides.WithLabelValues("failure").Set(float64(failure))
}

func (p *PrometheusRecorder) SetConcurrency(n int) {
	p.concurrency.Set(float64(n))
}

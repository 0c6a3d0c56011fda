// Package metrics instruments the loading pass. The orchestrator talks to
// the Recorder interface only; the Prometheus-backed Collector lives here so
// embedders without a metrics endpoint can pass NopRecorder instead.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives load-pass events from the orchestrator.
type Recorder interface {
	// RunStarted is called once per run with the number of components in
	// the plan.
	RunStarted(components int)
	// RunFinished is called once per run with the final status tally.
	RunFinished(loaded, failed, skipped int)
	// LoadStarted is called when a component enters Loading.
	LoadStarted(name string)
	// LoadFinished is called when an attempted component reaches a terminal
	// status ("loaded" or "failed").
	LoadFinished(name, status string, d time.Duration)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) RunStarted(int)                            {}
func (NopRecorder) RunFinished(int, int, int)                 {}
func (NopRecorder) LoadStarted(string)                        {}
func (NopRecorder) LoadFinished(string, string, time.Duration) {}

// Collector implements Recorder on top of Prometheus.
type Collector struct {
	runsStarted     prometheus.Counter
	componentsTotal *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec
	inflightLoads   prometheus.Gauge
	planSize        prometheus.Gauge
}

// NewCollector creates a Collector registered on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "modkit_runs_total",
			Help: "Total number of load runs started",
		}),
		componentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modkit_components_total",
			Help: "Components that reached a terminal status, by status",
		}, []string{"status"}),
		loadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "modkit_component_load_seconds",
			Help:    "Wall time spent inside a component's loader",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),
		inflightLoads: factory.NewGauge(prometheus.GaugeOpts{
			Name: "modkit_inflight_loads",
			Help: "Loader calls currently in flight",
		}),
		planSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "modkit_plan_components",
			Help: "Number of components in the current load plan",
		}),
	}
}

// RunStarted implements Recorder.
func (c *Collector) RunStarted(components int) {
	c.runsStarted.Inc()
	c.planSize.Set(float64(components))
}

// RunFinished implements Recorder.
func (c *Collector) RunFinished(loaded, failed, skipped int) {
	c.componentsTotal.WithLabelValues("loaded").Add(float64(loaded))
	c.componentsTotal.WithLabelValues("failed").Add(float64(failed))
	c.componentsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// LoadStarted implements Recorder.
func (c *Collector) LoadStarted(string) {
	c.inflightLoads.Inc()
}

// LoadFinished implements Recorder.
func (c *Collector) LoadFinished(_ string, status string, d time.Duration) {
	c.inflightLoads.Dec()
	c.loadDuration.WithLabelValues(status).Observe(d.Seconds())
}

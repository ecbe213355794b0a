package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spam_analyzer"

// Recorder holds the analyzer's prometheus collectors. A nil Recorder is valid and records nothing.
type Recorder struct {
	registry   *prometheus.Registry
	verdicts   *prometheus.CounterVec
	dnsLookups *prometheus.CounterVec
	duration   prometheus.Histogram
	failures   prometheus.Counter
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Verdicts issued, by label and strategy.",
		}, []string{"label", "strategy"}),
		dnsLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_lookups_total",
			Help:      "DNS lookups performed, by record type and outcome.",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent extracting features from one message.",
			Buckets:   prometheus.DefBuckets,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_failures_total",
			Help:      "Messages that could not be analyzed or classified.",
		}),
	}

	r.registry.MustRegister(r.verdicts, r.dnsLookups, r.duration, r.failures)
	return r
}

// ObserveVerdict counts one verdict
func (r *Recorder) ObserveVerdict(label, strategy string) {
	if r == nil {
		return
	}
	r.verdicts.WithLabelValues(label, strategy).Inc()
}

// ObserveDNSLookup counts one DNS query
func (r *Recorder) ObserveDNSLookup(qtype, outcome string) {
	if r == nil {
		return
	}
	r.dnsLookups.WithLabelValues(qtype, outcome).Inc()
}

// ObserveAnalysis records how long feature extraction took
func (r *Recorder) ObserveAnalysis(d time.Duration) {
	if r == nil {
		return
	}
	r.duration.Observe(d.Seconds())
}

// ObserveFailure counts one failed message
func (r *Recorder) ObserveFailure() {
	if r == nil {
		return
	}
	r.failures.Inc()
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the collected metrics
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

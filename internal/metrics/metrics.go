// Package metrics exposes scan pipeline counters and backend latency in
// Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dispatchscan/internal/pipeline"
)

// Recorder implements pipeline.Recorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	admitted *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	capture  *prometheus.GaugeVec
}

var _ pipeline.Recorder = (*Recorder)(nil)

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatchscan_scans_admitted_total",
			Help: "Scans admitted through the processing guard",
		}, []string{"origin"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatchscan_scans_dropped_total",
			Help: "Scans dropped because another scan held the processing guard",
		}, []string{"origin"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatchscan_feedback_total",
			Help: "Feedback delivered to the operator by kind",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatchscan_backend_request_duration_seconds",
			Help:    "Backend validate and submit round trip latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		capture: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatchscan_capture_running",
			Help: "1 while the capture source is running",
		}, []string{"source"}),
	}
	r.registry.MustRegister(r.admitted, r.dropped, r.outcomes, r.latency, r.capture)
	return r
}

func (r *Recorder) ScanAdmitted(origin pipeline.Origin) {
	r.admitted.WithLabelValues(string(origin)).Inc()
}

func (r *Recorder) ScanDropped(origin pipeline.Origin) {
	r.dropped.WithLabelValues(string(origin)).Inc()
}

func (r *Recorder) Outcome(kind pipeline.Kind) {
	r.outcomes.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) BackendLatency(operation string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.latency.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}

// CaptureRunning records whether source is currently running.
func (r *Recorder) CaptureRunning(source string, running bool) {
	value := 0.0
	if running {
		value = 1
	}
	r.capture.WithLabelValues(source).Set(value)
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

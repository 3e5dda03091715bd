package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics, the HTTP client's
// RequestObserver and the Kafka PublishObserver using Prometheus.
type Recorder struct {
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	tokenRefreshes  *prometheus.CounterVec
	screenRuns      *prometheus.CounterVec
	screenRows      prometheus.Histogram
	runDuration     *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	kafkaMessages   *prometheus.CounterVec
	kafkaBytes      *prometheus.CounterVec
	kafkaLatency    *prometheus.HistogramVec
}

// New creates a recorder registered on reg. Nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		backendRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscreen_backend_requests_total",
				Help: "Requests sent to the screening backend",
			},
			[]string{"method", "endpoint", "status"},
		),
		backendLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finscreen_backend_request_duration_seconds",
				Help:    "Screening backend request latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"endpoint"},
		),
		tokenRefreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscreen_token_refresh_total",
				Help: "Silent access token refresh attempts by result",
			},
			[]string{"result"},
		),
		screenRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscreen_screen_runs_total",
				Help: "Screening runs by outcome",
			},
			[]string{"outcome"},
		),
		screenRows: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finscreen_screen_result_rows",
				Help:    "Result rows returned per successful run",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finscreen_screen_run_duration_seconds",
				Help:    "End-to-end screening run duration",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 180, 240, 300},
			},
			[]string{"outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscreen_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		kafkaMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscreen_kafka_producer_messages_total",
				Help: "Messages published to Kafka by result",
			},
			[]string{"topic", "result"},
		),
		kafkaBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscreen_kafka_producer_bytes_total",
				Help: "Payload bytes published to Kafka",
			},
			[]string{"topic"},
		),
		kafkaLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finscreen_kafka_producer_publish_seconds",
				Help:    "Kafka publish latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),
	}
}

// ObserveRequest records one backend round trip. Status 0 is a transport error.
func (r *Recorder) ObserveRequest(method, endpoint string, status int, d time.Duration) {
	r.backendRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	r.backendLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveRefresh records a refresh attempt: ok, failed or missing.
func (r *Recorder) ObserveRefresh(result string) {
	r.tokenRefreshes.WithLabelValues(result).Inc()
}

// RecordScreenRun records the outcome of a run; rows is ignored unless the
// run succeeded.
func (r *Recorder) RecordScreenRun(outcome string, rows int, d time.Duration) {
	r.screenRuns.WithLabelValues(outcome).Inc()
	r.runDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if outcome == "success" {
		r.screenRows.Observe(float64(rows))
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// ObservePublish records one Kafka write.
func (r *Recorder) ObservePublish(topic string, messages int, bytes int64, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		r.errorsTotal.WithLabelValues("kafka_publish").Inc()
	}
	r.kafkaMessages.WithLabelValues(topic, result).Add(float64(messages))
	r.kafkaBytes.WithLabelValues(topic).Add(float64(bytes))
	r.kafkaLatency.WithLabelValues(topic).Observe(d.Seconds())
}

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	queueSize       prometheus.Gauge
	activeMatches   prometheus.Gauge
	matchesCreated  *prometheus.CounterVec
	matchesFinished *prometheus.CounterVec
	queueExpired    prometheus.Counter
	storeFailures   *prometheus.CounterVec
	tickElapsedTime *prometheus.HistogramVec
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	queueSize := factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "matchmaker_queue_size",
			Help: "Number of players currently waiting in the matchmaking queue",
		})

	activeMatches := factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "matchmaker_active_matches",
			Help: "Number of matches paired and not yet completed or cancelled",
		})

	matchesCreated := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaker_matches_created_total",
			Help: "Matches created by the pairing pass",
		}, []string{"timeout_match"})

	matchesFinished := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaker_matches_finished_total",
			Help: "Tracked matches removed by completion or cancellation",
		}, []string{"result"})

	queueExpired := factory.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaker_queue_expired_total",
			Help: "Queue entries removed by cleanup",
		})

	storeFailures := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaker_store_failures_total",
			Help: "Player store operations that returned an error",
		}, []string{"operation"})

	//nolint:promlinter
	tickElapsedTime := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchmaker_tick_elapsed_time_ms",
			Help:    "A histogram of scheduled job elapsed time in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"job"})

	return prometheusMetrics{
		queueSize:       queueSize,
		activeMatches:   activeMatches,
		matchesCreated:  matchesCreated,
		matchesFinished: matchesFinished,
		queueExpired:    queueExpired,
		storeFailures:   storeFailures,
		tickElapsedTime: tickElapsedTime,
	}
}

func (metrics prometheusMetrics) SetQueueSize(size int) {
	metrics.queueSize.Set(float64(size))
}

func (metrics prometheusMetrics) SetActiveMatches(count int) {
	metrics.activeMatches.Set(float64(count))
}

func (metrics prometheusMetrics) AddMatchCreated(timeoutMatch bool) {
	metrics.matchesCreated.With(prometheus.Labels{"timeout_match": strconv.FormatBool(timeoutMatch)}).Inc()
}

func (metrics prometheusMetrics) AddMatchCompleted() {
	metrics.matchesFinished.With(prometheus.Labels{"result": "completed"}).Inc()
}

func (metrics prometheusMetrics) AddMatchCancelled() {
	metrics.matchesFinished.With(prometheus.Labels{"result": "cancelled"}).Inc()
}

func (metrics prometheusMetrics) AddQueueExpired(count int) {
	metrics.queueExpired.Add(float64(count))
}

func (metrics prometheusMetrics) AddStoreFailure(operation string) {
	metrics.storeFailures.With(prometheus.Labels{"operation": operation}).Inc()
}

func (metrics prometheusMetrics) ObserveTickElapsedTime(job string, elapsedTime time.Duration) {
	metrics.tickElapsedTime.With(prometheus.Labels{"job": job}).Observe(float64(elapsedTime.Milliseconds()))
}

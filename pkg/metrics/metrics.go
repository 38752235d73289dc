package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MatchmakingMetrics receives queue and match lifecycle measurements.
type MatchmakingMetrics interface {
	SetQueueSize(size int)
	SetActiveMatches(count int)
	AddMatchCreated(timeoutMatch bool)
	AddMatchCompleted()
	AddMatchCancelled()
	AddQueueExpired(count int)
	AddStoreFailure(operation string)
	ObserveTickElapsedTime(job string, elapsedTime time.Duration)
}

func NewMetrics(registry *prometheus.Registry) MatchmakingMetrics {
	return setupPrometheusMetrics(registry)
}

// NewNoopMetrics discards everything.
func NewNoopMetrics() MatchmakingMetrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) SetQueueSize(int)                             {}
func (noopMetrics) SetActiveMatches(int)                         {}
func (noopMetrics) AddMatchCreated(bool)                         {}
func (noopMetrics) AddMatchCompleted()                           {}
func (noopMetrics) AddMatchCancelled()                           {}
func (noopMetrics) AddQueueExpired(int)                          {}
func (noopMetrics) AddStoreFailure(string)                       {}
func (noopMetrics) ObserveTickElapsedTime(string, time.Duration) {}

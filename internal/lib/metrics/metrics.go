package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/asquebay/bookstore-orders/internal/channel"
)

const namespace = "bookstore_orders"

// Metrics собирает счётчики саг и канала сообщений
// методы безопасно вызывать у nil, тогда метрики просто не пишутся
type Metrics struct {
	sagaRuns        *prometheus.CounterVec
	channelRequests *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		sagaRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_runs_total",
			Help:      "Saga runs by saga name and outcome.",
		}, []string{"saga", "outcome"}),
		channelRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_request_duration_seconds",
			Help:      "Request/reply latency over the message channel.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pattern", "result"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_events_published_total",
			Help:      "Fire-and-forget events handed to the channel.",
		}, []string{"pattern", "result"}),
	}
}

func (m *Metrics) ObserveSaga(saga, outcome string) {
	if m == nil {
		return
	}
	m.sagaRuns.WithLabelValues(saga, outcome).Inc()
}

func (m *Metrics) ObserveRequest(pattern string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.channelRequests.WithLabelValues(pattern, Result(err)).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObservePublish(pattern string, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(pattern, Result(err)).Inc()
}

// Result сводит ошибку канала к метке
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, channel.ErrTimeout):
		return "timeout"
	case errors.Is(err, channel.ErrNotFound):
		return "not_found"
	case errors.Is(err, channel.ErrRejected):
		return "rejected"
	default:
		return "error"
	}
}

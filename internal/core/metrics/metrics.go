// Package metrics exposes Prometheus metrics for the cache and the
// notification queue.
package metrics

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/notify"
)

const namespace = "erpsync"

// Metrics holds every erpsync collector. It implements cache.Observer.
type Metrics struct {
	FetchesTotal     *prometheus.CounterVec   // fetches by endpoint, source, status
	FetchDuration    *prometheus.HistogramVec // fetch latency by endpoint and source
	MutationsTotal   *prometheus.CounterVec   // mutations by endpoint, op, status
	Subscribers      *prometheus.GaugeVec     // current subscribers by endpoint
	Notifications    *prometheus.GaugeVec     // queue contents by visibility
	NotificationsAdd *prometheus.CounterVec   // records added by severity

	mu   sync.Mutex
	seen map[string]struct{}
}

var _ cache.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{seen: make(map[string]struct{})}
	m.init()
	if err := reg.Register(m); err != nil {
		return nil, fmt.Errorf("register erpsync metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) init() {
	m.FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_fetches_total",
			Help:      "Endpoint reads by endpoint, source (poll, direct) and status",
		},
		[]string{"endpoint", "source", "status"},
	)

	m.FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_fetch_duration_seconds",
			Help:      "Endpoint read latency by endpoint and source",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "source"},
	)

	m.MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_mutations_total",
			Help:      "Create, update and remove calls by endpoint, operation and status",
		},
		[]string{"endpoint", "op", "status"},
	)

	m.Subscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_subscribers",
			Help:      "Current subscribers per endpoint path",
		},
		[]string{"endpoint"},
	)

	m.Notifications = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications",
			Help:      "Records in the notification queue by visibility",
		},
		[]string{"visible"},
	)

	m.NotificationsAdd = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_added_total",
			Help:      "Notification records added by severity",
		},
		[]string{"severity"},
	)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchesTotal,
		m.FetchDuration,
		m.MutationsTotal,
		m.Subscribers,
		m.Notifications,
		m.NotificationsAdd,
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) ObserveFetch(key string, source cache.Source, took time.Duration, err error) {
	ep := endpointLabel(key)
	m.FetchesTotal.WithLabelValues(ep, string(source), status(err)).Inc()
	m.FetchDuration.WithLabelValues(ep, string(source)).Observe(took.Seconds())
}

func (m *Metrics) ObserveMutation(key string, op cache.Op, err error) {
	m.MutationsTotal.WithLabelValues(endpointLabel(key), string(op), status(err)).Inc()
}

func (m *Metrics) ObserveSubscribers(endpoint string, n int) {
	m.Subscribers.WithLabelValues(endpointLabel(endpoint)).Set(float64(n))
}

// WatchQueue keeps the notification gauges in step with q. It returns the
// unsubscribe function.
func (m *Metrics) WatchQueue(q *notify.Queue) func() {
	return q.Subscribe(func(recs []notify.Record) {
		m.mu.Lock()
		defer m.mu.Unlock()

		visible, hidden := 0, 0
		for _, r := range recs {
			if r.Visible {
				visible++
			} else {
				hidden++
			}
			if _, ok := m.seen[r.ID]; !ok {
				m.seen[r.ID] = struct{}{}
				m.NotificationsAdd.WithLabelValues(string(r.Severity)).Inc()
			}
		}
		m.Notifications.WithLabelValues("true").Set(float64(visible))
		m.Notifications.WithLabelValues("false").Set(float64(hidden))
		m.forget(recs)
	})
}

// forget drops ids no longer in the queue so seen stays bounded. Caller
// holds m.mu.
func (m *Metrics) forget(recs []notify.Record) {
	if len(m.seen) <= 4*len(recs)+notify.DefaultCapacity {
		return
	}
	live := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		live[r.ID] = struct{}{}
	}
	m.seen = live
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, cache.ErrShape):
		return "shape_error"
	default:
		return "error"
	}
}

func endpointLabel(key string) string {
	path, _, _ := strings.Cut(key, "?")
	return path
}

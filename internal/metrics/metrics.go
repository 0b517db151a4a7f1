package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hotelops/requisition-approval/internal/application/dispatcher"
	"github.com/hotelops/requisition-approval/internal/domain/event"
)

const namespace = "requisition"

// Metrics owns the service's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	events       *prometheus.CounterVec
	decisions    *prometheus.CounterVec
}

// New creates the collectors and registers the Go runtime collectors with them
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Domain events dispatched, by type",
			},
			[]string{"type"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Final requisition decisions, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RegisterDB exposes connection pool statistics for db
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// HandleEvent counts evt. It is subscribed to every event type.
func (m *Metrics) HandleEvent(ctx context.Context, evt *event.Event) error {
	m.events.WithLabelValues(evt.Type.String()).Inc()
	if evt.Type.IsDecision() {
		m.decisions.WithLabelValues(decisionOutcome(evt.Type)).Inc()
	}
	return nil
}

func decisionOutcome(t event.Type) string {
	switch t {
	case event.TypeRequisitionApproved:
		return "approved"
	case event.TypeRequisitionPartiallyApproved:
		return "partially_approved"
	case event.TypeRequisitionRejected:
		return "rejected"
	case event.TypeRequisitionReturned:
		return "returned"
	case event.TypeRequisitionIssued:
		return "issued"
	}
	return "other"
}

// Register subscribes the event counter on d
func (m *Metrics) Register(d dispatcher.Dispatcher) {
	d.Subscribe("metrics", m.HandleEvent,
		event.TypeRequisitionSubmitted,
		event.TypeItemReviewed,
		event.TypeRequisitionApproved,
		event.TypeRequisitionPartiallyApproved,
		event.TypeRequisitionRejected,
		event.TypeRequisitionReturned,
		event.TypeRequisitionIssued,
		event.TypeStepAdvanced,
	)
}

// Registry returns the private registry behind Handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

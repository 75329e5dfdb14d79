package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions prometheus.Gauge
	SessionEvents  *prometheus.CounterVec
	Actions        *prometheus.CounterVec
	ActionLatency  *prometheus.HistogramVec
	CatalogReloads *prometheus.CounterVec
	CatalogItems   prometheus.Gauge
	OrdersPlaced   prometheus.Counter
	OrderTotal     prometheus.Counter
	TurnLatency    prometheus.Histogram
	TurnTickets    *prometheus.CounterVec
	ModelCostUSD   prometheus.Counter
	StoreErrors    *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of call sessions held in memory.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions by name and outcome kind.",
		}, []string{"action", "kind"}),
		ActionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_latency_ms",
			Help:      "Action dispatch latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"action"}),
		CatalogReloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog reloads by result.",
		}, []string{"result"}),
		CatalogItems: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_items",
			Help:      "Items in the active catalog snapshot.",
		}),
		OrdersPlaced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders finalized successfully.",
		}),
		OrderTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_value_total",
			Help:      "Sum of finalized order totals.",
		}),
		TurnLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "Latency of a full caller turn in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
		TurnTickets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_tickets_total",
			Help:      "Turn tickets by final status.",
		}, []string{"status"}),
		ModelCostUSD: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_cost_usd_total",
			Help:      "Estimated intent model spend in USD.",
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Best-effort persistence failures by operation.",
		}, []string{"op"}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
	m.SessionEvents.WithLabelValues("opened").Inc()
}

func (m *Metrics) SessionRestored() {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues("restored").Inc()
}

func (m *Metrics) SessionEvicted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionEvents.WithLabelValues("evicted").Inc()
}

func (m *Metrics) ObserveAction(action, kind string, d time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "ok"
	}
	m.Actions.WithLabelValues(action, kind).Inc()
	m.ActionLatency.WithLabelValues(action).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) CatalogReloaded(result string, items int) {
	if m == nil {
		return
	}
	m.CatalogReloads.WithLabelValues(result).Inc()
	if items >= 0 {
		m.CatalogItems.Set(float64(items))
	}
}

func (m *Metrics) OrderPlaced(total float64) {
	if m == nil {
		return
	}
	m.OrdersPlaced.Inc()
	m.OrderTotal.Add(total)
}

func (m *Metrics) ObserveTurn(d time.Duration) {
	if m == nil {
		return
	}
	m.TurnLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) TicketFinished(status string) {
	if m == nil {
		return
	}
	m.TurnTickets.WithLabelValues(status).Inc()
}

func (m *Metrics) AddModelCost(usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.ModelCostUSD.Add(usd)
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

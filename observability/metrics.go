package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/idkrafsan/BetTracker/events"
	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bettracker"

// Bet operation label values
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpSoftDelete = "soft_delete"
	OpDelete     = "delete"
)

// Settlement result label values
const (
	SettlementApplied = "applied"
	SettlementFailed  = "failed"
)

// Metrics owns the Prometheus collectors of the service
type Metrics struct {
	registry *prometheus.Registry

	betsTotal           *prometheus.CounterVec
	settlementsTotal    *prometheus.CounterVec
	balanceTransactions *prometheus.CounterVec
	dashboardRecomputes *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	wsClients           prometheus.Gauge
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		betsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_total",
			Help:      "Committed bet writes by operation.",
		}, []string{"op"}),
		settlementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Balance settlements of bet writes by result.",
		}, []string{"result"}),
		balanceTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_transactions_total",
			Help:      "Committed balance changes by transaction type.",
		}, []string{"type"}),
		dashboardRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_recomputes_total",
			Help:      "Dashboard change notifications by source.",
		}, []string{"source"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected dashboard websocket clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.betsTotal,
		m.settlementsTotal,
		m.balanceTransactions,
		m.dashboardRecomputes,
		m.httpDuration,
		m.wsClients,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// HandleEvent is an events.Handler counting committed domain events
func (m *Metrics) HandleEvent(_ context.Context, event events.Event) {
	switch e := event.(type) {
	case events.BetCreatedEvent:
		m.betsTotal.WithLabelValues(OpCreate).Inc()
	case events.BetUpdatedEvent:
		if e.NewStatus == models.BetStatusDeleted {
			m.betsTotal.WithLabelValues(OpSoftDelete).Inc()
		} else {
			m.betsTotal.WithLabelValues(OpUpdate).Inc()
		}
	case events.BetDeletedEvent:
		m.betsTotal.WithLabelValues(OpDelete).Inc()
	case events.BalanceChangeEvent:
		m.balanceTransactions.WithLabelValues(string(e.TransactionType)).Inc()
		if e.TransactionType == models.TransactionTypeBetSettlement {
			m.settlementsTotal.WithLabelValues(SettlementApplied).Inc()
		}
	case events.SettlementFailedEvent:
		m.settlementsTotal.WithLabelValues(SettlementFailed).Inc()
	}
}

// ObserveDashboardChange is a dashboard listener counting change notifications
func (m *Metrics) ObserveDashboardChange(source service.ChangeSource) {
	m.dashboardRecomputes.WithLabelValues(string(source)).Inc()
}

// WebsocketConnected and WebsocketDisconnected track live dashboard clients
func (m *Metrics) WebsocketConnected() {
	m.wsClients.Inc()
}

func (m *Metrics) WebsocketDisconnected() {
	m.wsClients.Dec()
}

// Middleware records request latency labelled with the matched chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

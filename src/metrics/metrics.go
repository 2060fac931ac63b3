package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_ticks_total",
			Help: "Control loop iterations that received a bar",
		},
		[]string{"symbol"},
	)

	fetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_fetch_errors_total",
			Help: "Market data fetches that failed or returned no data",
		},
		[]string{"symbol"},
	)

	signalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_signals_total",
			Help: "Signals produced by the detector",
		},
		[]string{"symbol", "action", "actionable"},
	)

	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_orders_total",
			Help: "Orders by direction and final status",
		},
		[]string{"symbol", "direction", "status"},
	)

	riskExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_exits_total",
			Help: "Position exits by reason",
		},
		[]string{"symbol", "reason"},
	)

	orderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autotrader_order_duration_seconds",
			Help:    "Time from order submission to a final status",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15, 30},
		},
		[]string{"symbol"},
	)

	openPositions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autotrader_open_positions",
			Help: "1 when the pair holds a position",
		},
		[]string{"user_id", "symbol"},
	)

	runningTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autotrader_running_tasks",
			Help: "Trading tasks currently running",
		},
	)
)

func RecordTick(symbol string) {
	ticksTotal.WithLabelValues(symbol).Inc()
}

func RecordFetchError(symbol string) {
	fetchErrorsTotal.WithLabelValues(symbol).Inc()
}

func RecordSignal(symbol, action string, actionable bool) {
	a := "false"
	if actionable {
		a = "true"
	}
	signalsTotal.WithLabelValues(symbol, action, a).Inc()
}

func RecordOrder(symbol, direction, status string, seconds float64) {
	ordersTotal.WithLabelValues(symbol, direction, status).Inc()
	orderDuration.WithLabelValues(symbol).Observe(seconds)
}

func RecordExit(symbol, reason string) {
	riskExitsTotal.WithLabelValues(symbol, reason).Inc()
}

func SetPositionOpen(userID, symbol string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	openPositions.WithLabelValues(userID, symbol).Set(v)
}

func TaskStarted() { runningTasks.Inc() }
func TaskStopped() { runningTasks.Dec() }

// Package metrics exposes prometheus instrumentation for the live
// trading loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TradesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lvntrader",
		Name:      "trades_ingested_total",
		Help:      "Raw trades received from the feed.",
	})
	TradesFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lvntrader",
		Name:      "trades_filtered_total",
		Help:      "Trades dropped by the min-size filter.",
	})
	BarsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lvntrader",
		Name:      "bars_built_total",
		Help:      "Completed one-second bars.",
	})
	SignalsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lvntrader",
		Name:      "signals_total",
		Help:      "Retest signals by direction.",
	}, []string{"direction"})
	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lvntrader",
		Name:      "trades_closed_total",
		Help:      "Completed trades by exit reason.",
	}, []string{"reason"})
	DailyPnLPoints = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lvntrader",
		Name:      "daily_pnl_points",
		Help:      "Realized session profit and loss in points.",
	})
	Balance = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lvntrader",
		Name:      "balance_dollars",
		Help:      "Running account balance.",
	})
	OrdersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lvntrader",
		Name:      "orders_submitted_total",
		Help:      "Orders sent to the broker.",
	})
	NetPosition = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lvntrader",
		Name:      "net_position",
		Help:      "Signed open contract count.",
	})
	TrackedLevels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lvntrader",
		Name:      "tracked_levels",
		Help:      "LVN levels currently tracked for retests.",
	})
	Phase = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lvntrader",
		Name:      "machine_phase",
		Help:      "State machine phase as an integer.",
	})
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lvntrader",
		Name:      "ws_clients",
		Help:      "Connected websocket clients.",
	})
	WSDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lvntrader",
		Name:      "ws_dropped_total",
		Help:      "Clients disconnected for falling behind.",
	})
)

// Handler returns the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

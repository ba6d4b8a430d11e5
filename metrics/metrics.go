// Package metrics provides Prometheus metrics for the ladder trader.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors 策略各状态转换的计数器/仪表。指针可为 nil（测试、
// dry-run），所有方法都对 nil 安全。
type Collectors struct {
	OrdersPlaced     *prometheus.CounterVec
	OrderFailures    *prometheus.CounterVec
	EntryFills       *prometheus.CounterVec
	StopLossTriggers *prometheus.CounterVec
	PausesEntered    *prometheus.CounterVec
	PausesExtended   *prometheus.CounterVec
	Resets           *prometheus.CounterVec
	ReferencePrice   *prometheus.GaugeVec
	PauseActive      *prometheus.GaugeVec
}

// New registers the collectors with reg and returns them. Pass
// prometheus.DefaultRegisterer in production, a fresh registry in tests.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_orders_placed_total",
			Help: "Orders submitted, by symbol and role.",
		}, []string{"symbol", "role"}),
		OrderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_order_failures_total",
			Help: "Order submissions abandoned after retries.",
		}, []string{"symbol", "role"}),
		EntryFills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_entry_fills_total",
			Help: "Entry fills handled, by symbol and level.",
		}, []string{"symbol", "level"}),
		StopLossTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_stop_loss_triggers_total",
			Help: "Internal stop-loss submissions.",
		}, []string{"symbol"}),
		PausesEntered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_pauses_entered_total",
			Help: "Pause windows opened after stop-loss fills.",
		}, []string{"symbol"}),
		PausesExtended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_pauses_extended_total",
			Help: "Pause windows extended by the volatility gate.",
		}, []string{"symbol"}),
		Resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_resets_total",
			Help: "Full cycle resets.",
		}, []string{"symbol"}),
		ReferencePrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ladder_reference_price",
			Help: "Current cycle anchor price.",
		}, []string{"symbol"}),
		PauseActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ladder_pause_active",
			Help: "1 while the symbol is inside a pause window.",
		}, []string{"symbol"}),
	}
	reg.MustRegister(
		c.OrdersPlaced, c.OrderFailures, c.EntryFills, c.StopLossTriggers,
		c.PausesEntered, c.PausesExtended, c.Resets, c.ReferencePrice, c.PauseActive,
	)
	return c
}

func (c *Collectors) OrderPlaced(symbol, role string) {
	if c != nil {
		c.OrdersPlaced.WithLabelValues(symbol, role).Inc()
	}
}

func (c *Collectors) OrderFailed(symbol, role string) {
	if c != nil {
		c.OrderFailures.WithLabelValues(symbol, role).Inc()
	}
}

func (c *Collectors) EntryFilled(symbol string, level byte) {
	if c != nil {
		c.EntryFills.WithLabelValues(symbol, string(level)).Inc()
	}
}

func (c *Collectors) StopLossTriggered(symbol string) {
	if c != nil {
		c.StopLossTriggers.WithLabelValues(symbol).Inc()
	}
}

func (c *Collectors) PauseEntered(symbol string) {
	if c != nil {
		c.PausesEntered.WithLabelValues(symbol).Inc()
		c.PauseActive.WithLabelValues(symbol).Set(1)
	}
}

func (c *Collectors) PauseExtended(symbol string) {
	if c != nil {
		c.PausesExtended.WithLabelValues(symbol).Inc()
	}
}

func (c *Collectors) PauseCleared(symbol string) {
	if c != nil {
		c.PauseActive.WithLabelValues(symbol).Set(0)
	}
}

func (c *Collectors) ResetDone(symbol string) {
	if c != nil {
		c.Resets.WithLabelValues(symbol).Inc()
	}
}

func (c *Collectors) SetReferencePrice(symbol string, price float64) {
	if c != nil {
		c.ReferencePrice.WithLabelValues(symbol).Set(price)
	}
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}

// Package metrics exposes Prometheus instrumentation for the bot:
//
//	bot_ticks_total                  – control-loop iterations
//	bot_signals_total{signal}        – evaluator decisions (buy|sell|none)
//	bot_entries_total{side}          – positions opened
//	bot_closes_total{reason}         – positions closed (take_profit|stop_loss|cancel)
//	bot_daily_pnl_usd                – current daily realized P&L (gauge)
//	bot_halts_total{reason}          – risk-limit halts
//	bot_feed_reconnects_total        – websocket feed reconnections
//
// Registered in init() and served at /metrics when the metrics listener is
// enabled in config.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_ticks_total",
		Help: "Control loop iterations",
	})

	signals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_signals_total",
		Help: "Evaluator decisions",
	}, []string{"signal"})

	entries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_entries_total",
		Help: "Positions opened",
	}, []string{"side"})

	closes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_closes_total",
		Help: "Positions closed by reason",
	}, []string{"reason"})

	dailyPnl = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_daily_pnl_usd",
		Help: "Daily realized P&L",
	})

	halts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_halts_total",
		Help: "Risk-limit halts",
	}, []string{"reason"})

	feedReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_feed_reconnects_total",
		Help: "Websocket feed reconnections",
	})
)

func init() {
	prometheus.MustRegister(ticks, signals, entries, closes, dailyPnl, halts, feedReconnects)
}

func IncTick()                  { ticks.Inc() }
func IncSignal(signal string)   { signals.WithLabelValues(signal).Inc() }
func IncEntry(side string)      { entries.WithLabelValues(side).Inc() }
func IncClose(reason string)    { closes.WithLabelValues(reason).Inc() }
func SetDailyPnl(v float64)     { dailyPnl.Set(v) }
func IncHalt(reason string)     { halts.WithLabelValues(reason).Inc() }
func IncFeedReconnect()         { feedReconnects.Inc() }

// Serve starts the /metrics listener. It blocks, so run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

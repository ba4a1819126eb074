package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TradesExecuted counts executed trades by side (buy/sell)
var TradesExecuted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "commodex_trades_total",
		Help: "Total number of trades executed by the engine",
	},
	[]string{"side"},
)

// TradeVolume accumulates the value (amount * price) of executed trades by side
var TradeVolume = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "commodex_trade_volume_total",
		Help: "Total traded value in ledger units",
	},
	[]string{"side"},
)

// PlatformFees accumulates the platform fee levied on trades
var PlatformFees = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "commodex_platform_fees_total",
		Help: "Total platform fees levied in ledger units",
	},
)

// PriceUpdates counts committed price changes by source (auto/admin)
var PriceUpdates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "commodex_price_updates_total",
		Help: "Number of commodity price changes",
	},
	[]string{"source"},
)

// Rejections counts failed engine operations by operation and error kind
var Rejections = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "commodex_rejections_total",
		Help: "Engine operations rejected, by operation and error kind",
	},
	[]string{"op", "kind"},
)

// OperationLatency records how long engine operations take
var OperationLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "commodex_operation_latency_seconds",
		Help:    "Latency in seconds of engine operations",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"op"},
)

// EventPublishFailures counts domain events the broker publisher dropped or failed to write
var EventPublishFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "commodex_event_publish_failures_total",
		Help: "Domain events that could not be delivered to the broker",
	},
)

func init() {
	prometheus.MustRegister(TradesExecuted, TradeVolume, PlatformFees, PriceUpdates)
	prometheus.MustRegister(Rejections, OperationLatency, EventPublishFailures)
}

// Price update sources
const (
	SourceAuto  = "auto"
	SourceAdmin = "admin"
)

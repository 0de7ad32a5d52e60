// Package observability holds the prometheus collectors and health handlers.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_store_saves_total",
			Help: "Whole-collection writes by outcome",
		},
		[]string{"outcome"},
	)

	StoreLoadFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_store_load_failures_total",
			Help: "Loads that degraded to an empty collection",
		},
		[]string{"reason"},
	)

	FanoutDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "support_fanout_deliveries_total",
			Help: "Callback invocations made by the fan-out hub",
		},
	)

	FanoutSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_fanout_subscribers",
			Help: "Currently registered fan-out callbacks",
		},
	)

	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_poll_cycles_total",
			Help: "Store re-reads performed by the fan-out poller",
		},
		[]string{"trigger"},
	)

	MessagesAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_messages_appended_total",
			Help: "Messages appended to the ledger",
		},
		[]string{"category", "sender_group"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_notifications_total",
			Help: "Delivery side effects by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	StoreSaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "support_store_save_duration_seconds",
			Help:    "Latency of whole-collection writes",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var WatchStreamsActive = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "support_watch_streams_active",
		Help: "Open chat watch streams by transport",
	},
	[]string{"transport"},
)

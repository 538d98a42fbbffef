package services

import "github.com/prometheus/client_golang/prometheus"

var (
	syncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_sync_total",
			Help: "Full syncs by outcome (online, fallback, offline).",
		},
		[]string{"outcome"},
	)

	syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "directory_sync_duration_seconds",
			Help:    "Duration of full syncs in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	syncPages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_sync_pages_total",
			Help: "Merchant pages fetched from the remote backend.",
		},
	)

	hydrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_hydrations_total",
			Help: "Detail hydrations by result (fetched, cached, offline, failed, stale).",
		},
		[]string{"result"},
	)

	remoteWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_remote_write_failures_total",
			Help: "Remote write failures by operation.",
		},
		[]string{"op"},
	)

	assetDeleteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_asset_delete_failures_total",
			Help: "Stored images that could not be deleted.",
		},
	)

	merchantsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "directory_merchants",
			Help: "Merchants currently held in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		syncTotal,
		syncDuration,
		syncPages,
		hydrations,
		remoteWriteFailures,
		assetDeleteFailures,
		merchantsGauge,
	)
}

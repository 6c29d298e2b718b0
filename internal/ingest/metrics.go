package ingest

import "github.com/prometheus/client_golang/prometheus"

// Ingest outcomes used as the "outcome" label.
const (
	outcomeImported    = "imported"
	outcomeDuplicate   = "duplicate"
	outcomeStorageErr  = "storage_error"
	outcomeDBErr       = "db_error"
	outcomeFetchErr    = "fetch_error"
	outcomeRejected    = "rejected"
	outcomeUnsupported = "unsupported"
)

var (
	ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recorder_ingest_total",
			Help: "Ingestion attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	botPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recorder_bot_poll_total",
			Help: "Bot long-poll requests by outcome (ok, error).",
		},
		[]string{"outcome"},
	)

	botCursor = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recorder_bot_cursor",
			Help: "Highest bot update id consumed.",
		},
	)
)

func init() {
	prometheus.MustRegister(ingestTotal, botPolls, botCursor)
}

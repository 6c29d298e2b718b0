package storage

import "github.com/prometheus/client_golang/prometheus"

// storageOps counts provider operations by backend, op and outcome
// (ok, not_found, error).
var storageOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "recorder_storage_ops_total",
		Help: "Storage provider operations by backend, operation and outcome.",
	},
	[]string{"backend", "op", "outcome"},
)

func init() {
	prometheus.MustRegister(storageOps)
}

func observe(backend, op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case isNotFound(err):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	storageOps.WithLabelValues(backend, op, outcome).Inc()
}

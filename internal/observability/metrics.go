package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "office_report",
		Subsystem: "records",
		Name:      "submitted_total",
		Help:      "Number of office reports persisted, labeled by office.",
	}, []string{"office"})

	validationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "office_report",
		Subsystem: "records",
		Name:      "validation_failures_total",
		Help:      "Number of report submissions rejected before reaching the store.",
	})

	storeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "office_report",
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Number of record store failures, labeled by operation.",
	}, []string{"op"})

	visitorAttachFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "office_report",
		Subsystem: "store",
		Name:      "visitor_attach_failures_total",
		Help:      "Number of persisted reports whose visitors could not be stored.",
	})

	recordPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "office_report",
		Subsystem: "persistence",
		Name:      "last_record_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent report persisted.",
	})
)

func init() {
	prometheus.MustRegister(recordsSubmitted, validationFailures, storeErrors, visitorAttachFailures, recordPersistGauge)
}

// RecordSubmitted counts a persisted report and moves the persistence watermark.
func RecordSubmitted(office string, ts time.Time) {
	recordsSubmitted.WithLabelValues(office).Inc()
	if ts.IsZero() {
		return
	}
	recordPersistGauge.Set(float64(ts.Unix()))
}

// RecordValidationFailure counts a rejected submission.
func RecordValidationFailure() {
	validationFailures.Inc()
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	storeErrors.WithLabelValues(op).Inc()
}

// RecordVisitorAttachFailure counts a visitor insert that failed after its parent was stored.
func RecordVisitorAttachFailure() {
	visitorAttachFailures.Inc()
}

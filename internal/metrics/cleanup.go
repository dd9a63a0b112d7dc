package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cleanup subsystem metrics
var (
	// CleanupDuration tracks how long cleanup runs take
	CleanupDuration prometheus.Histogram

	// BytesReclaimedTotal tracks bytes freed by deleting or moving duplicates
	BytesReclaimedTotal prometheus.Counter

	// ActionsTotal counts cleanup actions by kind (DELETE, MOVE, DRY_RUN, SKIP, ERROR)
	ActionsTotal *prometheus.CounterVec

	// SetsMarkedTotal counts sets a rule committed, by rule
	SetsMarkedTotal *prometheus.CounterVec

	// CleanupLastRunTimestamp records Unix timestamp of the last cleanup
	CleanupLastRunTimestamp prometheus.Gauge

	// CleanupLastRule flags the rule used by the last cleanup
	CleanupLastRule *prometheus.GaugeVec

	// ErrorsTotal tracks errors outside per-file actions
	ErrorsTotal prometheus.Counter
)

func initCleanupMetrics() {
	CleanupDuration = NewDurationHistogram(
		"dupsweep_cleanup_duration_seconds",
		"Duration of cleanup runs in seconds.",
	)

	BytesReclaimedTotal = NewBytesCounter(
		"dupsweep_cleanup_bytes_reclaimed_total",
		"Total bytes reclaimed by removing duplicates.",
	)

	ActionsTotal = NewCounterVec(
		"dupsweep_cleanup_actions_total",
		"Cleanup actions performed, by action.",
		[]string{"action"},
	)

	SetsMarkedTotal = NewCounterVec(
		"dupsweep_cleanup_sets_marked_total",
		"Duplicate sets committed by a marking rule.",
		[]string{"rule"},
	)

	CleanupLastRunTimestamp = NewGauge(
		"dupsweep_cleanup_last_run_timestamp",
		"Timestamp of the last cleanup run (Unix epoch seconds).",
	)

	CleanupLastRule = NewGaugeVec(
		"dupsweep_cleanup_last_rule",
		"Marking rule used by the last cleanup (1 = active).",
		[]string{"rule"},
	)

	ErrorsTotal = NewCounter(
		"dupsweep_errors_total",
		"Total number of errors encountered by dupsweep.",
	)
}

func registerCleanupMetrics() {
	prometheus.MustRegister(CleanupDuration)
	prometheus.MustRegister(BytesReclaimedTotal)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(SetsMarkedTotal)
	prometheus.MustRegister(CleanupLastRunTimestamp)
	prometheus.MustRegister(CleanupLastRule)
	prometheus.MustRegister(ErrorsTotal)
}

// SetCleanupRule resets the rule gauges and flags the active one
func SetCleanupRule(rule string) {
	modeMutex.Lock()
	defer modeMutex.Unlock()

	CleanupLastRule.Reset()
	CleanupLastRule.WithLabelValues(rule).Set(1)
}

// RecordAction counts one cleanup action and the bytes it reclaimed
func RecordAction(action string, bytes int64) {
	ActionsTotal.WithLabelValues(action).Inc()
	if bytes > 0 {
		BytesReclaimedTotal.Add(float64(bytes))
	}
}

// RecordCleanupRun updates the last run timestamp and duration
func RecordCleanupRun(elapsed time.Duration) {
	CleanupDuration.Observe(elapsed.Seconds())
	CleanupLastRunTimestamp.Set(float64(time.Now().Unix()))
}

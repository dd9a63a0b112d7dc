package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scan subsystem metrics
var (
	// FilesScannedTotal counts entries reported by the walker
	FilesScannedTotal prometheus.Counter

	// FilesRejectedTotal counts symlinks, empty and unreadable files dropped at populate
	FilesRejectedTotal prometheus.Counter

	// FilesEliminatedTotal counts files removed per elimination stage
	FilesEliminatedTotal *prometheus.CounterVec

	// FeatureErrorsTotal counts per-file read failures per stage
	FeatureErrorsTotal *prometheus.CounterVec

	// BytesHashedTotal counts bytes fed to the full hash
	BytesHashedTotal prometheus.Counter

	// DuplicateGroups is the number of sets found by the last scan
	DuplicateGroups prometheus.Gauge

	// DuplicateFiles is the number of files in those sets beyond one per set
	DuplicateFiles prometheus.Gauge

	// DuplicateSizes tracks the size of every file found in a duplicate set
	DuplicateSizes prometheus.Histogram

	// ScanDuration tracks how long a scan takes
	ScanDuration prometheus.Histogram

	// ScanLastRunTimestamp records Unix timestamp of the last scan
	ScanLastRunTimestamp prometheus.Gauge

	// RootFreeBytes is the free space of the filesystem holding each root
	RootFreeBytes *prometheus.GaugeVec
)

func initScanMetrics() {
	FilesScannedTotal = NewCounter(
		"dupsweep_scan_files_total",
		"Total number of entries reported by the walker.",
	)

	FilesRejectedTotal = NewCounter(
		"dupsweep_scan_files_rejected_total",
		"Entries never considered for matching (symlinks, empty or unreadable files).",
	)

	FilesEliminatedTotal = NewCounterVec(
		"dupsweep_scan_files_eliminated_total",
		"Files proven unique at each elimination stage.",
		[]string{"stage"},
	)

	FeatureErrorsTotal = NewCounterVec(
		"dupsweep_scan_feature_errors_total",
		"Files dropped because a feature could not be read.",
		[]string{"stage"},
	)

	BytesHashedTotal = NewBytesCounter(
		"dupsweep_scan_bytes_hashed_total",
		"Total bytes read by the full content hash.",
	)

	DuplicateGroups = NewGauge(
		"dupsweep_scan_duplicate_groups",
		"Number of duplicate sets found by the last scan.",
	)

	DuplicateFiles = NewGauge(
		"dupsweep_scan_duplicate_files",
		"Number of redundant files found by the last scan.",
	)

	DuplicateSizes = NewBytesHistogram(
		"dupsweep_scan_duplicate_size_bytes",
		"Size of files belonging to a duplicate set.",
	)

	ScanDuration = NewDurationHistogram(
		"dupsweep_scan_duration_seconds",
		"Duration of scans in seconds.",
	)

	ScanLastRunTimestamp = NewGauge(
		"dupsweep_scan_last_run_timestamp",
		"Timestamp of the last scan (Unix epoch seconds).",
	)

	RootFreeBytes = NewGaugeVec(
		"dupsweep_root_free_bytes",
		"Free bytes on the filesystem holding a scan root.",
		[]string{"root"},
	)
}

func registerScanMetrics() {
	prometheus.MustRegister(FilesScannedTotal)
	prometheus.MustRegister(FilesRejectedTotal)
	prometheus.MustRegister(FilesEliminatedTotal)
	prometheus.MustRegister(FeatureErrorsTotal)
	prometheus.MustRegister(BytesHashedTotal)
	prometheus.MustRegister(DuplicateGroups)
	prometheus.MustRegister(DuplicateFiles)
	prometheus.MustRegister(DuplicateSizes)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(ScanLastRunTimestamp)
	prometheus.MustRegister(RootFreeBytes)
}

// RecordElimination adds n eliminated files to a stage
func RecordElimination(stage string, n int) {
	if n > 0 {
		FilesEliminatedTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// RecordFeatureError counts one unreadable file at a stage
func RecordFeatureError(stage string) {
	FeatureErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordScan stores the outcome of a finished scan
func RecordScan(groups, duplicates int, elapsed time.Duration) {
	DuplicateGroups.Set(float64(groups))
	DuplicateFiles.Set(float64(duplicates))
	ScanDuration.Observe(elapsed.Seconds())
	ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
}

// SetRootFree records the free space seen under a root
func SetRootFree(root string, free int64) {
	RootFreeBytes.WithLabelValues(root).Set(float64(free))
}

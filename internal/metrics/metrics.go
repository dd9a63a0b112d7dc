package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce  sync.Once
	modeMutex sync.Mutex
)

// Init initializes all metrics subsystems and registers them with Prometheus.
// It is safe to call multiple times.
func Init() {
	initOnce.Do(func() {
		initScanMetrics()
		initCleanupMetrics()

		registerScanMetrics()
		registerCleanupMetrics()

		// Present from the first export, before any run
		ScanLastRunTimestamp.Set(0)
		CleanupLastRunTimestamp.Set(0)
	})
}

// WriteTextfile dumps the default registry in the text exposition format for
// the node_exporter textfile collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		ErrorsTotal.Inc()
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

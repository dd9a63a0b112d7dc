package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DurationBuckets covers a quick rescan up to a full-hash pass over a
	// large archive (1s to 2h).
	DurationBuckets = []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200}

	// SizeBuckets grows by 4x from 4KiB to 16GiB. Duplicates range from
	// thumbnails to disk images.
	SizeBuckets = prometheus.ExponentialBuckets(4096, 4, 12)
)

func NewDurationHistogram(name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: DurationBuckets,
	})
}

// NewBytesHistogram creates a histogram over file sizes using SizeBuckets.
func NewBytesHistogram(name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: SizeBuckets,
	})
}

// NewBytesCounter creates a byte counter. Callers name it with a
// _bytes_total suffix.
func NewBytesCounter(name, help string) prometheus.Counter {
	return NewCounter(name, help)
}

func NewCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
}

func NewCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func NewGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
}

func NewGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
}

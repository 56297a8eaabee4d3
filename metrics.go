package docindex

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var KeysEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docindex",
	Subsystem: "extract",
	Name:      "keys",
}, []string{"table", "index"})

var RowsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docindex",
	Subsystem: "extract",
	Name:      "skipped_rows",
}, []string{"table", "index"})

var ExtractFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docindex",
	Subsystem: "extract",
	Name:      "failures",
}, []string{"table", "index", "reason"})

var BackfillDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "docindex",
	Subsystem: "backfill",
	Name:      "duration_ms",
	Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
}, []string{"table", "index"})

// Collectors returns the metrics of this package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{KeysEmitted, RowsSkipped, ExtractFailures, BackfillDuration}
}

func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observeExtract records the outcome of one Extract call.
func observeExtract(idx *Index, keys int, err error) {
	if err != nil {
		ExtractFailures.WithLabelValues(idx.table.Name, idx.Name(), failureReason(err)).Inc()
		return
	}
	if keys == 0 {
		RowsSkipped.WithLabelValues(idx.table.Name, idx.Name()).Inc()
		return
	}
	KeysEmitted.WithLabelValues(idx.table.Name, idx.Name()).Add(float64(keys))
}

func failureReason(err error) string {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return string(ee.Reason)
	}
	return "other"
}

package engine

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// metrics is the engine's in-process counter set: plain atomic.Int64 fields
// in the same style as Engine's own closed atomic.Bool and nextSegmentID
// bookkeeping, rather than a Prometheus-style registry — no metrics exporter
// appears anywhere in the pack this engine is built from, so the counters
// exist to be logged on Close, not scraped.
type metrics struct {
	flushCount      atomic.Int64
	compactionCount atomic.Int64
	walBytesWritten atomic.Int64
}

func (m *metrics) recordFlush() {
	m.flushCount.Add(1)
}

func (m *metrics) recordCompaction() {
	m.compactionCount.Add(1)
}

func (m *metrics) recordWALBytes(n int) {
	m.walBytesWritten.Add(int64(n))
}

// logSummary emits one structured log line with every counter, plus an
// aggregate bloom-filter false-positive rate across segments (the readers
// passed in are whatever e.segments holds at the time of the call — callers
// own ordering with respect to Close tearing them down).
func (m *metrics) logSummary(log *zap.SugaredLogger, segments []bloomStatter) {
	var checks, falsePositives int64
	for _, s := range segments {
		c, fp := s.BloomStats()
		checks += c
		falsePositives += fp
	}

	var fpRate float64
	if checks > 0 {
		fpRate = float64(falsePositives) / float64(checks)
	}

	log.Infow("engine metrics",
		"flushCount", m.flushCount.Load(),
		"compactionCount", m.compactionCount.Load(),
		"walBytesWritten", m.walBytesWritten.Load(),
		"bloomChecks", checks,
		"bloomFalsePositives", falsePositives,
		"bloomFalsePositiveRate", fpRate,
	)
}

// bloomStatter narrows *sstable.Reader to the one method logSummary needs,
// so metrics_test.go can exercise the rate computation against a fake.
type bloomStatter interface {
	BloomStats() (checks, falsePositives int64)
}

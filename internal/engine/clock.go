package engine

import "time"

// nowNanos is the engine's sole source of wall-clock time, isolated here so
// compaction output naming stays testable without a fake clock threaded
// through every call site.
func nowNanos() int64 {
	return time.Now().UnixNano()
}

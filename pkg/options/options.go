// Package options provides data structures and functions for configuring the
// kore storage engine. It defines the parameters that control the LSM write
// path (flush threshold, compaction trigger), the SSTable reader (sparse
// index sampling rate), the bloom filter, the write-ahead log, and the HNSW
// vector index, following the functional-options pattern used throughout the
// rest of the engine.
package options

import "strings"

// segmentOptions configures on-disk segment naming and layout.
type segmentOptions struct {
	// Directory is the subdirectory, relative to DataDir, where segment and
	// manifest files are stored.
	//
	// Default: "" (segments live directly in DataDir)
	Directory string `json:"directory"`

	// Prefix is the filename prefix for segment files: "<prefix>_<n>.sst".
	//
	// Default: "segment"
	Prefix string `json:"prefix"`
}

// hnswOptions configures the HNSW vector index.
type hnswOptions struct {
	// M is the maximum number of neighbors retained per node per layer.
	//
	// Default: 16
	M int `json:"m"`

	// EfConstruction bounds the candidate list size explored while inserting
	// a node. Larger values build a higher-recall graph at higher insert cost.
	//
	// Default: 200
	EfConstruction int `json:"efConstruction"`

	// EfSearch bounds the candidate list size explored while searching.
	// Larger values trade search latency for recall.
	//
	// Default: 50
	EfSearch int `json:"efSearch"`
}

// bloomOptions configures the per-segment bloom filter.
type bloomOptions struct {
	// Bits is the bit-array size m, in bits, sized per segment at flush/
	// compaction time.
	//
	// Default: 1,000,000 (~1% FP at ~100k keys with 3 hash functions)
	Bits uint32 `json:"bits"`

	// HashCount is the number of derived hash positions k per key.
	//
	// Default: 3
	HashCount uint32 `json:"hashCount"`
}

// Options defines the configuration parameters for a kore engine instance.
type Options struct {
	// DataDir is the base path where the engine stores its WAL, segment, and
	// manifest files.
	//
	// Default: "/var/lib/koredb"
	DataDir string `json:"dataDir"`

	// FlushThreshold is the MemTable resident-bytes threshold T that triggers
	// an automatic flush to a new segment.
	//
	// Default: 4 MiB
	FlushThreshold uint64 `json:"flushThreshold"`

	// CompactionTrigger is the segment count C at or above which a flush
	// triggers background compaction.
	//
	// Default: 3
	CompactionTrigger int `json:"compactionTrigger"`

	// SparseIndexSampleRate is the sampling interval N for an SSTable
	// reader's in-memory sparse index: every Nth key is sampled.
	//
	// Default: 128
	SparseIndexSampleRate int `json:"sparseIndexSampleRate"`

	// WALUrgentSync, when true, forces every batch to device before
	// returning, whatever urgency the caller passes; when false, each
	// call's own urgent flag decides.
	//
	// Default: true
	WALUrgentSync bool `json:"walUrgentSync"`

	// SegmentOptions configures on-disk segment naming.
	SegmentOptions *segmentOptions `json:"segmentOptions"`

	// BloomOptions configures the per-segment bloom filter.
	BloomOptions *bloomOptions `json:"bloomOptions"`

	// HNSWOptions configures the vector similarity index.
	HNSWOptions *hnswOptions `json:"hnswOptions"`
}

// OptionFunc is a function type that modifies the engine's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies a predefined set of default configuration
// values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		*o = opts
	}
}

// WithDataDir sets the primary data directory.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithFlushThreshold sets the MemTable size threshold that triggers a flush.
func WithFlushThreshold(bytes uint64) OptionFunc {
	return func(o *Options) {
		if bytes > 0 {
			o.FlushThreshold = bytes
		}
	}
}

// WithCompactionTrigger sets the segment count that triggers compaction.
func WithCompactionTrigger(segments int) OptionFunc {
	return func(o *Options) {
		if segments >= 2 {
			o.CompactionTrigger = segments
		}
	}
}

// WithSparseIndexSampleRate sets the SSTable sparse-index sampling interval.
func WithSparseIndexSampleRate(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.SparseIndexSampleRate = n
		}
	}
}

// WithWALUrgentSync sets whether batches force-sync to device by default.
func WithWALUrgentSync(urgent bool) OptionFunc {
	return func(o *Options) { o.WALUrgentSync = urgent }
}

// WithSegmentDir sets the directory (relative to DataDir) holding segment
// and manifest files.
func WithSegmentDir(directory string) OptionFunc {
	return func(o *Options) {
		o.SegmentOptions.Directory = strings.TrimSpace(directory)
	}
}

// WithSegmentPrefix sets the filename prefix for segment files.
func WithSegmentPrefix(prefix string) OptionFunc {
	return func(o *Options) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" {
			o.SegmentOptions.Prefix = prefix
		}
	}
}

// WithBloomFilter sets the bloom filter bit count and hash count.
func WithBloomFilter(bits, hashCount uint32) OptionFunc {
	return func(o *Options) {
		if bits > 0 {
			o.BloomOptions.Bits = bits
		}
		if hashCount > 0 {
			o.BloomOptions.HashCount = hashCount
		}
	}
}

// WithHNSWParams sets the HNSW graph construction and search parameters.
func WithHNSWParams(m, efConstruction, efSearch int) OptionFunc {
	return func(o *Options) {
		if m > 0 {
			o.HNSWOptions.M = m
		}
		if efConstruction > 0 {
			o.HNSWOptions.EfConstruction = efConstruction
		}
		if efSearch > 0 {
			o.HNSWOptions.EfSearch = efSearch
		}
	}
}

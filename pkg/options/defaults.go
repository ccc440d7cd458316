package options

const (
	// DefaultDataDir is the default base directory where kore stores its
	// data files if no other directory is specified during initialization.
	DefaultDataDir = "/var/lib/koredb"

	// DefaultFlushThreshold is the default MemTable resident-bytes threshold
	// T that triggers an automatic flush (4 MiB; spec's quoted range is
	// 1-16 MiB, see SPEC_FULL.md open-question decisions).
	DefaultFlushThreshold uint64 = 4 * 1024 * 1024

	// DefaultCompactionTrigger is the default segment count C that triggers
	// background compaction.
	DefaultCompactionTrigger = 3

	// DefaultSparseIndexSampleRate is the default SSTable sparse-index
	// sampling interval N.
	DefaultSparseIndexSampleRate = 128

	// DefaultSegmentDirectory is the default subdirectory within DataDir
	// where segment and manifest files are stored.
	DefaultSegmentDirectory = ""

	// DefaultSegmentPrefix is the default prefix for segment file names:
	// "segment_1.sst".
	DefaultSegmentPrefix = "segment"

	// DefaultBloomBits is the default bloom filter bit-array size m.
	DefaultBloomBits uint32 = 1_000_000

	// DefaultBloomHashCount is the default bloom filter hash count k.
	DefaultBloomHashCount uint32 = 3

	// DefaultHNSWM is the default maximum neighbor count per HNSW layer.
	DefaultHNSWM = 16

	// DefaultHNSWEfConstruction is the default HNSW insert-time candidate
	// list bound.
	DefaultHNSWEfConstruction = 200

	// DefaultHNSWEfSearch is the default HNSW search-time candidate list
	// bound.
	DefaultHNSWEfSearch = 50
)

// NewDefaultOptions returns a fresh Options populated with default values.
// Each call allocates new nested structs so callers that mutate the result
// (directly, or via OptionFunc) never share state with other callers.
func NewDefaultOptions() Options {
	return Options{
		DataDir:               DefaultDataDir,
		FlushThreshold:        DefaultFlushThreshold,
		CompactionTrigger:     DefaultCompactionTrigger,
		SparseIndexSampleRate: DefaultSparseIndexSampleRate,
		WALUrgentSync:         true,
		SegmentOptions: &segmentOptions{
			Prefix:    DefaultSegmentPrefix,
			Directory: DefaultSegmentDirectory,
		},
		BloomOptions: &bloomOptions{
			Bits:      DefaultBloomBits,
			HashCount: DefaultBloomHashCount,
		},
		HNSWOptions: &hnswOptions{
			M:              DefaultHNSWM,
			EfConstruction: DefaultHNSWEfConstruction,
			EfSearch:       DefaultHNSWEfSearch,
		},
	}
}

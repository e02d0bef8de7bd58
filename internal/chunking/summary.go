package chunking

// Summary reports how much a chunk plan reduces downstream provider calls.
type Summary struct {
	OriginalSegments int            `json:"original_segments"`
	ChunkCount       int            `json:"chunk_count"`
	ReductionPercent float64        `json:"reduction_percent"`
	DurationBuckets  map[string]int `json:"duration_buckets"`
}

var bucketBounds = []struct {
	label string
	upper float64
}{
	{"under_5s", 5},
	{"5s_to_15s", 15},
	{"15s_to_30s", 30},
	{"over_30s", 0},
}

func summarize(originalCount int, chunks []Chunk) Summary {
	summary := Summary{
		OriginalSegments: originalCount,
		ChunkCount:       len(chunks),
		DurationBuckets:  make(map[string]int, len(bucketBounds)),
	}
	if originalCount > 0 {
		summary.ReductionPercent = 100 * float64(originalCount-len(chunks)) / float64(originalCount)
	}
	for _, chunk := range chunks {
		summary.DurationBuckets[bucketFor(chunk.Duration)]++
	}
	return summary
}

func bucketFor(duration float64) string {
	for _, bound := range bucketBounds {
		if bound.upper > 0 && duration < bound.upper {
			return bound.label
		}
	}
	return bucketBounds[len(bucketBounds)-1].label
}

package chunking

import (
	"overdub/internal/transcript"
)

// ChunkByTime groups ordered segments into chunks whose span stays at or below
// the duration bound. A single segment longer than the bound becomes its own
// chunk unchanged. A refinement pass then nudges boundaries onto sentence ends
// within the buffer window so chunks are not severed mid-sentence.
func ChunkByTime(segments []transcript.Segment, opts Options) ([]Chunk, Summary) {
	opts = opts.withDefaults()
	if len(segments) == 0 {
		return nil, Summary{}
	}

	boundaries := planBoundaries(segments, opts.MaxDuration)
	boundaries = refineBoundaries(segments, boundaries, opts)

	chunks := make([]Chunk, 0, len(boundaries))
	start := 0
	for _, end := range boundaries {
		chunks = append(chunks, buildChunk(segments[start:end]))
		start = end
	}
	return chunks, summarize(len(segments), chunks)
}

// planBoundaries returns the exclusive end index of each chunk.
func planBoundaries(segments []transcript.Segment, maxDuration float64) []int {
	var boundaries []int
	chunkStart := 0
	for i := 1; i < len(segments); i++ {
		if segments[i].End-segments[chunkStart].Start > maxDuration {
			boundaries = append(boundaries, i)
			chunkStart = i
		}
	}
	return append(boundaries, len(segments))
}

// refineBoundaries moves each internal boundary back to the latest segment in
// the preceding chunk that ends a sentence within the buffer window, provided
// the shortened chunk keeps the minimum duration and the grown successor chunk
// stays under the ceiling.
func refineBoundaries(segments []transcript.Segment, boundaries []int, opts Options) []int {
	chunkStart := 0
	for b := 0; b < len(boundaries)-1; b++ {
		boundary := boundaries[b]
		last := boundary - 1
		if endsSentence(segments[last].Text) {
			chunkStart = boundary
			continue
		}
		boundaryTime := segments[last].End
		nextEnd := boundaries[b+1]
		for j := last - 1; j > chunkStart; j-- {
			if boundaryTime-segments[j].End > opts.BoundaryBuffer {
				break
			}
			if !endsSentence(segments[j].Text) {
				continue
			}
			if segments[j].End-segments[chunkStart].Start < opts.MinDuration {
				continue
			}
			if segments[nextEnd-1].End-segments[j+1].Start > opts.MaxDuration {
				continue
			}
			boundaries[b] = j + 1
			break
		}
		chunkStart = boundaries[b]
	}
	return boundaries
}

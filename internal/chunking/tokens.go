package chunking

import (
	"strings"

	"overdub/internal/transcript"
)

// EstimateTokens approximates the token count of text. Roughly four
// characters per token, never below the word count.
func EstimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := (len(trimmed) + 3) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		return words
	}
	return estimate
}

// ChunkByTokens groups segments so each chunk's estimated token count stays
// under the ceiling. A single segment that alone exceeds the ceiling is split
// on word boundaries into sub-chunks, each assigned a prorated share of the
// segment's time interval.
func ChunkByTokens(segments []transcript.Segment, opts Options) ([]Chunk, Summary) {
	opts = opts.withDefaults()
	if len(segments) == 0 {
		return nil, Summary{}
	}

	var chunks []Chunk
	var pending []transcript.Segment
	pendingTokens := 0

	flush := func() {
		if len(pending) > 0 {
			chunks = append(chunks, buildChunk(pending))
			pending = nil
			pendingTokens = 0
		}
	}

	for _, seg := range segments {
		tokens := EstimateTokens(seg.Text)
		if tokens > opts.TokenCeiling {
			flush()
			chunks = append(chunks, splitOversizeSegment(seg, opts.TokenCeiling)...)
			continue
		}
		if pendingTokens+tokens > opts.TokenCeiling {
			flush()
		}
		pending = append(pending, seg)
		pendingTokens += tokens
	}
	flush()

	return chunks, summarize(len(segments), chunks)
}

// splitOversizeSegment divides a segment's words into runs that each fit the
// ceiling, spreading the original duration evenly across the word count.
func splitOversizeSegment(seg transcript.Segment, ceiling int) []Chunk {
	words := strings.Fields(seg.Text)
	if len(words) == 0 {
		return []Chunk{{Start: seg.Start, End: seg.End, Duration: seg.Duration(), SegmentCount: 1}}
	}
	perWord := seg.Duration() / float64(len(words))

	var chunks []Chunk
	runStart := 0
	runTokens := 0
	for i, word := range words {
		tokens := EstimateTokens(word)
		if runTokens+tokens > ceiling && i > runStart {
			chunks = append(chunks, wordRunChunk(seg, words, runStart, i, perWord))
			runStart = i
			runTokens = 0
		}
		runTokens += tokens
	}
	chunks = append(chunks, wordRunChunk(seg, words, runStart, len(words), perWord))

	// The final run inherits any floating point remainder so the sub-chunks
	// cover the original interval exactly.
	chunks[len(chunks)-1].End = seg.End
	chunks[len(chunks)-1].Duration = chunks[len(chunks)-1].End - chunks[len(chunks)-1].Start
	return chunks
}

func wordRunChunk(seg transcript.Segment, words []string, from, to int, perWord float64) Chunk {
	start := seg.Start + float64(from)*perWord
	end := seg.Start + float64(to)*perWord
	return Chunk{
		Start:        start,
		End:          end,
		Text:         strings.Join(words[from:to], " "),
		Duration:     end - start,
		SegmentCount: 1,
	}
}

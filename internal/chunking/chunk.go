package chunking

import (
	"strings"

	"overdub/internal/transcript"
)

// Chunk aggregates one or more contiguous transcript segments for a single
// downstream provider call.
type Chunk struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	Duration     float64 `json:"duration"`
	SegmentCount int     `json:"segment_count"`
}

// Options bounds the planners. Zero values fall back to the defaults below.
type Options struct {
	MaxDuration    float64
	MinDuration    float64
	BoundaryBuffer float64
	TokenCeiling   int
}

const (
	DefaultMaxDuration    = 30.0
	DefaultMinDuration    = 5.0
	DefaultBoundaryBuffer = 2.0
	DefaultTokenCeiling   = 30000
)

func (o Options) withDefaults() Options {
	if o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	if o.MinDuration <= 0 {
		o.MinDuration = DefaultMinDuration
	}
	if o.BoundaryBuffer <= 0 {
		o.BoundaryBuffer = DefaultBoundaryBuffer
	}
	if o.TokenCeiling <= 0 {
		o.TokenCeiling = DefaultTokenCeiling
	}
	return o
}

func buildChunk(segments []transcript.Segment) Chunk {
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			texts = append(texts, text)
		}
	}
	start := segments[0].Start
	end := segments[len(segments)-1].End
	return Chunk{
		Start:        start,
		End:          end,
		Text:         strings.Join(texts, " "),
		Duration:     end - start,
		SegmentCount: len(segments),
	}
}

var sentenceTerminators = []string{".", "!", "?", "。", "！", "？", "…"}

func endsSentence(text string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(text), `"')]»`)
	for _, terminator := range sentenceTerminators {
		if strings.HasSuffix(trimmed, terminator) {
			return true
		}
	}
	return false
}

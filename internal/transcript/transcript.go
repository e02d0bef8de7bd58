package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"overdub/internal/fileutil"
)

// Segment is the atomic transcript unit produced by speech recognition.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// TranslatedSegment pairs a source interval with its translated text.
type TranslatedSegment struct {
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	TextTranslated string  `json:"text_translated"`
	OriginalText   string  `json:"original_text,omitempty"`
}

// Issue describes a non-fatal problem found while validating a segment list.
type Issue struct {
	Index   int
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("segment %d: %s", i.Index, i.Message)
}

// Validate checks segment invariants. Inverted intervals and empty lists are
// hard errors; overlapping or out-of-order segments are reported as issues so
// the caller can decide between warning and rejecting (strict mode).
func Validate(segments []Segment) ([]Issue, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("transcript is empty")
	}
	var issues []Issue
	for i, seg := range segments {
		if seg.Start >= seg.End {
			return nil, fmt.Errorf("segment %d: start %.3f must be before end %.3f", i, seg.Start, seg.End)
		}
		if strings.TrimSpace(seg.Text) == "" {
			issues = append(issues, Issue{Index: i, Message: "empty text"})
		}
		if i == 0 {
			continue
		}
		prev := segments[i-1]
		if seg.Start < prev.Start {
			issues = append(issues, Issue{Index: i, Message: fmt.Sprintf("out of order: starts at %.3f before previous %.3f", seg.Start, prev.Start)})
		} else if seg.Start < prev.End {
			issues = append(issues, Issue{Index: i, Message: fmt.Sprintf("overlaps previous segment by %.3fs", prev.End-seg.Start)})
		}
	}
	return issues, nil
}

// Load reads a segment list artifact from disk.
func Load(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var segments []Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return segments, nil
}

// Save writes a segment list artifact atomically, backing up any previous
// version first so the filesystem-repair strategy has something to restore.
func Save(path string, segments []Segment) error {
	if err := fileutil.WriteBackup(path); err != nil {
		return fmt.Errorf("backup transcript: %w", err)
	}
	data, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// LoadTranslation reads a translated segment list artifact from disk.
func LoadTranslation(path string) ([]TranslatedSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read translation: %w", err)
	}
	var segments []TranslatedSegment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("parse translation: %w", err)
	}
	return segments, nil
}

// SaveTranslation writes a translated segment list artifact atomically.
func SaveTranslation(path string, segments []TranslatedSegment) error {
	if err := fileutil.WriteBackup(path); err != nil {
		return fmt.Errorf("backup translation: %w", err)
	}
	data, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return fmt.Errorf("encode translation: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// CheckTranslation verifies the translation collaborator contract: output
// must match input length and order, with text populated throughout.
func CheckTranslation(input []Segment, output []TranslatedSegment) error {
	if len(output) != len(input) {
		return fmt.Errorf("translation returned %d segments for %d inputs", len(output), len(input))
	}
	for i, seg := range output {
		if strings.TrimSpace(seg.TextTranslated) == "" {
			return fmt.Errorf("translation segment %d has empty text", i)
		}
		if seg.Start != input[i].Start || seg.End != input[i].End {
			return fmt.Errorf("translation segment %d timing mismatch: got [%.3f,%.3f] want [%.3f,%.3f]",
				i, seg.Start, seg.End, input[i].Start, input[i].End)
		}
	}
	return nil
}

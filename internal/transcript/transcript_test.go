package transcript

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateAcceptsCleanTranscript(t *testing.T) {
	issues, err := Validate([]Segment{
		{Start: 0, End: 2, Text: "Hello"},
		{Start: 2, End: 5, Text: "World"},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("issues = %v", issues)
	}
}

func TestValidateRejectsInvertedInterval(t *testing.T) {
	if _, err := Validate([]Segment{{Start: 3, End: 1, Text: "x"}}); err == nil {
		t.Fatal("expected error for start >= end")
	}
}

func TestValidateReportsOverlapAsIssue(t *testing.T) {
	issues, err := Validate([]Segment{
		{Start: 0, End: 2.5, Text: "a"},
		{Start: 2, End: 4, Text: "b"},
	})
	if err != nil {
		t.Fatalf("overlap should not be fatal: %v", err)
	}
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "overlaps") {
		t.Fatalf("issues = %v", issues)
	}
}

func TestValidateRejectsEmptyTranscript(t *testing.T) {
	if _, err := Validate(nil); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.json")
	want := []Segment{{Start: 0, End: 1.5, Text: "hi"}}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("got %v", got)
	}
}

func TestCheckTranslationLengthMismatch(t *testing.T) {
	input := []Segment{{Start: 0, End: 1, Text: "a"}, {Start: 1, End: 2, Text: "b"}}
	output := []TranslatedSegment{{Start: 0, End: 1, TextTranslated: "x"}}
	if err := CheckTranslation(input, output); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestCheckTranslationEmptyText(t *testing.T) {
	input := []Segment{{Start: 0, End: 1, Text: "a"}}
	output := []TranslatedSegment{{Start: 0, End: 1, TextTranslated: "  "}}
	if err := CheckTranslation(input, output); err == nil {
		t.Fatal("expected empty text error")
	}
}

func TestCheckTranslationTimingMismatch(t *testing.T) {
	input := []Segment{{Start: 0, End: 1, Text: "a"}}
	output := []TranslatedSegment{{Start: 0, End: 2, TextTranslated: "x"}}
	if err := CheckTranslation(input, output); err == nil {
		t.Fatal("expected timing mismatch error")
	}
}

func TestCheckTranslationOK(t *testing.T) {
	input := []Segment{{Start: 0, End: 1, Text: "a"}}
	output := []TranslatedSegment{{Start: 0, End: 1, TextTranslated: "x", OriginalText: "a"}}
	if err := CheckTranslation(input, output); err != nil {
		t.Fatalf("check: %v", err)
	}
}

package ffmpeg

import (
	"context"
	"slices"
	"testing"
)

func captureRunner(calls *[][]string) func(ctx context.Context, name string, args ...string) error {
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, append([]string{name}, args...))
		return nil
	}
}

func TestExtractAudioArgs(t *testing.T) {
	var calls [][]string
	tool := NewTool("ffmpeg")
	tool.WithCommandRunner(captureRunner(&calls))

	if err := tool.ExtractAudio(context.Background(), "in.mkv", 2, "out.wav"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	args := calls[0]
	if args[0] != "ffmpeg" {
		t.Fatalf("binary = %q", args[0])
	}
	for _, want := range [][]string{
		{"-map", "0:2"},
		{"-ac", "1"},
		{"-ar", "16000"},
		{"-c:a", "pcm_s16le"},
	} {
		if !containsPair(args, want[0], want[1]) {
			t.Fatalf("missing %v in %v", want, args)
		}
	}
	if args[len(args)-1] != "out.wav" {
		t.Fatalf("dest = %q", args[len(args)-1])
	}
}

func TestExtractAudioDefaultStreamOmitsMap(t *testing.T) {
	var calls [][]string
	tool := NewTool("")
	tool.WithCommandRunner(captureRunner(&calls))

	if err := tool.ExtractAudio(context.Background(), "in.mkv", -1, "out.wav"); err != nil {
		t.Fatal(err)
	}
	if slices.Contains(calls[0], "-map") {
		t.Fatalf("unexpected -map in %v", calls[0])
	}
}

func TestMuxCopiesVideoAndStopsAtShortest(t *testing.T) {
	var calls [][]string
	tool := NewTool("ffmpeg")
	tool.WithCommandRunner(captureRunner(&calls))

	if err := tool.Mux(context.Background(), "movie.mkv", "dub.wav", "dubbed.mkv"); err != nil {
		t.Fatalf("mux: %v", err)
	}
	args := calls[0]
	if !containsPair(args, "-c:v", "copy") {
		t.Fatalf("video must be stream-copied: %v", args)
	}
	if !containsPair(args, "-map", "1:a") {
		t.Fatalf("dub must replace audio: %v", args)
	}
	if !slices.Contains(args, "-shortest") {
		t.Fatalf("missing -shortest: %v", args)
	}
}

func TestValidationErrors(t *testing.T) {
	tool := NewTool("ffmpeg")
	if err := tool.ExtractAudio(context.Background(), "", 0, "out.wav"); err == nil {
		t.Fatal("expected error for empty source")
	}
	if err := tool.Mux(context.Background(), "", "dub.wav", "out.mkv"); err == nil {
		t.Fatal("expected error for empty video path")
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

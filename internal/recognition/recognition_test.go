package recognition

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"overdub/internal/config"
	"overdub/internal/services"
)

func TestTranscribeRunsWhisperXAndParsesOutput(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source_audio.wav")
	if err := os.WriteFile(source, []byte("wav"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService(config.Recognition{Model: "large-v3-turbo", Language: "ja"})
	var gotArgs []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotArgs = append([]string{name}, args...)
		payload := `{"segments": [
			{"text": " Hello ", "start": 0, "end": 2.5},
			{"text": "", "start": 2.5, "end": 3},
			{"text": "World", "start": 3, "end": 5}
		]}`
		return os.WriteFile(filepath.Join(dir, "source_audio.json"), []byte(payload), 0o644)
	})

	segments, err := svc.Transcribe(context.Background(), source, dir)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("segments = %d", len(segments))
	}
	if segments[0].Text != "Hello" || segments[0].End != 2.5 {
		t.Fatalf("segment 0 = %+v", segments[0])
	}
	if gotArgs[0] != UVXCommand || gotArgs[1] != "whisperx" {
		t.Fatalf("command = %v", gotArgs[:2])
	}
	if !slices.Contains(gotArgs, "--language") {
		t.Fatalf("missing language flag: %v", gotArgs)
	}
	idx := slices.Index(gotArgs, "--language")
	if gotArgs[idx+1] != "ja" {
		t.Fatalf("language = %q", gotArgs[idx+1])
	}
}

func TestTranscribeClassifiesSubprocessFailure(t *testing.T) {
	svc := NewService(config.Recognition{})
	svc.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return errors.New("exit status 1")
	})
	_, err := svc.Transcribe(context.Background(), "in.wav", t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := services.Classify(err); kind != services.KindProcessing {
		t.Fatalf("kind = %q", kind)
	}
}

func TestTranscribeRequiresSource(t *testing.T) {
	svc := NewService(config.Recognition{})
	_, err := svc.Transcribe(context.Background(), "  ", t.TempDir())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if kind := services.Classify(err); kind != services.KindValidation {
		t.Fatalf("kind = %q", kind)
	}
}

func TestParseOutputRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseOutput(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestServiceDefaults(t *testing.T) {
	svc := NewService(config.Recognition{})
	if svc.Model() != DefaultModel {
		t.Fatalf("model = %q", svc.Model())
	}
}

package synthesis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"overdub/internal/config"
	"overdub/internal/services"
	"overdub/internal/wavutil"
)

func wavFixture(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	clip := wavutil.NewSilence(0.2, 24000)
	clip.Samples[0] = 500
	if err := wavutil.Write(path, clip); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestProvidersParseSpecs(t *testing.T) {
	providers, err := Providers(config.Synthesis{
		Providers: []string{"tts-1:nova", "tts-1-hd", " ", "tts-1:nova"},
	})
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("providers = %d", len(providers))
	}
	if providers[0].Name() != "tts-1:nova" {
		t.Fatalf("name = %q", providers[0].Name())
	}
	if providers[1].Name() != "tts-1-hd:"+defaultVoice {
		t.Fatalf("name = %q", providers[1].Name())
	}
}

func TestProvidersRequireConfiguration(t *testing.T) {
	_, err := Providers(config.Synthesis{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if kind := services.Classify(err); kind != services.KindValidation {
		t.Fatalf("kind = %q", kind)
	}
}

func TestSynthesizeSendsSpeechRequest(t *testing.T) {
	wav := wavFixture(t)
	var gotReq speechRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write(wav)
	}))
	defer server.Close()

	providers, err := Providers(config.Synthesis{
		BaseURL:    server.URL,
		Providers:  []string{"tts-1:nova"},
		SampleRate: 24000,
	})
	if err != nil {
		t.Fatal(err)
	}
	audio, err := providers[0].Synthesize(context.Background(), "sk", "Hallo Welt")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(audio) != len(wav) {
		t.Fatalf("audio bytes = %d, want %d", len(audio), len(wav))
	}
	if gotReq.Model != "tts-1" || gotReq.Voice != "nova" {
		t.Fatalf("request = %+v", gotReq)
	}
	if gotReq.Input != "Hallo Welt" || gotReq.ResponseFormat != "wav" {
		t.Fatalf("request = %+v", gotReq)
	}
	if gotReq.SampleRate != 24000 {
		t.Fatalf("sample rate = %d", gotReq.SampleRate)
	}
}

func TestSynthesizeClassifiesStatuses(t *testing.T) {
	cases := map[int]services.Kind{
		http.StatusUnauthorized:        services.KindCredential,
		http.StatusTooManyRequests:     services.KindQuota,
		http.StatusInternalServerError: services.KindNetwork,
		http.StatusBadRequest:          services.KindProcessing,
	}
	for status, want := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", status)
		}))
		providers, err := Providers(config.Synthesis{BaseURL: server.URL, Providers: []string{"tts-1"}})
		if err != nil {
			t.Fatal(err)
		}
		_, err = providers[0].Synthesize(context.Background(), "sk", "text")
		server.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if kind := services.Classify(err); kind != want {
			t.Errorf("status %d: kind = %q, want %q", status, kind, want)
		}
	}
}

func TestRenderChunkWritesWAV(t *testing.T) {
	wav := wavFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(wav)
	}))
	defer server.Close()

	providers, err := Providers(config.Synthesis{BaseURL: server.URL, Providers: []string{"tts-1"}})
	if err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "chunk_0000.wav")
	if err := RenderChunk(context.Background(), providers[0], "sk", "Hallo", dest); err != nil {
		t.Fatalf("render: %v", err)
	}
	dur, err := wavutil.Duration(dest)
	if err != nil {
		t.Fatalf("rendered file unreadable: %v", err)
	}
	if dur <= 0 {
		t.Fatalf("duration = %v", dur)
	}
}

func TestRenderChunkRejectsNonWAVPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": "disguised as success"}`))
	}))
	defer server.Close()

	providers, err := Providers(config.Synthesis{BaseURL: server.URL, Providers: []string{"tts-1"}})
	if err != nil {
		t.Fatal(err)
	}
	err = RenderChunk(context.Background(), providers[0], "sk", "Hallo", filepath.Join(t.TempDir(), "c.wav"))
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := services.Classify(err); kind != services.KindProcessing {
		t.Fatalf("kind = %q", kind)
	}
}

func TestRenderChunkRejectsEmptyText(t *testing.T) {
	providers, err := Providers(config.Synthesis{Providers: []string{"tts-1"}})
	if err != nil {
		t.Fatal(err)
	}
	err = RenderChunk(context.Background(), providers[0], "sk", "   ", "c.wav")
	if kind := services.Classify(err); kind != services.KindValidation {
		t.Fatalf("kind = %q", kind)
	}
}

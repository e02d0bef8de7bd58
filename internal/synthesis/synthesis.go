// Package synthesis renders translated chunks into speech audio.
//
// Providers are tried in configured priority order; each one is an
// OpenAI-style speech endpoint addressed as "model" or "model:voice". The
// pipeline owns retry, credential rotation, and fallback between providers;
// this package only knows how to make one provider produce one WAV chunk.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"overdub/internal/config"
	"overdub/internal/fileutil"
	"overdub/internal/services"
)

// Provider renders text into WAV audio bytes.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, apiKey, text string) ([]byte, error)
}

// Providers builds the configured provider chain, primary first.
func Providers(cfg config.Synthesis, opts ...Option) ([]Provider, error) {
	specs := cfg.Providers
	if len(specs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "synthesis", "configure", "at least one provider required", nil)
	}
	out := make([]Provider, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" || seen[spec] {
			continue
		}
		seen[spec] = true
		model, voice := splitSpec(spec)
		out = append(out, newSpeechProvider(cfg, model, voice, opts...))
	}
	if len(out) == 0 {
		return nil, services.Wrap(services.ErrValidation, "synthesis", "configure", "no usable provider entries", nil)
	}
	return out, nil
}

// splitSpec parses "model" or "model:voice".
func splitSpec(spec string) (model, voice string) {
	if idx := strings.LastIndex(spec, ":"); idx > 0 && idx < len(spec)-1 {
		return spec[:idx], spec[idx+1:]
	}
	return spec, defaultVoice
}

// RenderChunk synthesizes one chunk of text and writes it atomically to
// dest. The payload must be a RIFF/WAV container.
func RenderChunk(ctx context.Context, provider Provider, apiKey, text, dest string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "synthesis", "render", "empty chunk text", nil)
	}
	audio, err := provider.Synthesize(ctx, apiKey, text)
	if err != nil {
		return err
	}
	if !isWAV(audio) {
		return services.Wrap(services.ErrProcessing, "synthesis", "render",
			fmt.Sprintf("provider %s returned non-WAV payload (%d bytes)", provider.Name(), len(audio)), nil)
	}
	if err := fileutil.WriteFileAtomic(dest, audio, 0o644); err != nil {
		return services.Wrap(services.ErrFile, "synthesis", "render", "write chunk audio", err)
	}
	return nil
}

func isWAV(data []byte) bool {
	return len(data) > 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

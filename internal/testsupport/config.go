package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"overdub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Credentials = []string{"test-credential"}
	cfgVal.Translation.Model = "test/translator"
	cfgVal.Synthesis.Providers = []string{"tts-1:alloy"}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCredentials overrides the provider credentials on the test config.
func WithCredentials(keys ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Credentials = keys
	}
}

// WithTranslationModels sets the primary model and any fallbacks.
func WithTranslationModels(primary string, fallbacks ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Translation.Model = primary
		b.cfg.Translation.FallbackModels = fallbacks
	}
}

// WithSynthesisProviders overrides the synthesis provider specs.
func WithSynthesisProviders(specs ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Synthesis.Providers = specs
	}
}

// WithMaxAttempts caps per-stage retry attempts on the test config.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxAttempts = attempts
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default overdub external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "uvx"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

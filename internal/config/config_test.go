package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("file should not exist")
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Pipeline.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("max attempts = %d", cfg.Pipeline.MaxAttempts)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`work_dir = "` + filepath.Join(dir, "work") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[pipeline]",
		"max_attempts = 5",
		"[translation]",
		`model = "  test/model  "`,
		"credentials = []",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Pipeline.MaxAttempts != 5 {
		t.Fatalf("max attempts = %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Translation.Model != "test/model" {
		t.Fatalf("model = %q", cfg.Translation.Model)
	}
	if cfg.Translation.BaseURL == "" {
		t.Fatal("base url default should apply")
	}
}

func TestCredentialsFromEnvironment(t *testing.T) {
	t.Setenv("OVERDUB_CREDENTIALS", "key-a, key-b ,")
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Credentials) != 2 || cfg.Credentials[0] != "key-a" || cfg.Credentials[1] != "key-b" {
		t.Fatalf("credentials = %v", cfg.Credentials)
	}
}

func TestValidateRejectsBadChunkBounds(t *testing.T) {
	cfg := Default()
	cfg.Chunking.MinDurationSeconds = 40
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected chunk bound validation error")
	}
}

func TestValidateManualModeRequiresFile(t *testing.T) {
	cfg := Default()
	cfg.Translation.Mode = TranslationManual
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected manual mode validation error")
	}
	cfg.Translation.ManualFile = "/tmp/translated.json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("manual mode with file: %v", err)
	}
}

func TestValidateRejectsUnknownTranslationMode(t *testing.T) {
	cfg := Default()
	cfg.Translation.Mode = "hybrid"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected mode validation error")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected overwrite refusal")
	}
}

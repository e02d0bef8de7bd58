package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Pipeline contains stage orchestration settings.
type Pipeline struct {
	MaxAttempts    int  `toml:"max_attempts"`
	StrictSegments bool `toml:"strict_segments"`
}

// Chunking contains chunk planner bounds.
type Chunking struct {
	MaxDurationSeconds float64 `toml:"max_duration_seconds"`
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
	BoundaryBufferSecs float64 `toml:"boundary_buffer_seconds"`
	TokenCeiling       int     `toml:"token_ceiling"`
}

// Recognition contains speech recognition collaborator settings.
type Recognition struct {
	Binary       string `toml:"binary"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Model        string `toml:"model"`
	Language     string `toml:"language"`
}

// Translation modes.
const (
	TranslationAutomatic = "automatic"
	TranslationManual    = "manual"
)

// Translation contains translation provider settings.
type Translation struct {
	BaseURL        string   `toml:"base_url"`
	Model          string   `toml:"model"`
	FallbackModels []string `toml:"fallback_models"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	BatchSize      int      `toml:"batch_size"`
	// Mode selects automatic model translation or a manual file supplied
	// via manual_translation.
	Mode       string `toml:"mode"`
	ManualFile string `toml:"manual_translation"`
	// Style hints woven into the translation prompt.
	Tone         string `toml:"tone"`
	Genre        string `toml:"genre"`
	Instructions string `toml:"instructions"`
}

// Synthesis contains speech synthesis provider settings.
type Synthesis struct {
	BaseURL        string   `toml:"base_url"`
	Providers      []string `toml:"providers"`
	SampleRate     int      `toml:"sample_rate"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Media contains external transcoding tool settings.
type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for overdub.
//
// Configuration sections by subsystem:
//   - Paths: working and log directories
//   - Pipeline: retry bounds and input strictness
//   - Chunking: chunk planner duration/token ceilings
//   - Recognition: speech-to-text subprocess settings
//   - Translation: translation provider connection settings
//   - Synthesis: speech synthesis provider settings
//   - Media: ffmpeg/ffprobe binaries
//   - Credentials: provider access keys, rotated on failure
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Chunking      Chunking      `toml:"chunking"`
	Recognition   Recognition   `toml:"recognition"`
	Translation   Translation   `toml:"translation"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Media         Media         `toml:"media"`
	Credentials   []string      `toml:"credentials"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/overdub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	if env := strings.TrimSpace(os.Getenv("OVERDUB_CONFIG")); env != "" {
		return resolveConfigPath(env)
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("overdub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline relies on.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, creating
// parent directories as needed. It refuses to overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}

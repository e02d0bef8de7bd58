package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCredentials()
	c.normalizePipeline()
	c.normalizeProviders()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Translation.ManualFile, err = expandPath(c.Translation.ManualFile); err != nil {
		return fmt.Errorf("translation.manual_translation: %w", err)
	}
	return nil
}

func (c *Config) normalizeCredentials() {
	cleaned := make([]string, 0, len(c.Credentials))
	for _, cred := range c.Credentials {
		if trimmed := strings.TrimSpace(cred); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if env, ok := os.LookupEnv("OVERDUB_CREDENTIALS"); ok {
		for _, cred := range strings.Split(env, ",") {
			if trimmed := strings.TrimSpace(cred); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
	}
	c.Credentials = cleaned
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = defaultMaxAttempts
	}
	if c.Chunking.MaxDurationSeconds <= 0 {
		c.Chunking.MaxDurationSeconds = defaultChunkMaxDuration
	}
	if c.Chunking.MinDurationSeconds <= 0 {
		c.Chunking.MinDurationSeconds = defaultChunkMinDuration
	}
	if c.Chunking.BoundaryBufferSecs <= 0 {
		c.Chunking.BoundaryBufferSecs = defaultBoundaryBuffer
	}
	if c.Chunking.TokenCeiling <= 0 {
		c.Chunking.TokenCeiling = defaultTokenCeiling
	}
}

func (c *Config) normalizeProviders() {
	c.Recognition.Binary = strings.TrimSpace(c.Recognition.Binary)
	if c.Recognition.Binary == "" {
		c.Recognition.Binary = defaultRecognitionBinary
	}
	c.Recognition.FFmpegBinary = strings.TrimSpace(c.Recognition.FFmpegBinary)
	if c.Recognition.FFmpegBinary == "" {
		c.Recognition.FFmpegBinary = c.Media.FFmpegBinary
	}
	c.Translation.BaseURL = strings.TrimSpace(c.Translation.BaseURL)
	if c.Translation.BaseURL == "" {
		c.Translation.BaseURL = defaultTranslationBaseURL
	}
	c.Translation.Model = strings.TrimSpace(c.Translation.Model)
	if c.Translation.Model == "" {
		c.Translation.Model = defaultTranslationModel
	}
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = defaultTranslationTimeout
	}
	if c.Translation.BatchSize <= 0 {
		c.Translation.BatchSize = defaultTranslationBatch
	}
	c.Translation.Mode = strings.ToLower(strings.TrimSpace(c.Translation.Mode))
	if c.Translation.Mode == "" {
		c.Translation.Mode = TranslationAutomatic
	}
	c.Synthesis.BaseURL = strings.TrimSpace(c.Synthesis.BaseURL)
	if c.Synthesis.SampleRate <= 0 {
		c.Synthesis.SampleRate = defaultSynthesisSampleRate
	}
	if c.Synthesis.TimeoutSeconds <= 0 {
		c.Synthesis.TimeoutSeconds = defaultSynthesisTimeout
	}
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

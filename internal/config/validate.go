package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateChunking() error {
	if c.Chunking.MinDurationSeconds >= c.Chunking.MaxDurationSeconds {
		return fmt.Errorf("chunking.min_duration_seconds (%g) must be below chunking.max_duration_seconds (%g)",
			c.Chunking.MinDurationSeconds, c.Chunking.MaxDurationSeconds)
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if c.Translation.BaseURL == "" {
		return errors.New("translation.base_url must be set")
	}
	if c.Translation.Model == "" {
		return errors.New("translation.model must be set")
	}
	switch c.Translation.Mode {
	case TranslationAutomatic:
	case TranslationManual:
		if c.Translation.ManualFile == "" {
			return errors.New("translation.manual_translation must be set when translation.mode is manual")
		}
	default:
		return fmt.Errorf("translation.mode: unsupported value %q", c.Translation.Mode)
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if c.Synthesis.SampleRate < 8000 {
		return fmt.Errorf("synthesis.sample_rate %d is too low; expected at least 8000", c.Synthesis.SampleRate)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}

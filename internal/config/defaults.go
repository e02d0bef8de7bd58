package config

const (
	defaultWorkDir             = "~/.local/share/overdub/work"
	defaultLogDir              = "~/.local/share/overdub/logs"
	defaultMaxAttempts         = 3
	defaultChunkMaxDuration    = 30.0
	defaultChunkMinDuration    = 5.0
	defaultBoundaryBuffer      = 2.0
	defaultTokenCeiling        = 30000
	defaultRecognitionBinary   = "uvx"
	defaultRecognitionModel    = "large-v3-turbo"
	defaultTranslationBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslationModel    = "google/gemini-3-flash-preview"
	defaultTranslationTimeout  = 60
	defaultTranslationBatch    = 40
	defaultSynthesisSampleRate = 24000
	defaultSynthesisTimeout    = 120
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Pipeline: Pipeline{
			MaxAttempts: defaultMaxAttempts,
		},
		Chunking: Chunking{
			MaxDurationSeconds: defaultChunkMaxDuration,
			MinDurationSeconds: defaultChunkMinDuration,
			BoundaryBufferSecs: defaultBoundaryBuffer,
			TokenCeiling:       defaultTokenCeiling,
		},
		Recognition: Recognition{
			Binary:       defaultRecognitionBinary,
			FFmpegBinary: defaultFFmpegBinary,
			Model:        defaultRecognitionModel,
		},
		Translation: Translation{
			BaseURL:        defaultTranslationBaseURL,
			Model:          defaultTranslationModel,
			TimeoutSeconds: defaultTranslationTimeout,
			BatchSize:      defaultTranslationBatch,
			Mode:           TranslationAutomatic,
		},
		Synthesis: Synthesis{
			SampleRate:     defaultSynthesisSampleRate,
			TimeoutSeconds: defaultSynthesisTimeout,
		},
		Media: Media{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// Package recognition turns source audio into a timed transcript by driving
// WhisperX through uvx.
package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"overdub/internal/config"
	langpkg "overdub/internal/language"
	"overdub/internal/services"
	"overdub/internal/transcript"
)

// Command and tuning defaults for the WhisperX invocation.
const (
	UVXCommand   = "uvx"
	DefaultModel = "large-v3-turbo"

	batchSize     = "8"
	outputFormat  = "json"
	chunkSize     = "10"
	vadMethod     = "silero"
	cpuDevice     = "cpu"
	cpuCompute    = "int8"
	segmentOption = "sentence"
)

// Service runs WhisperX transcriptions.
type Service struct {
	cfg           config.Recognition
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a recognition service from configuration.
func NewService(cfg config.Recognition) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = UVXCommand
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Binary returns the launcher command, for health checks.
func (s *Service) Binary() string {
	return s.cfg.Binary
}

// Transcribe runs WhisperX over a mono WAV file and returns its timed
// segments. outputDir receives the raw WhisperX output files.
func (s *Service) Transcribe(ctx context.Context, source, outputDir string) ([]transcript.Segment, error) {
	if strings.TrimSpace(source) == "" {
		return nil, services.Wrap(services.ErrValidation, "recognition", "transcribe", "source path required", nil)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrFile, "recognition", "transcribe", "ensure output dir", err)
	}

	if err := s.run(ctx, s.cfg.Binary, s.buildArgs(source, outputDir)...); err != nil {
		return nil, services.Wrap(services.ErrProcessing, "recognition", "whisperx", "transcription failed", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	segments, err := ParseOutput(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrProcessing, "recognition", "parse", "read whisperx output", err)
	}
	return segments, nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	args := []string{
		"whisperx",
		source,
		"--model", s.cfg.Model,
		"--batch_size", batchSize,
		"--output_dir", outputDir,
		"--output_format", outputFormat,
		"--segment_resolution", segmentOption,
		"--chunk_size", chunkSize,
		"--vad_method", vadMethod,
		"--device", cpuDevice,
		"--compute_type", cpuCompute,
	}
	if lang := langpkg.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// whisperXPayload is the JSON structure WhisperX writes.
type whisperXPayload struct {
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// ParseOutput converts a WhisperX JSON file into transcript segments.
// Segments with empty text are dropped.
func ParseOutput(jsonPath string) ([]transcript.Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	segments := make([]transcript.Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}
	return segments, nil
}

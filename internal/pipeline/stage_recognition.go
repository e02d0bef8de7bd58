package pipeline

import (
	"context"
	"log/slog"
	"os/exec"

	"overdub/internal/config"
	"overdub/internal/fileutil"
	"overdub/internal/logging"
	"overdub/internal/media/ffmpeg"
	"overdub/internal/recognition"
	"overdub/internal/services"
	"overdub/internal/stage"
	"overdub/internal/transcript"
)

// recognitionStage extracts the source audio and transcribes it.
type recognitionStage struct {
	svc    *recognition.Service
	tool   *ffmpeg.Tool
	strict bool
	logger *slog.Logger
}

func newRecognitionStage(cfg *config.Config) *recognitionStage {
	return &recognitionStage{
		svc:    recognition.NewService(cfg.Recognition),
		tool:   ffmpeg.NewTool(cfg.Media.FFmpegBinary),
		strict: cfg.Pipeline.StrictSegments,
		logger: logging.NewNop(),
	}
}

func (s *recognitionStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *recognitionStage) Prepare(_ context.Context, run *stage.Run) error {
	if !fileutil.NonEmptyFile(run.Source) {
		return services.Wrap(services.ErrValidation, "recognition", "prepare",
			"source file missing or empty: "+run.Source, nil)
	}
	return nil
}

func (s *recognitionStage) Execute(ctx context.Context, run *stage.Run) error {
	audioPath := run.Layout.SourceAudio()
	if !fileutil.NonEmptyFile(audioPath) {
		if err := s.tool.ExtractAudio(ctx, run.Source, run.AudioStreamIndex, audioPath); err != nil {
			return services.Wrap(services.ErrProcessing, "recognition", "extract", "audio extraction failed", err)
		}
	}

	segments, err := s.svc.Transcribe(ctx, audioPath, run.Layout.Root)
	if err != nil {
		return err
	}

	issues, err := transcript.Validate(segments)
	if err != nil {
		return services.Wrap(services.ErrValidation, "recognition", "validate", err.Error(), nil)
	}
	if len(issues) > 0 {
		if s.strict {
			return services.Wrap(services.ErrValidation, "recognition", "validate",
				issues[0].String(), nil)
		}
		for _, issue := range issues {
			s.logger.Warn("transcript issue", logging.String("issue", issue.String()))
		}
	}

	if err := transcript.Save(run.Layout.Transcript(), segments); err != nil {
		return services.Wrap(services.ErrFile, "recognition", "save", "write transcript", err)
	}
	s.logger.Info("transcript written",
		logging.Int("segments", len(segments)),
		logging.String("model", s.svc.Model()),
	)
	return nil
}

func (s *recognitionStage) HealthCheck(context.Context) stage.Health {
	if _, err := exec.LookPath(s.svc.Binary()); err != nil {
		return stage.Unhealthy("recognition", "launcher not found: "+s.svc.Binary())
	}
	return stage.Healthy("recognition")
}

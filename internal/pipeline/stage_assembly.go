package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"

	"overdub/internal/config"
	"overdub/internal/fileutil"
	"overdub/internal/logging"
	"overdub/internal/media/ffmpeg"
	"overdub/internal/services"
	"overdub/internal/stage"
	"overdub/internal/stitch"
)

// assemblyStage stitches rendered chunks into the dubbed track and muxes it
// back into the source container when the source has video.
type assemblyStage struct {
	assembler *stitch.Assembler
	tool      *ffmpeg.Tool
	ffmpegBin string
	logger    *slog.Logger
}

func newAssemblyStage(cfg *config.Config) *assemblyStage {
	return &assemblyStage{
		assembler: stitch.NewAssembler(cfg.Synthesis.SampleRate, nil),
		tool:      ffmpeg.NewTool(cfg.Media.FFmpegBinary),
		ffmpegBin: cfg.Media.FFmpegBinary,
		logger:    logging.NewNop(),
	}
}

func (s *assemblyStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
		s.assembler = stitch.NewAssembler(s.assembler.SampleRate(), logger)
	}
}

func (s *assemblyStage) Prepare(_ context.Context, run *stage.Run) error {
	if !fileutil.NonEmptyFile(run.Layout.ChunkPlan()) {
		return services.Wrap(services.ErrFile, "assembly", "prepare", "chunk plan missing", nil)
	}
	return nil
}

func (s *assemblyStage) Execute(ctx context.Context, run *stage.Run) error {
	plan, err := LoadChunkPlan(run.Layout.ChunkPlan())
	if err != nil {
		return services.Wrap(services.ErrFile, "assembly", "load", "read chunk plan", err)
	}

	report, err := s.assembler.Assemble(plan, run.Layout.ChunkDir(), run.Layout.DubbedAudio(), run.ReferenceDuration)
	if err != nil {
		return services.Wrap(services.ErrProcessing, "assembly", "stitch", "assemble dubbed track", err)
	}
	if data, marshalErr := json.MarshalIndent(report, "", "  "); marshalErr == nil {
		if writeErr := fileutil.WriteFileAtomic(run.Layout.AssemblyReport(), data, 0o644); writeErr != nil {
			s.logger.Warn("assembly report write failed", logging.Error(writeErr))
		}
	}
	s.logger.Info("dubbed track assembled",
		logging.Int("chunks", report.ChunksProcessed),
		logging.Float64("duration_seconds", report.FinalAudioDuration),
		logging.String("timing_accuracy", report.TimingAccuracy),
	)
	for _, issue := range report.Issues {
		s.logger.Warn("assembly issue", logging.String("issue", issue))
		run.Degrade(issue)
	}

	if run.HasVideo {
		output := run.Layout.OutputVideo(run.Source)
		if err := s.tool.Mux(ctx, run.Source, run.Layout.DubbedAudio(), output); err != nil {
			return services.Wrap(services.ErrProcessing, "assembly", "mux", "mux dubbed audio", err)
		}
		s.logger.Info("dubbed container written", logging.String("output", output))
	}
	return nil
}

func (s *assemblyStage) HealthCheck(context.Context) stage.Health {
	if _, err := exec.LookPath(s.ffmpegBin); err != nil {
		return stage.Unhealthy("assembly", "ffmpeg not found: "+s.ffmpegBin)
	}
	return stage.Healthy("assembly")
}

// Package pipeline orchestrates the dubbing stages end to end: recognition,
// translation, synthesis, and assembly, with checkpointing and recovery
// between them.
//
// The controller derives where to start purely from which artifacts exist in
// the working directory, so an interrupted run resumes at the first stage
// whose output is missing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"overdub/internal/config"
	"overdub/internal/credential"
	"overdub/internal/fileutil"
	"overdub/internal/logging"
	"overdub/internal/media/ffprobe"
	"overdub/internal/notifications"
	"overdub/internal/recovery"
	"overdub/internal/services"
	"overdub/internal/stage"
	"overdub/internal/state"
	"overdub/internal/synthesis"
	"overdub/internal/textutil"
	"overdub/internal/translation"
)

// Controller runs dubbing pipelines.
type Controller struct {
	cfg         *config.Config
	logger      *slog.Logger
	notifier    notifications.Service
	registry    *credential.Registry
	coordinator *recovery.Coordinator

	probe      func(ctx context.Context, binary, path string) (ffprobe.Result, error)
	sleep      func(context.Context, time.Duration) error
	makeStages func(c *Controller, opts RunOptions, requests *state.RequestLog) (map[string]stage.Handler, error)
	progress   func(fraction float64, status string)
}

// Option customizes a controller.
type Option func(*Controller)

// WithNotifier overrides the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(c *Controller) {
		if notifier != nil {
			c.notifier = notifier
		}
	}
}

// WithProbe overrides media inspection (for testing).
func WithProbe(probe func(ctx context.Context, binary, path string) (ffprobe.Result, error)) Option {
	return func(c *Controller) {
		if probe != nil {
			c.probe = probe
		}
	}
}

// WithProgress registers a callback invoked synchronously after each
// pipeline step with a non-decreasing completion fraction and a status label.
func WithProgress(progress func(fraction float64, status string)) Option {
	return func(c *Controller) {
		if progress != nil {
			c.progress = progress
		}
	}
}

// WithSleep overrides retry sleeping (for testing).
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Controller) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithStageFactory overrides stage construction (for testing).
func WithStageFactory(factory func(c *Controller, opts RunOptions, requests *state.RequestLog) (map[string]stage.Handler, error)) Option {
	return func(c *Controller) {
		if factory != nil {
			c.makeStages = factory
		}
	}
}

// New builds a controller from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	registry, err := credential.NewRegistry(cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	c := &Controller{
		cfg:      cfg,
		logger:   logger,
		notifier: notifications.NewService(cfg.Notifications),
		registry: registry,
		coordinator: recovery.NewCoordinator(
			recovery.NewBackoff(time.Second, 2*time.Minute),
			cfg.Pipeline.MaxAttempts,
			logger,
		),
		probe:      ffprobe.Inspect,
		sleep:      sleepContext,
		makeStages: buildStages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Registry exposes credential health for status reporting.
func (c *Controller) Registry() *credential.Registry {
	return c.registry
}

// RunOptions describes one dubbing run.
type RunOptions struct {
	Source         string
	SourceLanguage string
	TargetLanguage string
	// TranslationFile supplies a pre-made translation artifact; the
	// translation stage validates and installs it instead of calling a model.
	TranslationFile string
	// Force discards existing artifacts and starts over.
	Force bool
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID        string
	StartedFrom  string
	DubbedAudio  string
	OutputVideo  string
	Degradations []string
	Duration     time.Duration
}

// WorkDirFor returns the working directory a source file maps to.
func (c *Controller) WorkDirFor(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(c.cfg.Paths.WorkDir, textutil.SanitizeToken(base))
}

// Run executes the pipeline for one source file, resuming from existing
// artifacts unless Force is set.
func (c *Controller) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	var result RunResult
	if strings.TrimSpace(opts.Source) == "" {
		return result, services.Wrap(services.ErrValidation, "pipeline", "run", "source file required", nil)
	}
	if strings.TrimSpace(opts.TargetLanguage) == "" {
		return result, services.Wrap(services.ErrValidation, "pipeline", "run", "target language required", nil)
	}
	if opts.TranslationFile == "" && c.cfg.Translation.Mode == config.TranslationManual {
		opts.TranslationFile = c.cfg.Translation.ManualFile
	}
	if opts.TranslationFile != "" && !fileutil.NonEmptyFile(opts.TranslationFile) {
		return result, services.Wrap(services.ErrValidation, "pipeline", "run",
			"manual translation file missing or empty: "+opts.TranslationFile, nil)
	}

	layout, err := state.NewLayout(c.WorkDirFor(opts.Source))
	if err != nil {
		return result, services.Wrap(services.ErrFile, "pipeline", "run", "prepare working directory", err)
	}

	lock := flock.New(filepath.Join(layout.Root, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return result, services.Wrap(services.ErrFile, "pipeline", "run", "acquire run lock", err)
	}
	if !locked {
		return result, services.Wrap(services.ErrValidation, "pipeline", "run",
			"another run is active in "+layout.Root, nil)
	}
	defer func() { _ = lock.Unlock() }()

	if opts.Force {
		if err := clearArtifacts(layout); err != nil {
			return result, services.Wrap(services.ErrFile, "pipeline", "run", "clear previous artifacts", err)
		}
	}

	probeResult, err := c.probe(ctx, c.cfg.Media.FFprobeBinary, opts.Source)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "pipeline", "preflight", "source inspection failed", err)
	}
	audioStream, ok := probeResult.FirstAudioStream(opts.SourceLanguage)
	if !ok {
		return result, services.Wrap(services.ErrValidation, "pipeline", "preflight", "source has no audio stream", nil)
	}

	checkpoint := state.LoadCheckpoint(layout.Checkpoint())
	if checkpoint.RunID == "" {
		checkpoint.RunID = uuid.NewString()
		checkpoint.StartedAt = time.Now().UTC()
	}
	checkpoint.Source = opts.Source

	run := &stage.Run{
		ID:                checkpoint.RunID,
		Source:            opts.Source,
		SourceLanguage:    opts.SourceLanguage,
		TargetLanguage:    opts.TargetLanguage,
		Layout:            layout,
		Checkpoint:        &checkpoint,
		AudioStreamIndex:  audioStream.Index,
		HasVideo:          probeResult.HasVideo(),
		ReferenceDuration: probeResult.DurationSeconds(),
	}

	requests, err := state.OpenRequestLog(layout.RequestLog())
	if err != nil {
		return result, services.Wrap(services.ErrFile, "pipeline", "run", "open request log", err)
	}
	defer requests.Close()

	stages, err := c.makeStages(c, opts, requests)
	if err != nil {
		return result, err
	}

	start := c.detectStage(layout)
	result.RunID = run.ID
	result.StartedFrom = start
	started := time.Now()

	ctx = services.WithRunID(ctx, run.ID)
	runLogger := logging.WithContext(ctx, c.logger)
	runLogger.Info("pipeline run starting",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("source_file", opts.Source),
		logging.String("target_language", opts.TargetLanguage),
		logging.String("start_stage", start),
	)
	if err := c.notifier.NotifyRunStarted(ctx, opts.Source); err != nil {
		runLogger.Debug("run start notification failed", logging.Error(err))
	}

	c.report(0.05, "preflight complete")
	if checkpoint.Stage == state.StageComplete && start != state.StageComplete {
		return result, services.Wrap(services.ErrValidation, "pipeline", "resume",
			"checkpoint reports completion but artifacts are missing; rerun with force", nil)
	}
	if start != state.StageComplete {
		for _, name := range stagesFrom(start) {
			if err := execute(ctx, execOptions{
				logger:      c.logger,
				notifier:    c.notifier,
				coordinator: c.coordinator,
				credentials: c.registry,
				handler:     stages[name],
				stageName:   name,
				run:         run,
				sleep:       c.sleep,
			}); err != nil {
				return result, err
			}
			c.report(stageFraction(name), name+" complete")
			if err := c.notifier.NotifyStageCompleted(ctx, name, ""); err != nil {
				runLogger.Debug("stage notification failed", logging.Error(err))
			}
		}
	}

	checkpoint.MarkComplete()
	if err := state.SaveCheckpoint(layout.Checkpoint(), checkpoint); err != nil {
		return result, services.Wrap(services.ErrFile, "pipeline", "run", "persist completion", err)
	}

	result.DubbedAudio = layout.DubbedAudio()
	if run.HasVideo {
		result.OutputVideo = layout.OutputVideo(opts.Source)
	}
	result.Degradations = run.Degradations
	result.Duration = time.Since(started)

	runLogger.Info("pipeline run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Duration("duration", result.Duration),
		logging.Int("degradations", len(result.Degradations)),
	)
	c.report(1.0, "complete")
	if len(result.Degradations) > 0 {
		if err := c.notifier.NotifyRunDegraded(ctx, opts.Source, strings.Join(result.Degradations, "; ")); err != nil {
			runLogger.Debug("degraded notification failed", logging.Error(err))
		}
	} else if err := c.notifier.NotifyRunCompleted(ctx, opts.Source, result.Duration); err != nil {
		runLogger.Debug("completion notification failed", logging.Error(err))
	}
	return result, nil
}

// Resume re-enters an interrupted run from its detected stage, keeping all
// existing artifacts.
func (c *Controller) Resume(ctx context.Context, opts RunOptions) (RunResult, error) {
	opts.Force = false
	return c.Run(ctx, opts)
}

// DetectState reports the next stage a source's working directory would run.
func (c *Controller) DetectState(source string) string {
	layout := state.Layout{Root: c.WorkDirFor(source)}
	return c.detectStage(layout)
}

func (c *Controller) detectStage(layout state.Layout) string {
	planned := 0
	if plan, err := LoadChunkPlan(layout.ChunkPlan()); err == nil {
		planned = len(plan)
	}
	return state.DetectStage(layout, planned)
}

// HealthChecks builds the stages for a hypothetical run and reports their
// readiness.
func (c *Controller) HealthChecks(ctx context.Context, opts RunOptions) []stage.Health {
	stages, err := c.makeStages(c, opts, nil)
	if err != nil {
		return []stage.Health{stage.Unhealthy("pipeline", err.Error())}
	}
	out := make([]stage.Health, 0, len(stages))
	for _, name := range state.Stages {
		if handler, ok := stages[name]; ok {
			out = append(out, handler.HealthCheck(ctx))
		}
	}
	return out
}

func buildStages(c *Controller, opts RunOptions, requests *state.RequestLog) (map[string]stage.Handler, error) {
	recognitionCfg := *c.cfg
	if opts.SourceLanguage != "" {
		recognitionCfg.Recognition.Language = opts.SourceLanguage
	}

	translator, err := translation.NewTranslator(c.cfg.Translation, opts.TargetLanguage)
	if err != nil {
		return nil, err
	}
	providers, err := synthesis.Providers(c.cfg.Synthesis)
	if err != nil {
		return nil, err
	}

	return map[string]stage.Handler{
		state.StageRecognition: newRecognitionStage(&recognitionCfg),
		state.StageTranslation: newTranslationStage(translator, c.registry, requests, opts.TranslationFile),
		state.StageSynthesis:   newSynthesisStage(providers, c.registry, requests, c.cfg.Chunking),
		state.StageAssembly:    newAssemblyStage(c.cfg),
	}, nil
}

func (c *Controller) report(fraction float64, status string) {
	if c.progress != nil {
		c.progress(fraction, status)
	}
}

// stageFraction maps a completed stage to an overall completion fraction.
// Fractions use the stage's position in the full ordering so a resumed run
// still reports monotonically.
func stageFraction(name string) float64 {
	for i, candidate := range state.Stages {
		if candidate == name {
			return 0.05 + 0.9*float64(i+1)/float64(len(state.Stages))
		}
	}
	return 0.05
}

func stagesFrom(start string) []string {
	for i, name := range state.Stages {
		if name == start {
			return state.Stages[i:]
		}
	}
	return nil
}

func clearArtifacts(layout state.Layout) error {
	paths := []string{
		layout.Transcript(),
		layout.Translation(),
		layout.ChunkPlan(),
		layout.SourceAudio(),
		layout.DubbedAudio(),
		layout.Checkpoint(),
		layout.AssemblyReport(),
	}
	for _, path := range paths {
		for _, target := range []string{path, fileutil.BackupPath(path)} {
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	if err := os.RemoveAll(layout.ChunkDir()); err != nil {
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

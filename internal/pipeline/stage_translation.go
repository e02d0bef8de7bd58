package pipeline

import (
	"context"
	"log/slog"
	"time"

	"overdub/internal/credential"
	"overdub/internal/fileutil"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/stage"
	"overdub/internal/state"
	"overdub/internal/transcript"
	"overdub/internal/translation"
)

// translationStage translates the transcript batch by batch, rotating
// credentials on failure and falling back through the configured model list.
type translationStage struct {
	translator *translation.Translator
	registry   *credential.Registry
	requests   *state.RequestLog
	logger     *slog.Logger

	// manualPath supplies a pre-made translation instead of calling a model.
	manualPath string
	models     []string
	modelIdx   int
}

func newTranslationStage(translator *translation.Translator, registry *credential.Registry, requests *state.RequestLog, manualPath string) *translationStage {
	return &translationStage{
		translator: translator,
		registry:   registry,
		requests:   requests,
		logger:     logging.NewNop(),
		manualPath: manualPath,
		models:     translator.Models(),
	}
}

func (s *translationStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *translationStage) FallbacksLeft() int {
	return len(s.models) - 1 - s.modelIdx
}

func (s *translationStage) UseNextFallback() bool {
	if s.modelIdx+1 >= len(s.models) {
		return false
	}
	s.modelIdx++
	s.logger.Info("translation model fallback", logging.String("model", s.models[s.modelIdx]))
	return true
}

func (s *translationStage) Prepare(_ context.Context, run *stage.Run) error {
	if !fileutil.NonEmptyFile(run.Layout.Transcript()) {
		return services.Wrap(services.ErrFile, "translation", "prepare", "transcript artifact missing", nil)
	}
	if s.manualPath == "" && len(s.models) == 0 {
		return services.Wrap(services.ErrValidation, "translation", "prepare", "no translation model configured", nil)
	}
	return nil
}

func (s *translationStage) Execute(ctx context.Context, run *stage.Run) error {
	segments, err := transcript.Load(run.Layout.Transcript())
	if err != nil {
		return services.Wrap(services.ErrFile, "translation", "load", "read transcript", err)
	}

	// A complete translation from an earlier attempt is reused as is.
	if existing, loadErr := transcript.LoadTranslation(run.Layout.Translation()); loadErr == nil {
		if transcript.CheckTranslation(segments, existing) == nil {
			s.logger.Info("translation already complete", logging.Int("segments", len(existing)))
			return nil
		}
	}

	if s.manualPath != "" {
		return s.applyManual(run, segments)
	}

	model := s.models[s.modelIdx]
	out := make([]transcript.TranslatedSegment, 0, len(segments))
	for _, batch := range s.translator.Batches(segments) {
		translated, err := s.translateBatch(ctx, run, model, batch)
		if err != nil {
			return err
		}
		out = append(out, translated...)
	}

	if err := transcript.CheckTranslation(segments, out); err != nil {
		return services.Wrap(services.ErrProcessing, "translation", "check", err.Error(), nil)
	}
	if err := transcript.SaveTranslation(run.Layout.Translation(), out); err != nil {
		return services.Wrap(services.ErrFile, "translation", "save", "write translation", err)
	}
	s.logger.Info("translation written",
		logging.Int("segments", len(out)),
		logging.String("model", model),
	)
	return nil
}

// applyManual validates a user-supplied translation against the transcript
// and installs it as the stage artifact.
func (s *translationStage) applyManual(run *stage.Run, segments []transcript.Segment) error {
	manual, err := transcript.LoadTranslation(s.manualPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "translation", "manual", "read manual translation", err)
	}
	if err := transcript.CheckTranslation(segments, manual); err != nil {
		return services.Wrap(services.ErrValidation, "translation", "manual", err.Error(), nil)
	}
	if err := transcript.SaveTranslation(run.Layout.Translation(), manual); err != nil {
		return services.Wrap(services.ErrFile, "translation", "save", "write translation", err)
	}
	s.logger.Info("manual translation installed",
		logging.Int("segments", len(manual)),
		logging.String("source", s.manualPath),
	)
	return nil
}

func (s *translationStage) translateBatch(ctx context.Context, run *stage.Run, model string, batch []transcript.Segment) ([]transcript.TranslatedSegment, error) {
	label, secret, err := s.registry.Acquire()
	if err != nil {
		return nil, services.Wrap(services.ErrCredential, "translation", "acquire", "no healthy credential", err)
	}

	started := time.Now()
	translated, err := s.translator.TranslateBatch(ctx, secret, model, batch)
	s.recordRequest(ctx, run, model, label, time.Since(started), err)
	if err != nil {
		kind := services.Classify(err)
		var resetAt *time.Time
		if reset, ok := translation.QuotaResetTime(err); ok {
			resetAt = &reset
		}
		s.registry.ReportFailure(label, kind == services.KindQuota, resetAt)
		return nil, err
	}
	s.registry.ReportSuccess(label)
	return translated, nil
}

func (s *translationStage) recordRequest(ctx context.Context, run *stage.Run, model, label string, duration time.Duration, err error) {
	if s.requests == nil {
		return
	}
	req := state.Request{
		RunID:      run.ID,
		Stage:      state.StageTranslation,
		Provider:   "chat",
		Model:      model,
		Credential: label,
		Duration:   duration,
		Status:     state.RequestOK,
	}
	if err != nil {
		req.Status = state.RequestFailed
		req.ErrorKind = string(services.Classify(err))
		req.Message = err.Error()
	}
	if recordErr := s.requests.Record(ctx, req); recordErr != nil {
		s.logger.Debug("request log write failed", logging.Error(recordErr))
	}
}

func (s *translationStage) HealthCheck(context.Context) stage.Health {
	if s.manualPath != "" {
		return stage.Healthy("translation")
	}
	if s.registry == nil || s.registry.UsableCount() == 0 {
		return stage.Unhealthy("translation", "no usable credential")
	}
	if len(s.models) == 0 {
		return stage.Unhealthy("translation", "no model configured")
	}
	return stage.Healthy("translation")
}

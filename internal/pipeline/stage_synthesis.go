package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"overdub/internal/chunking"
	"overdub/internal/config"
	"overdub/internal/credential"
	"overdub/internal/fileutil"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/stage"
	"overdub/internal/state"
	"overdub/internal/synthesis"
	"overdub/internal/transcript"
)

// synthesisStage plans chunks from the translation and renders each one to
// audio. Chunks that already exist on disk are skipped, so retries resume
// where the last attempt stopped.
type synthesisStage struct {
	providers []synthesis.Provider
	registry  *credential.Registry
	requests  *state.RequestLog
	chunkOpts chunking.Options
	logger    *slog.Logger

	providerIdx int
	skipFailing bool
}

func newSynthesisStage(providers []synthesis.Provider, registry *credential.Registry, requests *state.RequestLog, cfg config.Chunking) *synthesisStage {
	return &synthesisStage{
		providers: providers,
		registry:  registry,
		requests:  requests,
		chunkOpts: chunking.Options{
			MaxDuration:    cfg.MaxDurationSeconds,
			MinDuration:    cfg.MinDurationSeconds,
			BoundaryBuffer: cfg.BoundaryBufferSecs,
			TokenCeiling:   cfg.TokenCeiling,
		},
		logger: logging.NewNop(),
	}
}

func (s *synthesisStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *synthesisStage) FallbacksLeft() int {
	return len(s.providers) - 1 - s.providerIdx
}

func (s *synthesisStage) UseNextFallback() bool {
	if s.providerIdx+1 >= len(s.providers) {
		return false
	}
	s.providerIdx++
	s.logger.Info("synthesis provider fallback",
		logging.String("provider", s.providers[s.providerIdx].Name()))
	return true
}

func (s *synthesisStage) CanDegrade() bool { return true }

// Degrade re-renders while tolerating per-chunk failures; missing chunks
// become silence during assembly.
func (s *synthesisStage) Degrade(ctx context.Context, run *stage.Run, _ error) (string, error) {
	s.skipFailing = true
	defer func() { s.skipFailing = false }()
	if err := s.Execute(ctx, run); err != nil {
		return "", err
	}
	plan, err := LoadChunkPlan(run.Layout.ChunkPlan())
	if err != nil {
		return "", err
	}
	missing := 0
	for i := range plan {
		if !fileutil.NonEmptyFile(run.Layout.Chunk(i)) {
			missing++
		}
	}
	return fmt.Sprintf("synthesis skipped %d of %d chunks", missing, len(plan)), nil
}

func (s *synthesisStage) Prepare(_ context.Context, run *stage.Run) error {
	if !fileutil.NonEmptyFile(run.Layout.Translation()) {
		return services.Wrap(services.ErrFile, "synthesis", "prepare", "translation artifact missing", nil)
	}
	if len(s.providers) == 0 {
		return services.Wrap(services.ErrValidation, "synthesis", "prepare", "no synthesis provider configured", nil)
	}
	return run.Layout.EnsureChunkDir()
}

func (s *synthesisStage) Execute(ctx context.Context, run *stage.Run) error {
	translated, err := transcript.LoadTranslation(run.Layout.Translation())
	if err != nil {
		return services.Wrap(services.ErrFile, "synthesis", "load", "read translation", err)
	}

	plan, err := s.ensurePlan(run, translated)
	if err != nil {
		return err
	}

	provider := s.providers[s.providerIdx]
	rendered, skipped := 0, 0
	for i, chunk := range plan {
		dest := run.Layout.Chunk(i)
		if fileutil.NonEmptyFile(dest) {
			continue
		}
		if err := s.renderChunk(ctx, run, provider, chunk, dest); err != nil {
			if s.skipFailing && services.Recoverable(err) {
				skipped++
				s.logger.Warn("skipping failed chunk",
					logging.Int("chunk", i),
					logging.Error(err),
				)
				continue
			}
			return err
		}
		rendered++
	}
	s.logger.Info("chunks rendered",
		logging.Int("rendered", rendered),
		logging.Int("skipped", skipped),
		logging.Int("total", len(plan)),
		logging.String("provider", provider.Name()),
	)
	return nil
}

// ensurePlan loads the persisted chunk plan or computes and persists one.
// The plan is stable across retries so chunk files keep their indexes.
func (s *synthesisStage) ensurePlan(run *stage.Run, translated []transcript.TranslatedSegment) ([]chunking.Chunk, error) {
	if fileutil.NonEmptyFile(run.Layout.ChunkPlan()) {
		plan, err := LoadChunkPlan(run.Layout.ChunkPlan())
		if err == nil && len(plan) > 0 {
			return plan, nil
		}
	}

	segments := make([]transcript.Segment, len(translated))
	for i, seg := range translated {
		segments[i] = transcript.Segment{Start: seg.Start, End: seg.End, Text: seg.TextTranslated}
	}
	plan, summary := chunking.ChunkByTime(segments, s.chunkOpts)
	s.logger.Info("chunk plan computed",
		logging.Int("segments", summary.OriginalSegments),
		logging.Int("chunks", summary.ChunkCount),
		logging.Float64("reduction_percent", summary.ReductionPercent),
	)
	if err := SaveChunkPlan(run.Layout.ChunkPlan(), plan); err != nil {
		return nil, services.Wrap(services.ErrFile, "synthesis", "plan", "write chunk plan", err)
	}
	return plan, nil
}

func (s *synthesisStage) renderChunk(ctx context.Context, run *stage.Run, provider synthesis.Provider, chunk chunking.Chunk, dest string) error {
	label, secret, err := s.registry.Acquire()
	if err != nil {
		return services.Wrap(services.ErrCredential, "synthesis", "acquire", "no healthy credential", err)
	}

	started := time.Now()
	renderErr := synthesis.RenderChunk(ctx, provider, secret, chunk.Text, dest)
	s.recordRequest(ctx, run, provider.Name(), label, time.Since(started), renderErr)
	if renderErr != nil {
		kind := services.Classify(renderErr)
		s.registry.ReportFailure(label, kind == services.KindQuota, nil)
		return renderErr
	}
	s.registry.ReportSuccess(label)
	return nil
}

func (s *synthesisStage) recordRequest(ctx context.Context, run *stage.Run, provider, label string, duration time.Duration, err error) {
	if s.requests == nil {
		return
	}
	req := state.Request{
		RunID:      run.ID,
		Stage:      state.StageSynthesis,
		Provider:   provider,
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

func (s *synthesisStage) HealthCheck(context.Context) stage.Health {
	if len(s.providers) == 0 {
		return stage.Unhealthy("synthesis", "no provider configured")
	}
	if s.registry == nil || s.registry.UsableCount() == 0 {
		return stage.Unhealthy("synthesis", "no usable credential")
	}
	return stage.Healthy("synthesis")
}

// LoadChunkPlan reads a persisted chunk plan.
func LoadChunkPlan(path string) ([]chunking.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunk plan: %w", err)
	}
	var plan []chunking.Chunk
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse chunk plan: %w", err)
	}
	return plan, nil
}

// SaveChunkPlan persists a chunk plan atomically.
func SaveChunkPlan(path string, plan []chunking.Chunk) error {
	if err := fileutil.WriteBackup(path); err != nil {
		return fmt.Errorf("backup chunk plan: %w", err)
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunk plan: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

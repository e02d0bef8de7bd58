package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"overdub/internal/credential"
	"overdub/internal/logging"
	"overdub/internal/notifications"
	"overdub/internal/recovery"
	"overdub/internal/services"
	"overdub/internal/stage"
	"overdub/internal/state"
)

// FallbackAware is implemented by stages that can switch to an alternate
// provider or model after exhausting retries.
type FallbackAware interface {
	FallbacksLeft() int
	UseNextFallback() bool
}

// DegradeAware is implemented by stages that can finish with partial
// results. Degrade re-runs the stage in a mode that tolerates failures and
// returns the note to attach to the run.
type DegradeAware interface {
	CanDegrade() bool
	Degrade(context.Context, *stage.Run, error) (string, error)
}

// execOptions bundles what one stage execution needs.
type execOptions struct {
	logger      *slog.Logger
	notifier    notifications.Service
	coordinator *recovery.Coordinator
	credentials *credential.Registry
	handler     stage.Handler
	stageName   string
	run         *stage.Run
	sleep       func(context.Context, time.Duration) error
}

// iterationCap is a hard stop against recovery loops that neither converge
// nor fail. Natural bounds (attempt counts, credential exclusion, finite
// fallbacks) should trip long before this.
const iterationCap = 64

// execute runs one stage to completion, applying recovery decisions until
// the stage succeeds, degrades, or fails for good.
func execute(ctx context.Context, opts execOptions) error {
	if opts.handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.stageName)
	}
	run := opts.run

	stageCtx := services.WithStage(services.WithRunID(ctx, run.ID), opts.stageName)
	stageLogger := logging.WithContext(stageCtx, opts.logger)
	if aware, ok := opts.handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("source_file", strings.TrimSpace(run.Source)),
	)

	repairAttempted := false
	for iteration := 0; iteration < iterationCap; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attempt := run.Checkpoint.RecordAttempt(opts.stageName)
		run.Checkpoint.Stage = opts.stageName
		if err := state.SaveCheckpoint(run.Layout.Checkpoint(), *run.Checkpoint); err != nil {
			return fmt.Errorf("persist stage transition: %w", err)
		}

		stageErr := opts.handler.Prepare(stageCtx, run)
		if stageErr == nil {
			stageErr = opts.handler.Execute(stageCtx, run)
		}
		if stageErr == nil {
			run.Checkpoint.LastError = ""
			if err := state.SaveCheckpoint(run.Layout.Checkpoint(), *run.Checkpoint); err != nil {
				return fmt.Errorf("persist stage result: %w", err)
			}
			stageLogger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Int("attempts", attempt),
			)
			return nil
		}

		run.Checkpoint.LastError = stageErr.Error()
		decision := opts.coordinator.Decide(stageErr, recovery.Situation{
			Stage:             opts.stageName,
			Attempt:           attempt,
			CredentialsUsable: usableCredentials(opts.credentials),
			FallbacksLeft:     fallbacksLeft(opts.handler),
			RepairAttempted:   repairAttempted,
			CanDegrade:        canDegrade(opts.handler),
		})

		switch decision.Action {
		case recovery.ActionRetry:
			if err := opts.sleep(stageCtx, decision.Delay); err != nil {
				return err
			}

		case recovery.ActionRotateCredential:
			// The stage already penalized the failed credential; the next
			// acquire will skip it.
			stageLogger.Warn("rotating credential",
				logging.String(logging.FieldErrorHint, string(decision.Kind)),
			)

		case recovery.ActionFallback:
			aware, ok := opts.handler.(FallbackAware)
			if !ok || !aware.UseNextFallback() {
				return failStage(stageCtx, stageLogger, opts, stageErr)
			}
			stageLogger.Warn("switching to fallback provider",
				logging.String(logging.FieldErrorHint, string(decision.Kind)),
			)

		case recovery.ActionRepair:
			result, repairErr := recovery.RepairWorkspace(run.Layout.Root,
				run.Layout.Transcript(), run.Layout.Translation(), run.Layout.ChunkPlan(), run.Layout.Chunk(0))
			repairAttempted = true
			if repairErr != nil {
				stageLogger.Warn("workspace repair failed", logging.Error(repairErr))
			} else {
				stageLogger.Info("workspace repaired",
					logging.Int("restored_files", len(result.RestoredFiles)),
				)
			}

		case recovery.ActionDegrade:
			aware, ok := opts.handler.(DegradeAware)
			if !ok {
				return failStage(stageCtx, stageLogger, opts, stageErr)
			}
			note, degradeErr := aware.Degrade(stageCtx, run, stageErr)
			if degradeErr != nil {
				return failStage(stageCtx, stageLogger, opts, degradeErr)
			}
			run.Degrade(note)
			stageLogger.Warn("stage completed with degraded results",
				logging.String(logging.FieldEventType, "stage_degraded"),
				logging.String("note", note),
			)
			if err := state.SaveCheckpoint(run.Layout.Checkpoint(), *run.Checkpoint); err != nil {
				return fmt.Errorf("persist degraded result: %w", err)
			}
			return nil

		case recovery.ActionFail:
			return failStage(stageCtx, stageLogger, opts, stageErr)
		}
	}
	return failStage(ctx, stageLogger, opts, fmt.Errorf("stage %s: recovery did not converge", opts.stageName))
}

func failStage(ctx context.Context, logger *slog.Logger, opts execOptions, stageErr error) error {
	run := opts.run
	run.Checkpoint.Stage = state.StageFailed
	run.Checkpoint.LastError = stageErr.Error()
	if err := state.SaveCheckpoint(run.Layout.Checkpoint(), *run.Checkpoint); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	details := services.Details(stageErr)
	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", string(details.Kind)),
		logging.Int("credentials_usable", usableCredentials(opts.credentials)),
		logging.Int("credentials_total", totalCredentials(opts.credentials)),
		logging.Error(stageErr),
	)
	if opts.notifier != nil {
		label := fmt.Sprintf("%s (%s)", opts.stageName, strings.TrimSpace(run.Source))
		if err := opts.notifier.NotifyError(ctx, stageErr, label); err != nil {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
	return stageErr
}

func usableCredentials(registry *credential.Registry) int {
	if registry == nil {
		return 0
	}
	return registry.UsableCount()
}

func totalCredentials(registry *credential.Registry) int {
	if registry == nil {
		return 0
	}
	return len(registry.Snapshot())
}

func fallbacksLeft(handler stage.Handler) int {
	if aware, ok := handler.(FallbackAware); ok {
		return aware.FallbacksLeft()
	}
	return 0
}

func canDegrade(handler stage.Handler) bool {
	if aware, ok := handler.(DegradeAware); ok {
		return aware.CanDegrade()
	}
	return false
}

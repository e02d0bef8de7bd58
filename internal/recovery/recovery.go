// Package recovery decides how the pipeline reacts to stage failures.
//
// The coordinator maps a classified error plus the current situation onto
// one recovery action, tried in a fixed preference order: rotate the
// credential, fall back to another provider or model, retry with backoff,
// repair the workspace, degrade gracefully. Validation errors are never
// recovered; they fail the run immediately.
package recovery

import (
	"log/slog"
	"time"

	"overdub/internal/logging"
	"overdub/internal/services"
)

// Action is the recovery step the coordinator selected.
type Action string

const (
	ActionRotateCredential Action = "rotate_credential"
	ActionFallback         Action = "fallback"
	ActionRetry            Action = "retry"
	ActionRepair           Action = "repair"
	ActionDegrade          Action = "degrade"
	ActionFail             Action = "fail"
)

// Situation describes the failure context the coordinator decides on.
type Situation struct {
	Stage string
	// Attempt is the number of tries already made for this stage, 1-based.
	Attempt int
	// CredentialsUsable is how many credentials remain offerable.
	CredentialsUsable int
	// FallbacksLeft is how many alternate providers or models remain.
	FallbacksLeft int
	// RepairAttempted marks that a filesystem repair already ran.
	RepairAttempted bool
	// CanDegrade marks that the stage can continue with partial results.
	CanDegrade bool
}

// Decision is the coordinator's verdict for one failure.
type Decision struct {
	Action Action
	// Delay applies to ActionRetry.
	Delay  time.Duration
	Kind   services.Kind
	Reason string
}

// Coordinator selects recovery actions.
type Coordinator struct {
	backoff     Backoff
	maxAttempts int
	logger      *slog.Logger
}

// NewCoordinator builds a coordinator allowing maxAttempts tries per stage.
func NewCoordinator(backoff Backoff, maxAttempts int, logger *slog.Logger) *Coordinator {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{backoff: backoff, maxAttempts: maxAttempts, logger: logger}
}

// Decide maps a failure onto the next recovery action.
func (c *Coordinator) Decide(err error, sit Situation) Decision {
	kind := services.Classify(err)
	decision := c.decide(err, kind, sit)
	c.logger.Info("recovery decision",
		logging.String(logging.FieldEventType, "recovery_decision"),
		logging.String(logging.FieldStage, sit.Stage),
		logging.String("error_kind", string(kind)),
		logging.String("action", string(decision.Action)),
		logging.Int("attempt", sit.Attempt),
		logging.Duration("delay", decision.Delay),
	)
	return decision
}

func (c *Coordinator) decide(err error, kind services.Kind, sit Situation) Decision {
	if !services.Recoverable(err) {
		return Decision{Action: ActionFail, Kind: kind, Reason: "validation errors are not retried"}
	}

	switch kind {
	case services.KindCredential, services.KindQuota:
		if sit.CredentialsUsable > 0 {
			return Decision{Action: ActionRotateCredential, Kind: kind, Reason: "another credential is available"}
		}
		if sit.FallbacksLeft > 0 {
			return Decision{Action: ActionFallback, Kind: kind, Reason: "credentials exhausted, provider fallback remains"}
		}
		if sit.CanDegrade {
			return Decision{Action: ActionDegrade, Kind: kind, Reason: "credentials exhausted, continuing with partial results"}
		}
		return Decision{Action: ActionFail, Kind: kind, Reason: "all credentials and fallbacks exhausted"}

	case services.KindFile:
		if !sit.RepairAttempted {
			return Decision{Action: ActionRepair, Kind: kind, Reason: "workspace repair not yet attempted"}
		}
	}

	if sit.Attempt < c.maxAttempts {
		return Decision{
			Action: ActionRetry,
			Delay:  c.backoff.Delay(kind, sit.Attempt-1),
			Kind:   kind,
			Reason: "attempts remain",
		}
	}
	if sit.FallbacksLeft > 0 {
		return Decision{Action: ActionFallback, Kind: kind, Reason: "attempts exhausted, fallback remains"}
	}
	if sit.CanDegrade {
		return Decision{Action: ActionDegrade, Kind: kind, Reason: "continuing with partial results"}
	}
	return Decision{Action: ActionFail, Kind: kind, Reason: "recovery options exhausted"}
}

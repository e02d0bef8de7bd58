// Package stage defines the contract between the pipeline controller and the
// individual dubbing stages.
package stage

import (
	"context"
	"log/slog"

	"overdub/internal/state"
)

// Run is the unit of work handed to each stage: one source file being dubbed
// inside one working directory.
type Run struct {
	ID             string
	Source         string
	SourceLanguage string
	TargetLanguage string
	Layout         state.Layout
	Checkpoint     *state.Checkpoint

	// AudioStreamIndex is the source stream recognition reads, -1 for the
	// container default.
	AudioStreamIndex int
	// HasVideo marks that the source carries video worth muxing the dub
	// back into.
	HasVideo bool
	// ReferenceDuration is the source duration in seconds, 0 when unprobed.
	ReferenceDuration float64
	// Degradations collects notes about partial results accepted along the
	// way.
	Degradations []string
}

// Degrade records that a stage continued with partial results.
func (r *Run) Degrade(note string) {
	r.Degradations = append(r.Degradations, note)
}

// Handler describes one pipeline stage.
type Handler interface {
	// Prepare validates inputs and preconditions without doing work.
	Prepare(context.Context, *Run) error
	// Execute performs the stage and leaves its artifact in the layout.
	Execute(context.Context, *Run) error
	// HealthCheck reports whether the stage's external dependencies are
	// usable.
	HealthCheck(context.Context) Health
}

// LoggerAware lets the executor hand stages a run-scoped logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Health summarizes the readiness of a stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

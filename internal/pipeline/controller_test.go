package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"overdub/internal/config"
	"overdub/internal/services"
	"overdub/internal/stage"
	"overdub/internal/state"
	"overdub/internal/testsupport"
)

type orderedStage struct {
	name  string
	order *[]string
	err   error
}

func (s *orderedStage) Prepare(context.Context, *stage.Run) error { return nil }

func (s *orderedStage) Execute(context.Context, *stage.Run) error {
	*s.order = append(*s.order, s.name)
	return s.err
}

func (s *orderedStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func recordingFactory(order *[]string, failures map[string]error) func(*Controller, RunOptions, *state.RequestLog) (map[string]stage.Handler, error) {
	return func(*Controller, RunOptions, *state.RequestLog) (map[string]stage.Handler, error) {
		stages := make(map[string]stage.Handler, len(state.Stages))
		for _, name := range state.Stages {
			stages[name] = &orderedStage{name: name, order: order, err: failures[name]}
		}
		return stages, nil
	}
}

func newControllerConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t)
}

func newTestController(t *testing.T, cfg *config.Config, opts ...Option) *Controller {
	t.Helper()
	c, err := New(cfg, nil, opts...)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return c
}

func touchSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feature film.mkv")
	if err := os.WriteFile(path, []byte("container"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestRunExecutesAllStagesInOrder(t *testing.T) {
	cfg := newControllerConfig(t)
	var order []string
	c := newTestController(t, cfg,
		WithStageFactory(recordingFactory(&order, nil)),
		WithProbe(testsupport.Probe(testsupport.MovieReport)),
	)
	source := touchSource(t)

	result, err := c.Run(context.Background(), RunOptions{Source: source, TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{state.StageRecognition, state.StageTranslation, state.StageSynthesis, state.StageAssembly}
	if len(order) != len(want) {
		t.Fatalf("stage order = %v", order)
	}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("stage order = %v", order)
		}
	}
	if result.StartedFrom != state.StageRecognition {
		t.Fatalf("started from %q", result.StartedFrom)
	}
	if result.RunID == "" {
		t.Fatal("run id missing")
	}
	if result.OutputVideo == "" {
		t.Fatal("video source should produce a container path")
	}

	cp := state.LoadCheckpoint(state.Layout{Root: c.WorkDirFor(source)}.Checkpoint())
	if cp.Stage != state.StageComplete || cp.CompletedAt == nil {
		t.Fatalf("checkpoint = %+v", cp)
	}
}

func TestRunResumesFromExistingArtifacts(t *testing.T) {
	cfg := newControllerConfig(t)
	var order []string
	c := newTestController(t, cfg,
		WithStageFactory(recordingFactory(&order, nil)),
		WithProbe(testsupport.Probe(testsupport.AudioOnlyReport)),
	)
	source := touchSource(t)

	layout, err := state.NewLayout(c.WorkDirFor(source))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := os.WriteFile(layout.Transcript(), []byte(`[{"start":0,"end":1,"text":"hi"}]`), 0o644); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}

	result, err := c.Run(context.Background(), RunOptions{Source: source, TargetLanguage: "German"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StartedFrom != state.StageTranslation {
		t.Fatalf("started from %q", result.StartedFrom)
	}
	for _, name := range order {
		if name == state.StageRecognition {
			t.Fatal("recognition re-ran despite existing transcript")
		}
	}
	if result.OutputVideo != "" {
		t.Fatalf("audio-only source produced container path %q", result.OutputVideo)
	}
}

func TestRunForceDiscardsArtifacts(t *testing.T) {
	cfg := newControllerConfig(t)
	var order []string
	c := newTestController(t, cfg,
		WithStageFactory(recordingFactory(&order, nil)),
		WithProbe(testsupport.Probe(testsupport.AudioOnlyReport)),
	)
	source := touchSource(t)

	layout, err := state.NewLayout(c.WorkDirFor(source))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := os.WriteFile(layout.Transcript(), []byte(`[{"start":0,"end":1,"text":"hi"}]`), 0o644); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}

	result, err := c.Run(context.Background(), RunOptions{Source: source, TargetLanguage: "French", Force: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StartedFrom != state.StageRecognition {
		t.Fatalf("started from %q", result.StartedFrom)
	}
	if len(order) != len(state.Stages) {
		t.Fatalf("stage order = %v", order)
	}
}

func TestRunRejectsSourceWithoutAudio(t *testing.T) {
	cfg := newControllerConfig(t)
	var order []string
	c := newTestController(t, cfg,
		WithStageFactory(recordingFactory(&order, nil)),
		WithProbe(testsupport.Probe(testsupport.VideoOnlyReport)),
	)

	_, err := c.Run(context.Background(), RunOptions{Source: touchSource(t), TargetLanguage: "Spanish"})
	if err == nil {
		t.Fatal("expected preflight rejection")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("stages ran despite preflight failure: %v", order)
	}
}

func TestRunRequiresTargetLanguage(t *testing.T) {
	cfg := newControllerConfig(t)
	c := newTestController(t, cfg)

	_, err := c.Run(context.Background(), RunOptions{Source: "movie.mkv"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v", err)
	}
}

func TestRunPropagatesStageFailure(t *testing.T) {
	cfg := newControllerConfig(t)
	cfg.Pipeline.MaxAttempts = 1
	var order []string
	failures := map[string]error{
		state.StageTranslation: services.Wrap(services.ErrValidation, "translation", "check", "segment counts differ", nil),
	}
	c := newTestController(t, cfg,
		WithStageFactory(recordingFactory(&order, failures)),
		WithProbe(testsupport.Probe(testsupport.AudioOnlyReport)),
	)
	source := touchSource(t)

	_, err := c.Run(context.Background(), RunOptions{Source: source, TargetLanguage: "Spanish"})
	if err == nil {
		t.Fatal("expected failure")
	}
	for _, name := range order {
		if name == state.StageSynthesis || name == state.StageAssembly {
			t.Fatalf("later stage ran after failure: %v", order)
		}
	}

	cp := state.LoadCheckpoint(state.Layout{Root: c.WorkDirFor(source)}.Checkpoint())
	if cp.Stage != state.StageFailed {
		t.Fatalf("checkpoint stage = %q", cp.Stage)
	}
}

func TestRunReportsMonotonicProgress(t *testing.T) {
	cfg := newControllerConfig(t)
	var order []string
	var fractions []float64
	c := newTestController(t, cfg,
		WithStageFactory(recordingFactory(&order, nil)),
		WithProbe(testsupport.Probe(testsupport.MovieReport)),
		WithProgress(func(fraction float64, _ string) {
			fractions = append(fractions, fraction)
		}),
	)

	_, err := c.Run(context.Background(), RunOptions{Source: touchSource(t), TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fractions) != len(state.Stages)+2 {
		t.Fatalf("progress reports = %v", fractions)
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatalf("progress went backwards: %v", fractions)
		}
	}
	if fractions[len(fractions)-1] != 1.0 {
		t.Fatalf("final fraction = %v", fractions[len(fractions)-1])
	}
}

func TestRunCompleteStateRequiresArtifact(t *testing.T) {
	cfg := newControllerConfig(t)
	var order []string
	c := newTestController(t, cfg,
		WithStageFactory(recordingFactory(&order, nil)),
		WithProbe(testsupport.Probe(testsupport.AudioOnlyReport)),
	)
	source := touchSource(t)

	layout, err := state.NewLayout(c.WorkDirFor(source))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	cp := state.LoadCheckpoint(layout.Checkpoint())
	cp.RunID = "run-complete"
	cp.Source = source
	cp.MarkComplete()
	if err := state.SaveCheckpoint(layout.Checkpoint(), cp); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	_, err = c.Run(context.Background(), RunOptions{Source: source, TargetLanguage: "Spanish"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("stages ran for a completed checkpoint: %v", order)
	}
}

func TestWorkDirForSanitizesSourceName(t *testing.T) {
	cfg := newControllerConfig(t)
	c := newTestController(t, cfg)

	dir := c.WorkDirFor("/media/incoming/Feature Film (2024).mkv")
	base := filepath.Base(dir)
	if base != "feature_film__2024" {
		t.Fatalf("workdir base = %q", base)
	}
	if !strings.HasPrefix(dir, cfg.Paths.WorkDir) {
		t.Fatalf("workdir %q outside %q", dir, cfg.Paths.WorkDir)
	}
}

func TestDetectStateReportsNextStage(t *testing.T) {
	cfg := newControllerConfig(t)
	c := newTestController(t, cfg)
	source := touchSource(t)

	if got := c.DetectState(source); got != state.StageRecognition {
		t.Fatalf("fresh state = %q", got)
	}

	layout, err := state.NewLayout(c.WorkDirFor(source))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := os.WriteFile(layout.Transcript(), []byte(`[{"start":0,"end":1,"text":"hi"}]`), 0o644); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}
	if got := c.DetectState(source); got != state.StageTranslation {
		t.Fatalf("after transcript = %q", got)
	}
}

package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"overdub/internal/fileutil"
)

// Stage names in pipeline order.
const (
	StageRecognition = "recognition"
	StageTranslation = "translation"
	StageSynthesis   = "synthesis"
	StageAssembly    = "assembly"
	StageComplete    = "complete"
	StageFailed      = "failed"
)

// Stages lists the runnable stages in execution order.
var Stages = []string{StageRecognition, StageTranslation, StageSynthesis, StageAssembly}

// Checkpoint records where a run stands. It is advisory; artifact presence on
// disk is the source of truth for resumption.
type Checkpoint struct {
	RunID       string         `json:"run_id"`
	Source      string         `json:"source,omitempty"`
	Stage       string         `json:"stage"`
	Attempts    map[string]int `json:"attempts,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	StartedAt   time.Time      `json:"started_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// LoadCheckpoint reads the checkpoint at path. A missing or unreadable file
// yields an empty checkpoint so a corrupt checkpoint can never block a run.
func LoadCheckpoint(path string) Checkpoint {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}
	}
	return cp
}

// SaveCheckpoint writes the checkpoint atomically.
func SaveCheckpoint(path string, cp Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// RecordAttempt bumps the attempt counter for a stage and returns the new
// count.
func (c *Checkpoint) RecordAttempt(stage string) int {
	if c.Attempts == nil {
		c.Attempts = make(map[string]int)
	}
	c.Attempts[stage]++
	return c.Attempts[stage]
}

// AttemptCount returns how often a stage has been started.
func (c *Checkpoint) AttemptCount(stage string) int {
	return c.Attempts[stage]
}

// MarkComplete stamps the checkpoint as finished.
func (c *Checkpoint) MarkComplete() {
	now := time.Now().UTC()
	c.Stage = StageComplete
	c.CompletedAt = &now
	c.LastError = ""
}

// NextStage returns the stage following the given one, or StageComplete.
func NextStage(stage string) string {
	for i, name := range Stages {
		if name == stage {
			if i+1 < len(Stages) {
				return Stages[i+1]
			}
			return StageComplete
		}
	}
	return StageComplete
}

// DetectStage derives the next stage to run purely from artifact presence in
// the working directory. plannedChunks is the expected chunk count when a
// chunk plan exists; pass the plan length or 0 when unknown.
func DetectStage(layout Layout, plannedChunks int) string {
	if !fileutil.NonEmptyFile(layout.Transcript()) {
		return StageRecognition
	}
	if !fileutil.NonEmptyFile(layout.Translation()) {
		return StageTranslation
	}
	if !chunksComplete(layout, plannedChunks) {
		return StageSynthesis
	}
	if !fileutil.NonEmptyFile(layout.DubbedAudio()) {
		return StageAssembly
	}
	return StageComplete
}

func chunksComplete(layout Layout, plannedChunks int) bool {
	if plannedChunks <= 0 {
		return false
	}
	if !fileutil.NonEmptyFile(layout.ChunkPlan()) {
		return false
	}
	for i := 0; i < plannedChunks; i++ {
		if !fileutil.NonEmptyFile(layout.Chunk(i)) {
			return false
		}
	}
	return true
}

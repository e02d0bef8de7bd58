package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Well-known artifact names inside a run's working directory.
const (
	TranscriptFile   = "transcript.json"
	TranslationFile  = "translation.json"
	ChunkPlanFile    = "chunk_plan.json"
	ChunkDirName     = "chunks"
	SourceAudioFile  = "source_audio.wav"
	DubbedAudioFile  = "dubbed.wav"
	CheckpointFile   = "checkpoint.json"
	RequestLogFile   = "requests.db"
	AssemblyRptFile  = "assembly_report.json"
	OutputVideoToken = "_dubbed"
)

// Layout resolves artifact paths inside one run's working directory.
type Layout struct {
	Root string
}

// NewLayout creates the working directory if needed and returns its layout.
func NewLayout(root string) (Layout, error) {
	if root == "" {
		return Layout{}, fmt.Errorf("layout: working directory required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Layout{}, fmt.Errorf("layout: create %s: %w", root, err)
	}
	return Layout{Root: root}, nil
}

func (l Layout) Transcript() string     { return filepath.Join(l.Root, TranscriptFile) }
func (l Layout) Translation() string    { return filepath.Join(l.Root, TranslationFile) }
func (l Layout) ChunkPlan() string      { return filepath.Join(l.Root, ChunkPlanFile) }
func (l Layout) ChunkDir() string       { return filepath.Join(l.Root, ChunkDirName) }
func (l Layout) SourceAudio() string    { return filepath.Join(l.Root, SourceAudioFile) }
func (l Layout) DubbedAudio() string    { return filepath.Join(l.Root, DubbedAudioFile) }
func (l Layout) Checkpoint() string     { return filepath.Join(l.Root, CheckpointFile) }
func (l Layout) RequestLog() string     { return filepath.Join(l.Root, RequestLogFile) }
func (l Layout) AssemblyReport() string { return filepath.Join(l.Root, AssemblyRptFile) }

// Chunk returns the path of the rendered chunk with the given index.
func (l Layout) Chunk(index int) string {
	return filepath.Join(l.ChunkDir(), fmt.Sprintf("chunk_%04d.wav", index))
}

// OutputVideo derives the dubbed container path next to the source video.
func (l Layout) OutputVideo(source string) string {
	ext := filepath.Ext(source)
	base := source[:len(source)-len(ext)]
	return base + OutputVideoToken + ext
}

// EnsureChunkDir creates the chunk directory.
func (l Layout) EnsureChunkDir() error {
	if err := os.MkdirAll(l.ChunkDir(), 0o755); err != nil {
		return fmt.Errorf("layout: create chunk dir: %w", err)
	}
	return nil
}

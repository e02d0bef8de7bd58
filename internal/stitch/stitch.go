package stitch

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"overdub/internal/chunking"
	"overdub/internal/logging"
	"overdub/internal/wavutil"
)

// Tolerance policy shared by the stitcher and artifact validators. The drift
// constants govern per-chunk correction; the total tolerance governs the
// assembled track.
const (
	// MismatchRatio and MismatchFloor flag a per-chunk duration mismatch when
	// |actual-planned| > max(MismatchRatio*planned, MismatchFloor).
	MismatchRatio = 0.2
	MismatchFloor = 0.5
	// DriftCorrection is the per-chunk drift above which the rendered audio is
	// rate-adjusted to the plan before assembly.
	DriftCorrection = 0.5
	// RateMin/RateMax clamp any single rate adjustment.
	RateMin = 0.5
	RateMax = 2.0
	// GapThreshold is the smallest declared gap that becomes inserted silence.
	GapThreshold = 0.1
	// TotalTolerance is the acceptable relative error of the assembled track
	// against the plan's end time.
	TotalTolerance = 0.05
	// ConformThreshold/ConformLimit bound the optional final adjustment toward
	// an external reference duration.
	ConformThreshold = 1.0
	ConformLimit     = 0.2
)

// Report summarizes an assembly pass.
type Report struct {
	ChunksProcessed    int      `json:"chunks_processed"`
	TotalChunkDuration float64  `json:"total_chunk_duration"`
	FinalAudioDuration float64  `json:"final_audio_duration"`
	TimingAccuracy     string   `json:"timing_accuracy"`
	Issues             []string `json:"issues,omitempty"`
}

// Assembler reassembles per-chunk audio into one timing-accurate track.
type Assembler struct {
	sampleRate int
	logger     *slog.Logger
}

// NewAssembler constructs an assembler producing audio at the given rate.
func NewAssembler(sampleRate int, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Assembler{sampleRate: sampleRate, logger: logger}
}

// SampleRate returns the output rate the assembler produces.
func (a *Assembler) SampleRate() int {
	return a.sampleRate
}

// ChunkFileName returns the well-known name for a rendered chunk.
func ChunkFileName(index int) string {
	return fmt.Sprintf("chunk_%04d.wav", index)
}

// Assemble pairs the chunk plan with rendered files in chunkDir, corrects
// duration drift, concatenates with declared gaps, and writes the result to
// outPath. referenceDuration > 0 additionally conforms the track toward an
// external duration (e.g. the source video length).
func (a *Assembler) Assemble(plan []chunking.Chunk, chunkDir, outPath string, referenceDuration float64) (Report, error) {
	report := Report{}
	if len(plan) == 0 {
		return report, fmt.Errorf("assemble: empty chunk plan")
	}

	track := &wavutil.Clip{SampleRate: a.sampleRate}
	cursor := plan[0].Start

	for i, chunk := range plan {
		path := filepath.Join(chunkDir, ChunkFileName(i))
		clip, err := a.loadChunk(path, chunk, i, &report)
		if err != nil {
			return report, err
		}

		if gap := chunk.Start - cursor; gap > GapThreshold {
			track.AppendSilence(gap)
		}
		if err := track.Append(clip); err != nil {
			return report, fmt.Errorf("assemble chunk %d: %w", i, err)
		}
		cursor = chunk.End
		report.ChunksProcessed++
		report.TotalChunkDuration += chunk.Duration
	}

	planEnd := plan[len(plan)-1].End
	total := track.Duration() + plan[0].Start
	if relativeError(total, planEnd) > TotalTolerance {
		issue := fmt.Sprintf("assembled duration %.2fs deviates more than %.0f%% from planned %.2fs",
			total, TotalTolerance*100, planEnd)
		report.Issues = append(report.Issues, issue)
		a.logger.Warn("assembled track out of tolerance",
			logging.String(logging.FieldEventType, "stitch_out_of_tolerance"),
			logging.Float64("assembled_seconds", total),
			logging.Float64("planned_seconds", planEnd),
		)
	}

	if referenceDuration > 0 && math.Abs(total-referenceDuration) > ConformThreshold {
		factor := clamp(referenceDuration/total, 1-ConformLimit, 1+ConformLimit)
		a.logger.Info("conforming track to reference duration",
			logging.Float64("reference_seconds", referenceDuration),
			logging.Float64("factor", factor),
		)
		track.Stretch(factor)
	}

	track.Normalize(0.9)
	if err := wavutil.Write(outPath, track); err != nil {
		return report, fmt.Errorf("write assembled track: %w", err)
	}

	report.FinalAudioDuration = track.Duration() + plan[0].Start
	report.TimingAccuracy = accuracyBucket(report.FinalAudioDuration, planEnd)
	return report, nil
}

// loadChunk reads a rendered chunk and corrects drift against the plan. A
// missing file yields planned-duration silence so the timeline stays intact.
func (a *Assembler) loadChunk(path string, chunk chunking.Chunk, index int, report *Report) (*wavutil.Clip, error) {
	if _, err := os.Stat(path); err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("chunk %d: rendered file missing", index))
		a.logger.Warn("rendered chunk missing; substituting silence",
			logging.Int("chunk", index),
			logging.String("path", path),
		)
		return wavutil.NewSilence(chunk.Duration, a.sampleRate), nil
	}

	clip, err := wavutil.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read chunk %d: %w", index, err)
	}
	if clip.SampleRate != a.sampleRate {
		return nil, fmt.Errorf("chunk %d: sample rate %d does not match expected %d", index, clip.SampleRate, a.sampleRate)
	}

	actual := clip.Duration()
	drift := math.Abs(actual - chunk.Duration)
	if drift > math.Max(MismatchRatio*chunk.Duration, MismatchFloor) {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"chunk %d: rendered %.2fs vs planned %.2fs", index, actual, chunk.Duration))
	}
	if drift > DriftCorrection && actual > 0 {
		factor := clamp(chunk.Duration/actual, RateMin, RateMax)
		a.logger.Debug("correcting chunk drift",
			logging.Int("chunk", index),
			logging.Float64("actual_seconds", actual),
			logging.Float64("planned_seconds", chunk.Duration),
			logging.Float64("factor", factor),
		)
		clip.Stretch(factor)
	}
	return clip, nil
}

func accuracyBucket(final, planned float64) string {
	delta := math.Abs(final - planned)
	switch {
	case delta <= 0.5 || relativeError(final, planned) <= 0.01:
		return "excellent"
	case delta <= 1.5 || relativeError(final, planned) <= 0.03:
		return "good"
	case relativeError(final, planned) <= TotalTolerance:
		return "acceptable"
	default:
		return "poor"
	}
}

func relativeError(got, want float64) float64 {
	if want <= 0 {
		return 0
	}
	return math.Abs(got-want) / want
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

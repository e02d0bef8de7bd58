package wavutil

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip holds mono PCM samples at a fixed sample rate. All stitcher math
// operates on clips; files are only touched at the edges.
type Clip struct {
	SampleRate int
	Samples    []int
}

const bitDepth = 16

// NewSilence returns a clip of the given duration filled with silence.
func NewSilence(seconds float64, sampleRate int) *Clip {
	count := int(math.Round(seconds * float64(sampleRate)))
	if count < 0 {
		count = 0
	}
	return &Clip{SampleRate: sampleRate, Samples: make([]int, count)}
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Append concatenates another clip onto this one.
func (c *Clip) Append(other *Clip) error {
	if other == nil || len(other.Samples) == 0 {
		return nil
	}
	if c.SampleRate != other.SampleRate {
		return fmt.Errorf("sample rate mismatch: %d vs %d", c.SampleRate, other.SampleRate)
	}
	c.Samples = append(c.Samples, other.Samples...)
	return nil
}

// AppendSilence appends silence of the given duration.
func (c *Clip) AppendSilence(seconds float64) {
	if seconds <= 0 {
		return
	}
	count := int(math.Round(seconds * float64(c.SampleRate)))
	c.Samples = append(c.Samples, make([]int, count)...)
}

// Stretch resamples the clip by factor via linear interpolation, so a factor
// of 2 doubles the playback duration. The sample rate is unchanged.
func (c *Clip) Stretch(factor float64) {
	if factor <= 0 || len(c.Samples) == 0 {
		return
	}
	target := int(math.Round(float64(len(c.Samples)) * factor))
	if target == len(c.Samples) {
		return
	}
	if target <= 0 {
		c.Samples = nil
		return
	}
	out := make([]int, target)
	scale := float64(len(c.Samples)-1) / float64(max(target-1, 1))
	for i := range out {
		pos := float64(i) * scale
		lo := int(pos)
		hi := lo + 1
		if hi >= len(c.Samples) {
			out[i] = c.Samples[len(c.Samples)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = int(math.Round(float64(c.Samples[lo])*(1-frac) + float64(c.Samples[hi])*frac))
	}
	c.Samples = out
}

// Normalize scales samples so the peak sits at the given fraction of full
// scale. Silent clips are left untouched.
func (c *Clip) Normalize(peak float64) {
	if peak <= 0 || peak > 1 {
		peak = 0.9
	}
	maxAbs := 0
	for _, sample := range c.Samples {
		if abs := absInt(sample); abs > maxAbs {
			maxAbs = abs
		}
	}
	if maxAbs == 0 {
		return
	}
	limit := peak * float64(math.MaxInt16)
	gain := limit / float64(maxAbs)
	if gain >= 1 {
		return
	}
	for i, sample := range c.Samples {
		c.Samples[i] = int(math.Round(float64(sample) * gain))
	}
}

// Read decodes a PCM WAV file into a mono clip, averaging channels when the
// source is not mono.
func Read(path string) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("decode wav %s: missing format", path)
	}

	channels := buf.Format.NumChannels
	if channels <= 1 {
		return &Clip{SampleRate: buf.Format.SampleRate, Samples: buf.Data}, nil
	}

	frames := len(buf.Data) / channels
	mono := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += buf.Data[i*channels+ch]
		}
		mono[i] = sum / channels
	}
	return &Clip{SampleRate: buf.Format.SampleRate, Samples: mono}, nil
}

// Write encodes the clip as a 16-bit mono PCM WAV file.
func Write(path string, clip *Clip) error {
	if clip == nil || clip.SampleRate <= 0 {
		return errors.New("write wav: invalid clip")
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, clip.SampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: clip.SampleRate},
		Data:           clampSamples(clip.Samples),
		SourceBitDepth: bitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return file.Close()
}

// Duration reads just enough of a WAV file to report its length in seconds.
func Duration(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	dur, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("probe wav %s: %w", path, err)
	}
	return dur.Seconds(), nil
}

func clampSamples(samples []int) []int {
	out := make([]int, len(samples))
	for i, sample := range samples {
		switch {
		case sample > math.MaxInt16:
			out[i] = math.MaxInt16
		case sample < math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = sample
		}
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

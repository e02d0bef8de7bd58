// Package ffmpeg wraps the ffmpeg CLI for the two container operations the
// pipeline needs: pulling the source audio out for recognition and muxing the
// finished dub back against the original video.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RecognitionSampleRate is the rate recognition models expect.
const RecognitionSampleRate = 16000

// Tool executes ffmpeg commands. A custom command runner can be injected for
// tests.
type Tool struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewTool creates a Tool using the given ffmpeg binary.
func NewTool(binary string) *Tool {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Tool{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *Tool) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	t.commandRunner = runner
}

// ExtractAudio pulls one audio stream out of source as mono 16kHz PCM WAV,
// the shape recognition expects. streamIndex < 0 selects the default stream.
func (t *Tool) ExtractAudio(ctx context.Context, source string, streamIndex int, dest string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("extract audio: source required")
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
	}
	if streamIndex >= 0 {
		args = append(args, "-map", fmt.Sprintf("0:%d", streamIndex))
	}
	args = append(args,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", RecognitionSampleRate),
		"-c:a", "pcm_s16le",
		dest,
	)
	if err := t.run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	return nil
}

// Mux replaces the audio of the source video with the dubbed track. Video
// streams are copied untouched; the dub is encoded to AAC. The output stops
// at the shorter input so a slightly long dub cannot pad the video.
func (t *Tool) Mux(ctx context.Context, video, dubbedAudio, dest string) error {
	if strings.TrimSpace(video) == "" || strings.TrimSpace(dubbedAudio) == "" {
		return fmt.Errorf("mux: video and audio paths required")
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-i", dubbedAudio,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		dest,
	}
	if err := t.run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg mux: %w", err)
	}
	return nil
}

func (t *Tool) run(ctx context.Context, args ...string) error {
	if t.commandRunner != nil {
		return t.commandRunner(ctx, t.binary, args...)
	}
	cmd := exec.CommandContext(ctx, t.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", t.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

package testsupport

import (
	"context"
	"testing"

	"overdub/internal/media/ffprobe"
	"overdub/internal/state"
)

// Canned ffprobe reports for the common source shapes.
const (
	// MovieReport describes a container with one video and one audio stream.
	MovieReport = `{
		"streams": [
			{"index": 0, "codec_name": "h264", "codec_type": "video"},
			{"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2, "tags": {"language": "eng"}}
		],
		"format": {"filename": "movie.mkv", "nb_streams": 2, "duration": "120.5", "format_name": "matroska"}
	}`

	// AudioOnlyReport describes a plain audio file.
	AudioOnlyReport = `{
		"streams": [
			{"index": 0, "codec_name": "pcm_s16le", "codec_type": "audio", "sample_rate": "16000", "channels": 1}
		],
		"format": {"filename": "speech.wav", "nb_streams": 1, "duration": "60.0", "format_name": "wav"}
	}`

	// VideoOnlyReport describes a container with no audio stream at all.
	VideoOnlyReport = `{
		"streams": [
			{"index": 0, "codec_name": "h264", "codec_type": "video"}
		],
		"format": {"filename": "silent.mkv", "nb_streams": 1, "duration": "30.0", "format_name": "matroska"}
	}`
)

// Probe returns a media inspection stub that decodes the canned report
// instead of shelling out to ffprobe.
func Probe(report string) func(context.Context, string, string) (ffprobe.Result, error) {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Decode([]byte(report))
	}
}

// MustOpenRequestLog opens a request log for tests and registers cleanup.
func MustOpenRequestLog(t testing.TB, path string) *state.RequestLog {
	t.Helper()

	log, err := state.OpenRequestLog(path)
	if err != nil {
		t.Fatalf("state.OpenRequestLog: %v", err)
	}
	t.Cleanup(func() {
		log.Close()
	})
	return log
}

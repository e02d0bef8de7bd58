package ffprobe

import "testing"

func TestDecodeAndHelpers(t *testing.T) {
	payload := []byte(`{
		"streams": [
			{"index": 0, "codec_type": "video", "codec_name": "h264"},
			{"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2, "tags": {"language": "eng"}},
			{"index": 2, "codec_type": "audio", "codec_name": "ac3", "sample_rate": "48000", "channels": 6, "tags": {"language": "jpn"}}
		],
		"format": {"filename": "movie.mkv", "nb_streams": 3, "duration": "123.45"}
	}`)
	result, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("audio streams = %d", result.AudioStreamCount())
	}
	if !result.HasVideo() {
		t.Fatal("expected video stream")
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("duration = %v", result.DurationSeconds())
	}

	stream, ok := result.FirstAudioStream("jpn")
	if !ok || stream.Index != 2 {
		t.Fatalf("language match = %+v ok=%v", stream, ok)
	}
	if stream.SampleRateHz() != 48000 {
		t.Fatalf("sample rate = %d", stream.SampleRateHz())
	}

	stream, ok = result.FirstAudioStream("deu")
	if !ok || stream.Index != 1 {
		t.Fatalf("fallback = %+v ok=%v", stream, ok)
	}
	stream, ok = result.FirstAudioStream("")
	if !ok || stream.Index != 1 {
		t.Fatalf("first audio = %+v ok=%v", stream, ok)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("duration = %v", result.DurationSeconds())
	}
	stream := Stream{SampleRate: "nope"}
	if stream.SampleRateHz() != 0 {
		t.Fatalf("sample rate = %d", stream.SampleRateHz())
	}
	if _, ok := (Result{}).FirstAudioStream(""); ok {
		t.Fatal("no audio stream expected")
	}
}

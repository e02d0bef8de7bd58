package wavutil

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeStereo writes interleaved stereo samples for downmix tests.
func writeStereo(path string, sampleRate int, interleaved []int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, bitDepth, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           interleaved,
		SourceBitDepth: bitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("encode stereo: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return file.Close()
}

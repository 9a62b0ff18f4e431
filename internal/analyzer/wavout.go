package analyzer

import (
	"fmt"
	"os"

	"github.com/ciscoittech/sampleagent/internal/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTempWAV writes the clip to a temporary 16-bit WAV file for backends
// that can only consume files. The caller removes the file when done.
func writeTempWAV(clip *audio.Clip) (string, error) {
	f, err := os.CreateTemp("", "sampleagent-*.wav")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	enc := wav.NewEncoder(f, clip.SampleRate, 16, 1, 1)

	data := make([]int, len(clip.Samples))
	for i, s := range clip.Samples {
		v := s
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		data[i] = int(v * 32767.0)
	}

	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: clip.SampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("finalizing wav file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("closing wav file: %w", err)
	}

	return f.Name(), nil
}

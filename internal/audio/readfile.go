package audio

import (
	"os"

	"github.com/ciscoittech/sampleagent/internal/errors"
	"github.com/go-audio/wav"
)

// ReadWAVFile decodes a WAV file into a Clip. Multi-channel files are
// downmixed to mono here, on the decode side of the input contract; the
// analysis pipeline itself only ever sees mono clips.
func ReadWAVFile(path string) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component("audio").
			Category(errors.CategoryAudio).
			Context("path", path).
			Build()
	}

	// Divisor for converting audio samples from int to float
	var divisor float64
	switch decoder.BitDepth {
	case 8:
		divisor = 128.0
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		return nil, errors.Newf("unsupported bit depth: %d", decoder.BitDepth).
			Component("audio").
			Category(errors.CategoryAudio).
			Build()
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("path", path).
			Build()
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch]) / divisor
		}
		samples[i] = sum / float64(channels)
	}

	return &Clip{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   1,
	}, nil
}

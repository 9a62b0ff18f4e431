package analyzer

import (
	"context"
	"math"
	"testing"

	"github.com/ciscoittech/sampleagent/internal/audio"
	"github.com/ciscoittech/sampleagent/internal/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clickTrack synthesizes a clip with short decaying clicks at the given BPM.
func clickTrack(bpm float64, durationSec float64, sampleRate int) *audio.Clip {
	n := int(durationSec * float64(sampleRate))
	samples := make([]float64, n)

	period := int(60.0 / bpm * float64(sampleRate))
	clickLen := sampleRate / 100 // 10 ms
	for start := 0; start < n; start += period {
		for i := 0; i < clickLen; i++ {
			if start+i >= n {
				break
			}
			decay := 1.0 - float64(i)/float64(clickLen)
			samples[start+i] = math.Sin(2*math.Pi*1000*float64(i)/float64(sampleRate)) * decay
		}
	}

	return &audio.Clip{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

func silence(durationSec float64, sampleRate int) *audio.Clip {
	return &audio.Clip{
		Samples:    make([]float64, int(durationSec*float64(sampleRate))),
		SampleRate: sampleRate,
		Channels:   1,
	}
}

func TestOnsetBackendClickTrack(t *testing.T) {
	t.Parallel()

	clip := clickTrack(120, 4.0, 44100)
	est := NewOnsetBackend().Estimate(context.Background(), clip, audio.ClassLoop, KindTempo)

	require.True(t, est.Succeeded, "failure reason: %s", est.FailureReason)
	assert.InDelta(t, 120.0, est.BPM, 8.0)
	assert.Greater(t, est.RawConfidence, 0.5)
	assert.Equal(t, onsetVariantComplex, est.MethodVariant, "short clips use the complex variant")
}

func TestOnsetBackendVariantSelection(t *testing.T) {
	t.Parallel()

	long := clickTrack(120, 35.0, 22050)
	est := NewOnsetBackend().Estimate(context.Background(), long, audio.ClassLoop, KindTempo)

	require.True(t, est.Succeeded)
	assert.Equal(t, onsetVariantEnergy, est.MethodVariant, "long clips use the energy variant")
}

func TestOnsetBackendOneShotBypass(t *testing.T) {
	t.Parallel()

	clip := clickTrack(120, 0.5, 44100)
	est := NewOnsetBackend().Estimate(context.Background(), clip, audio.ClassOneShot, KindTempo)

	assert.False(t, est.Succeeded)
	assert.Equal(t, FailureNoSignal, est.FailureReason)
}

func TestOnsetBackendSilence(t *testing.T) {
	t.Parallel()

	est := NewOnsetBackend().Estimate(context.Background(), silence(4.0, 44100), audio.ClassLoop, KindTempo)

	assert.False(t, est.Succeeded)
	assert.Equal(t, FailureNoSignal, est.FailureReason)
}

func TestOnsetBackendCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	est := NewOnsetBackend().Estimate(ctx, clickTrack(120, 4.0, 44100), audio.ClassLoop, KindTempo)

	assert.False(t, est.Succeeded)
	assert.Equal(t, FailureCancelled, est.FailureReason)
}

func TestAutocorrBackendClickTrack(t *testing.T) {
	t.Parallel()

	clip := clickTrack(120, 8.0, 44100)
	est := NewAutocorrBackend().Estimate(context.Background(), clip, audio.ClassLoop, KindTempo)

	require.True(t, est.Succeeded, "failure reason: %s", est.FailureReason)
	assert.InDelta(t, 120.0, est.BPM, 10.0)
	assert.Greater(t, est.RawConfidence, 0.0)
}

func TestAutocorrBackendSilence(t *testing.T) {
	t.Parallel()

	est := NewAutocorrBackend().Estimate(context.Background(), silence(4.0, 44100), audio.ClassLoop, KindTempo)

	assert.False(t, est.Succeeded)
}

func TestSpectralBackendProbabilityVector(t *testing.T) {
	t.Parallel()

	clip := clickTrack(120, 4.0, 44100)
	est := NewSpectralBackend().Estimate(context.Background(), clip, audio.ClassLoop, KindGenre)

	require.True(t, est.Succeeded)
	require.NotEmpty(t, est.Genres)

	var sum float64
	for _, g := range est.Genres {
		sum += g.Probability
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "probabilities form a distribution")

	for i := 1; i < len(est.Genres); i++ {
		assert.GreaterOrEqual(t, est.Genres[i-1].Probability, est.Genres[i].Probability,
			"vector is sorted by descending probability")
	}

	assert.InDelta(t, est.Genres[0].Probability, est.RawConfidence, 1e-9)
}

func TestSpectralBackendDeterministic(t *testing.T) {
	t.Parallel()

	clip := clickTrack(97, 3.0, 44100)
	backend := NewSpectralBackend()

	a := backend.Estimate(context.Background(), clip, audio.ClassLoop, KindGenre)
	b := backend.Estimate(context.Background(), clip, audio.ClassLoop, KindGenre)

	assert.Equal(t, a, b)
}

func TestAubioBackendProbeMissingBinary(t *testing.T) {
	t.Parallel()

	backend := NewAubioBackend(conf.AubioSettings{BinPath: "definitely-not-a-real-binary-xyz"})
	assert.Error(t, backend.Probe(context.Background()))
}

func TestParseBPMSeries(t *testing.T) {
	t.Parallel()

	out := "127.99 bpm\n128.01 bpm\nnoise line\n128.00 bpm\n"
	series := parseBPMSeries(out)

	require.Len(t, series, 3)
	assert.InDelta(t, 128.0, median(series), 0.05)
}

func TestMLBeatProbeUnconfigured(t *testing.T) {
	t.Parallel()

	backend := NewMLBeatBackend(conf.MLBeatSettings{Runner: "uv"})
	assert.Error(t, backend.Probe(context.Background()))
}

func TestFailedEstimate(t *testing.T) {
	t.Parallel()

	est := Failed("aubio", KindTempo, FailureTimeout)
	assert.False(t, est.Succeeded)
	assert.Equal(t, "aubio", est.BackendID)
	assert.Equal(t, FailureTimeout, est.FailureReason)
	assert.Zero(t, est.BPM)
}

package analyzer

import (
	"context"

	"github.com/ciscoittech/sampleagent/internal/audio"
)

// BackendAutocorr is the id of the envelope-autocorrelation tempo estimator.
const BackendAutocorr = "autocorr"

const (
	autocorrVariantFine   = "fine"
	autocorrVariantCoarse = "coarse"

	// Clips at or above this duration use the coarse variant.
	autocorrFineMaxDuration = 30.0

	// Raw search band before octave correction.
	autocorrMinBPM = 30.0
	autocorrMaxBPM = 300.0
)

// AutocorrBackend estimates tempo from the strongest periodicity of the RMS
// energy envelope.
type AutocorrBackend struct{}

// NewAutocorrBackend returns the autocorrelation tempo estimator.
func NewAutocorrBackend() *AutocorrBackend {
	return &AutocorrBackend{}
}

func (b *AutocorrBackend) ID() string { return BackendAutocorr }

func (b *AutocorrBackend) Capabilities() Capabilities {
	return Capabilities{Tempo: true, Latency: LatencyFast}
}

func (b *AutocorrBackend) ConfidenceScale() float64 { return 1.0 }

// Probe always succeeds, the backend has no runtime dependencies.
func (b *AutocorrBackend) Probe(ctx context.Context) error { return nil }

// Estimate autocorrelates the energy envelope and converts the strongest
// peak lag in the tempo band back to BPM. The normalized peak height is the
// confidence.
func (b *AutocorrBackend) Estimate(ctx context.Context, clip *audio.Clip, class audio.SampleClass, kind Kind) Estimate {
	if kind != KindTempo {
		return Failed(BackendAutocorr, kind, FailureInternal)
	}
	if class == audio.ClassOneShot {
		return Failed(BackendAutocorr, kind, FailureNoSignal)
	}

	variant := autocorrVariantCoarse
	frameSize := clip.SampleRate / 10 // 100 ms frames
	if clip.Duration() < autocorrFineMaxDuration {
		variant = autocorrVariantFine
		frameSize = clip.SampleRate / 20 // 50 ms frames
	}
	hopSize := frameSize / 4

	if ctx.Err() != nil {
		return Failed(BackendAutocorr, kind, FailureCancelled)
	}

	env := rmsEnvelope(clip.Samples, frameSize, hopSize)
	if len(env) < 10 {
		return Failed(BackendAutocorr, kind, FailureNoSignal)
	}

	autocorr := autocorrelate(env, len(env)/2)
	if len(autocorr) == 0 {
		return Failed(BackendAutocorr, kind, FailureNoSignal)
	}

	if ctx.Err() != nil {
		return Failed(BackendAutocorr, kind, FailureCancelled)
	}

	frameDur := float64(hopSize) / float64(clip.SampleRate)
	minLag := int((60.0 / autocorrMaxBPM) / frameDur)
	maxLag := int((60.0 / autocorrMinBPM) / frameDur)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(autocorr) {
		maxLag = len(autocorr) - 1
	}
	if minLag >= maxLag {
		return Failed(BackendAutocorr, kind, FailureNoSignal)
	}

	bestLag := 0
	bestVal := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		if lag == 0 || lag >= len(autocorr)-1 {
			continue
		}
		// Local maxima only; flat correlation is not a beat.
		if autocorr[lag] > autocorr[lag-1] && autocorr[lag] > autocorr[lag+1] && autocorr[lag] > bestVal {
			bestVal = autocorr[lag]
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return Failed(BackendAutocorr, kind, FailureNoSignal)
	}

	period := float64(bestLag) * frameDur
	bpm := 60.0 / period

	return Estimate{
		Kind:          KindTempo,
		BPM:           bpm,
		RawConfidence: clamp01(bestVal),
		BackendID:     BackendAutocorr,
		MethodVariant: variant,
		Succeeded:     true,
	}
}

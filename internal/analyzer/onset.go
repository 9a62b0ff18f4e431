package analyzer

import (
	"context"

	"github.com/ciscoittech/sampleagent/internal/audio"
)

// BackendOnset is the id of the inter-onset-interval tempo estimator.
const BackendOnset = "onset"

// Method variants for the onset backend. The complex variant uses finer
// frames and picks weaker onsets, which does not scale to long inputs, so
// variant selection is duration-based.
const (
	onsetVariantComplex = "complex"
	onsetVariantEnergy  = "energy"

	// Clips at or above this duration use the energy variant.
	onsetComplexMaxDuration = 30.0
)

// OnsetBackend estimates tempo from the spacing of detected onsets.
type OnsetBackend struct{}

// NewOnsetBackend returns the onset tempo estimator.
func NewOnsetBackend() *OnsetBackend {
	return &OnsetBackend{}
}

func (b *OnsetBackend) ID() string { return BackendOnset }

func (b *OnsetBackend) Capabilities() Capabilities {
	return Capabilities{Tempo: true, Latency: LatencyFast}
}

func (b *OnsetBackend) ConfidenceScale() float64 { return 1.0 }

// Probe always succeeds, the backend has no runtime dependencies.
func (b *OnsetBackend) Probe(ctx context.Context) error { return nil }

// Estimate picks onsets from the energy-flux signal and derives BPM from
// the median inter-onset interval. Confidence reflects how regular the
// intervals are.
func (b *OnsetBackend) Estimate(ctx context.Context, clip *audio.Clip, class audio.SampleClass, kind Kind) Estimate {
	if kind != KindTempo {
		return Failed(BackendOnset, kind, FailureInternal)
	}
	if class == audio.ClassOneShot {
		return Failed(BackendOnset, kind, FailureNoSignal)
	}

	variant := onsetVariantEnergy
	frameSize := clip.SampleRate / 10 // 100 ms frames
	peakSensitivity := 1.5
	if clip.Duration() < onsetComplexMaxDuration {
		variant = onsetVariantComplex
		frameSize = clip.SampleRate / 20 // 50 ms frames
		peakSensitivity = 1.0
	}
	hopSize := frameSize / 4

	if ctx.Err() != nil {
		return Failed(BackendOnset, kind, FailureCancelled)
	}

	env := rmsEnvelope(clip.Samples, frameSize, hopSize)
	flux := energyFlux(env)
	if len(flux) == 0 {
		return Failed(BackendOnset, kind, FailureNoSignal)
	}

	// Suppress re-triggers within 100 ms.
	frameDur := float64(hopSize) / float64(clip.SampleRate)
	minGap := int(0.1 / frameDur)
	onsets := pickOnsets(flux, peakSensitivity, minGap)
	if len(onsets) < 3 {
		return Failed(BackendOnset, kind, FailureNoSignal)
	}

	if ctx.Err() != nil {
		return Failed(BackendOnset, kind, FailureCancelled)
	}

	// Inter-onset intervals in seconds, restricted to the 30-300 BPM band.
	var intervals []float64
	for i := 1; i < len(onsets); i++ {
		interval := float64(onsets[i]-onsets[i-1]) * frameDur
		if interval > 0.2 && interval < 2.0 {
			intervals = append(intervals, interval)
		}
	}
	if len(intervals) < 2 {
		return Failed(BackendOnset, kind, FailureNoSignal)
	}

	med := median(intervals)
	if med <= 0 {
		return Failed(BackendOnset, kind, FailureNoSignal)
	}
	bpm := 60.0 / med

	// Regular spacing means a trustworthy estimate; a high coefficient of
	// variation means the onsets do not describe one pulse.
	m := mean(intervals)
	cv := 0.0
	if m > 0 {
		cv = stddev(intervals, m) / m
	}
	confidence := clamp01(1.0 - cv)

	return Estimate{
		Kind:          KindTempo,
		BPM:           bpm,
		RawConfidence: confidence,
		BackendID:     BackendOnset,
		MethodVariant: variant,
		Succeeded:     true,
	}
}

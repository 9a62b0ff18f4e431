package analyzer

import (
	"context"
	"math"
	"sort"

	"github.com/ciscoittech/sampleagent/internal/audio"
)

// BackendSpectral is the id of the heuristic in-process genre classifier.
const BackendSpectral = "spectral"

const spectralVariantFeatures = "feature-heuristic"

// spectralProfile is one fine-grained genre prototype in feature space.
// Features are zero-crossing rate, onset rate (per second) and envelope
// dynamics, all normalized to [0, 1] before matching.
type spectralProfile struct {
	label    string
	zcr      float64
	onsets   float64
	dynamics float64
}

// Fine-grained labels on purpose; the GenreMapper folds them into the
// production taxonomy downstream.
var spectralProfiles = []spectralProfile{
	{label: "four on the floor techno", zcr: 0.55, onsets: 0.75, dynamics: 0.45},
	{label: "deep house", zcr: 0.45, onsets: 0.60, dynamics: 0.40},
	{label: "boom bap hip hop", zcr: 0.35, onsets: 0.45, dynamics: 0.60},
	{label: "jungle breakbeat", zcr: 0.65, onsets: 0.90, dynamics: 0.70},
	{label: "ambient drone", zcr: 0.15, onsets: 0.05, dynamics: 0.10},
	{label: "funk breaks", zcr: 0.40, onsets: 0.65, dynamics: 0.75},
	{label: "indie rock", zcr: 0.60, onsets: 0.55, dynamics: 0.65},
}

// SpectralBackend classifies genre from coarse signal statistics. It is the
// cheap always-available genre source next to the ML model.
type SpectralBackend struct{}

// NewSpectralBackend returns the heuristic genre classifier.
func NewSpectralBackend() *SpectralBackend {
	return &SpectralBackend{}
}

func (b *SpectralBackend) ID() string { return BackendSpectral }

func (b *SpectralBackend) Capabilities() Capabilities {
	return Capabilities{Genre: true, Latency: LatencyFast}
}

func (b *SpectralBackend) ConfidenceScale() float64 { return 1.0 }

// Probe always succeeds, the backend has no runtime dependencies.
func (b *SpectralBackend) Probe(ctx context.Context) error { return nil }

// Estimate extracts coarse features and scores each genre prototype by
// distance in feature space. Scores are normalized into a probability
// vector over all prototypes.
func (b *SpectralBackend) Estimate(ctx context.Context, clip *audio.Clip, class audio.SampleClass, kind Kind) Estimate {
	if kind != KindGenre {
		return Failed(BackendSpectral, kind, FailureInternal)
	}

	if ctx.Err() != nil {
		return Failed(BackendSpectral, kind, FailureCancelled)
	}

	zcr, onsetRate, dynamics, ok := b.extractFeatures(clip)
	if !ok {
		return Failed(BackendSpectral, kind, FailureNoSignal)
	}

	// Normalize raw features into the prototype space.
	// ZCR of dense percussive material sits around 0.2 crossings/sample.
	fZCR := clamp01(zcr / 0.2)
	// 8 onsets/second is very busy material.
	fOnsets := clamp01(onsetRate / 8.0)
	fDynamics := clamp01(dynamics)

	scores := make([]float64, len(spectralProfiles))
	var total float64
	for i, p := range spectralProfiles {
		d := math.Abs(fZCR-p.zcr) + math.Abs(fOnsets-p.onsets) + math.Abs(fDynamics-p.dynamics)
		// Distance of 3 is maximal in this space.
		scores[i] = math.Max(0.01, 1.0-d/3.0)
		total += scores[i]
	}

	genres := make([]LabelProb, len(spectralProfiles))
	for i, p := range spectralProfiles {
		genres[i] = LabelProb{Label: p.label, Probability: scores[i] / total}
	}
	sort.Slice(genres, func(i, j int) bool {
		if genres[i].Probability != genres[j].Probability {
			return genres[i].Probability > genres[j].Probability
		}
		return genres[i].Label < genres[j].Label
	})

	return Estimate{
		Kind:          KindGenre,
		Genres:        genres,
		RawConfidence: genres[0].Probability,
		BackendID:     BackendSpectral,
		MethodVariant: spectralVariantFeatures,
		Succeeded:     true,
	}
}

// extractFeatures computes zero-crossing rate, onset rate per second and a
// dynamics measure (envelope coefficient of variation, clamped).
func (b *SpectralBackend) extractFeatures(clip *audio.Clip) (zcr, onsetRate, dynamics float64, ok bool) {
	if len(clip.Samples) == 0 || clip.SampleRate <= 0 {
		return 0, 0, 0, false
	}

	zcr = zeroCrossingRate(clip.Samples)

	frameSize := clip.SampleRate / 20
	hopSize := frameSize / 4
	env := rmsEnvelope(clip.Samples, frameSize, hopSize)
	if len(env) < 4 {
		return 0, 0, 0, false
	}

	flux := energyFlux(env)
	frameDur := float64(hopSize) / float64(clip.SampleRate)
	onsets := pickOnsets(flux, 1.2, int(0.05/frameDur))
	onsetRate = float64(len(onsets)) / clip.Duration()

	m := mean(env)
	if m > 0 {
		dynamics = clamp01(stddev(env, m) / m)
	}

	return zcr, onsetRate, dynamics, true
}

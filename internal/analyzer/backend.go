// Package analyzer defines the pluggable analysis backend contract and the
// backends shipped with sampleagent.
package analyzer

import (
	"context"

	"github.com/ciscoittech/sampleagent/internal/audio"
)

// Kind identifies what a backend estimate describes.
type Kind int

const (
	KindTempo Kind = iota
	KindGenre
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTempo:
		return "tempo"
	case KindGenre:
		return "genre"
	default:
		return "unknown"
	}
}

// FailureReason explains why a backend produced no usable estimate.
type FailureReason string

const (
	FailureNone                FailureReason = ""
	FailureUnavailable         FailureReason = "BackendUnavailable"
	FailureTimeout             FailureReason = "BackendTimeout"
	FailureCancelled           FailureReason = "Cancelled"
	FailureDecode              FailureReason = "AudioDecodeFailed"
	FailureNoSignal            FailureReason = "NoUsableSignal"
	FailureOutOfPlausibleRange FailureReason = "OutOfPlausibleRange"
	FailureInternal            FailureReason = "InternalError"
)

// LabelProb is one entry of a genre probability vector.
type LabelProb struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Estimate is one backend's raw output for one clip. Estimates are created
// fresh per analysis call and never mutated; octave correction produces a
// separate CorrectedEstimate.
type Estimate struct {
	Kind          Kind
	BPM           float64     // tempo estimates only
	Genres        []LabelProb // genre estimates only, fine-grained labels
	RawConfidence float64     // on the backend's documented scale
	BackendID     string
	MethodVariant string
	Succeeded     bool
	FailureReason FailureReason
}

// Failed builds a failed estimate for the given backend and kind.
func Failed(backendID string, kind Kind, reason FailureReason) Estimate {
	return Estimate{
		Kind:          kind,
		BackendID:     backendID,
		Succeeded:     false,
		FailureReason: reason,
	}
}

// LatencyClass roughly orders backends by expected call duration.
type LatencyClass string

const (
	LatencyFast   LatencyClass = "fast"   // pure in-process DSP
	LatencyMedium LatencyClass = "medium" // external CLI call
	LatencySlow   LatencyClass = "slow"   // model inference subprocess
)

// Capabilities declares, statically, what a backend can estimate.
type Capabilities struct {
	Tempo   bool
	Genre   bool
	Latency LatencyClass
}

// Supports reports whether the capability set covers the given kind.
func (c Capabilities) Supports(kind Kind) bool {
	switch kind {
	case KindTempo:
		return c.Tempo
	case KindGenre:
		return c.Genre
	default:
		return false
	}
}

// Backend is one pluggable analysis unit. Implementations must express all
// failure as a non-succeeded Estimate; nothing may panic or error across
// this boundary. Estimate honors ctx cancellation on a best-effort basis.
type Backend interface {
	// ID returns the stable backend identifier used in configuration,
	// logs and audit records.
	ID() string

	// Capabilities returns the static capability flags.
	Capabilities() Capabilities

	// ConfidenceScale returns the maximum of the backend's native
	// confidence scale; raw confidences are divided by this before use.
	ConfidenceScale() float64

	// Probe checks whether the backend can run right now (optional
	// runtime dependencies present). It is called at startup and by the
	// health-check path, never during Estimate.
	Probe(ctx context.Context) error

	// Estimate produces one raw estimate of the given kind for the clip.
	Estimate(ctx context.Context, clip *audio.Clip, class audio.SampleClass, kind Kind) Estimate
}

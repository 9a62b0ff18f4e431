package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/ciscoittech/sampleagent/internal/audio"
	"github.com/ciscoittech/sampleagent/internal/conf"
)

// BackendMLBeat is the id of the external ML model backend.
const BackendMLBeat = "mlbeat"

const mlbeatVariantModel = "model-subprocess"

// mlbeatOutput is the JSON record the model runner script emits.
type mlbeatOutput struct {
	BPM           float64 `json:"bpm"`
	BPMConfidence float64 `json:"bpm_confidence"`
	Genres        []struct {
		Label       string  `json:"label"`
		Probability float64 `json:"probability"`
	} `json:"genres"`
}

// MLBeatBackend invokes an external beat/genre model as a subprocess that
// prints one JSON object. It supports both tempo and genre estimates and is
// unavailable when the runner, script or model path is missing.
type MLBeatBackend struct {
	runner string
	script string
	model  string
}

// NewMLBeatBackend returns the ML model backend.
func NewMLBeatBackend(settings conf.MLBeatSettings) *MLBeatBackend {
	return &MLBeatBackend{
		runner: settings.Runner,
		script: settings.Script,
		model:  settings.Model,
	}
}

func (b *MLBeatBackend) ID() string { return BackendMLBeat }

func (b *MLBeatBackend) Capabilities() Capabilities {
	return Capabilities{Tempo: true, Genre: true, Latency: LatencySlow}
}

func (b *MLBeatBackend) ConfidenceScale() float64 { return 1.0 }

// Probe checks for the runner binary, the script and the model directory.
func (b *MLBeatBackend) Probe(ctx context.Context) error {
	if b.script == "" || b.model == "" {
		return fmt.Errorf("mlbeat backend not configured")
	}
	if _, err := exec.LookPath(b.runner); err != nil {
		return fmt.Errorf("model runner not found: %w", err)
	}
	if _, err := os.Stat(b.script); err != nil {
		return fmt.Errorf("model script not found: %w", err)
	}
	if _, err := os.Stat(b.model); err != nil {
		return fmt.Errorf("model not found: %w", err)
	}
	return nil
}

// Estimate runs the model subprocess on a temp WAV and converts its JSON
// output to an estimate of the requested kind.
func (b *MLBeatBackend) Estimate(ctx context.Context, clip *audio.Clip, class audio.SampleClass, kind Kind) Estimate {
	if kind == KindTempo && class == audio.ClassOneShot {
		return Failed(BackendMLBeat, kind, FailureNoSignal)
	}

	wavPath, err := writeTempWAV(clip)
	if err != nil {
		return Failed(BackendMLBeat, kind, FailureDecode)
	}
	defer os.Remove(wavPath)

	cmd := exec.CommandContext(ctx, b.runner, "run", b.script,
		"--model", b.model,
		"--json",
		wavPath,
	)
	out, err := cmd.Output()
	if ctx.Err() != nil {
		return Failed(BackendMLBeat, kind, FailureCancelled)
	}
	if err != nil {
		return Failed(BackendMLBeat, kind, FailureUnavailable)
	}

	var result mlbeatOutput
	if err := json.Unmarshal(out, &result); err != nil {
		return Failed(BackendMLBeat, kind, FailureInternal)
	}

	switch kind {
	case KindTempo:
		if result.BPM <= 0 {
			return Failed(BackendMLBeat, kind, FailureNoSignal)
		}
		return Estimate{
			Kind:          KindTempo,
			BPM:           result.BPM,
			RawConfidence: clamp01(result.BPMConfidence),
			BackendID:     BackendMLBeat,
			MethodVariant: mlbeatVariantModel,
			Succeeded:     true,
		}
	case KindGenre:
		if len(result.Genres) == 0 {
			return Failed(BackendMLBeat, kind, FailureNoSignal)
		}
		genres := make([]LabelProb, 0, len(result.Genres))
		top := 0.0
		for _, g := range result.Genres {
			genres = append(genres, LabelProb{Label: g.Label, Probability: clamp01(g.Probability)})
			if g.Probability > top {
				top = g.Probability
			}
		}
		return Estimate{
			Kind:          KindGenre,
			Genres:        genres,
			RawConfidence: clamp01(top),
			BackendID:     BackendMLBeat,
			MethodVariant: mlbeatVariantModel,
			Succeeded:     true,
		}
	default:
		return Failed(BackendMLBeat, kind, FailureInternal)
	}
}

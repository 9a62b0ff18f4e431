package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/ciscoittech/sampleagent/internal/audio"
	"github.com/ciscoittech/sampleagent/internal/conf"
)

// BackendAubio is the id of the backend shelling out to the aubio CLI.
const BackendAubio = "aubio"

const aubioVariantTempo = "tempo-cli"

var aubioBPMLine = regexp.MustCompile(`([0-9]+(\.[0-9]+)?)\s*bpm`)

// AubioBackend runs `aubio tempo` against the clip and folds the reported
// BPM series into one estimate. It is unavailable when the binary is not
// installed.
type AubioBackend struct {
	binPath string
}

// NewAubioBackend returns the aubio CLI backend.
func NewAubioBackend(settings conf.AubioSettings) *AubioBackend {
	bin := settings.BinPath
	if bin == "" {
		bin = "aubio"
	}
	return &AubioBackend{binPath: bin}
}

func (b *AubioBackend) ID() string { return BackendAubio }

func (b *AubioBackend) Capabilities() Capabilities {
	return Capabilities{Tempo: true, Latency: LatencyMedium}
}

func (b *AubioBackend) ConfidenceScale() float64 { return 1.0 }

// Probe checks that the aubio binary is on the path.
func (b *AubioBackend) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(b.binPath); err != nil {
		return fmt.Errorf("aubio binary not found: %w", err)
	}
	return nil
}

// Estimate writes the clip to a temp WAV, runs `aubio tempo -i` on it and
// takes the median of the reported BPM series. Confidence is derived from
// the series spread.
func (b *AubioBackend) Estimate(ctx context.Context, clip *audio.Clip, class audio.SampleClass, kind Kind) Estimate {
	if kind != KindTempo {
		return Failed(BackendAubio, kind, FailureInternal)
	}
	if class == audio.ClassOneShot {
		return Failed(BackendAubio, kind, FailureNoSignal)
	}

	wavPath, err := writeTempWAV(clip)
	if err != nil {
		return Failed(BackendAubio, kind, FailureDecode)
	}
	defer os.Remove(wavPath)

	out, err := exec.CommandContext(ctx, b.binPath, "tempo", "-i", wavPath).Output()
	if ctx.Err() != nil {
		return Failed(BackendAubio, kind, FailureCancelled)
	}
	if err != nil && len(out) == 0 {
		return Failed(BackendAubio, kind, FailureUnavailable)
	}

	series := parseBPMSeries(string(out))
	if len(series) == 0 {
		return Failed(BackendAubio, kind, FailureNoSignal)
	}

	bpm := median(series)

	// A stable series means aubio locked onto one pulse.
	m := mean(series)
	spread := 0.0
	if m > 0 {
		spread = stddev(series, m) / m
	}
	confidence := clamp01(1.0 - spread*4.0)

	return Estimate{
		Kind:          KindTempo,
		BPM:           bpm,
		RawConfidence: confidence,
		BackendID:     BackendAubio,
		MethodVariant: aubioVariantTempo,
		Succeeded:     true,
	}
}

// parseBPMSeries extracts every "<value> bpm" line from aubio output.
func parseBPMSeries(out string) []float64 {
	var vals []float64
	sc := bufio.NewScanner(strings.NewReader(strings.ToLower(out)))
	for sc.Scan() {
		if m := aubioBPMLine.FindStringSubmatch(sc.Text()); len(m) >= 2 {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
				vals = append(vals, v)
			}
		}
	}
	return vals
}

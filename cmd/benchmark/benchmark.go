// Package benchmark implements the analysis pipeline benchmark command.
package benchmark

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/ciscoittech/sampleagent/internal/analysis"
	"github.com/ciscoittech/sampleagent/internal/analyzer"
	"github.com/ciscoittech/sampleagent/internal/audio"
	"github.com/ciscoittech/sampleagent/internal/conf"
)

var iterations int

// Command creates the benchmark command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run analysis pipeline benchmark",
		Long:  "Run the full analysis pipeline against synthetic click tracks and report timing per pass.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations < 1 || iterations > 1000 {
				return fmt.Errorf("iterations must be between 1 and 1000, got %d", iterations)
			}
			return runBenchmark(cmd.Context(), settings)
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", 5, "analysis passes per test tempo (1-1000)")

	return cmd
}

// benchmark tempos cover the slow, mid and fast ends of the plausible range.
var testTempos = []float64{70, 95, 120, 128, 174}

func runBenchmark(ctx context.Context, settings *conf.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}

	registry, err := analyzer.NewRegistry(&settings.Analysis)
	if err != nil {
		return err
	}
	registry.Probe(ctx)

	orchestrator, err := analysis.New(settings, registry)
	if err != nil {
		return err
	}
	defer func() { _ = orchestrator.Close() }()

	for _, bpm := range testTempos {
		clip := clickTrack(bpm, 10, 44100)

		var total time.Duration
		var lastBPM float64
		for i := 0; i < iterations; i++ {
			start := time.Now()
			result, err := orchestrator.Analyze(ctx, clip)
			if err != nil {
				return err
			}
			total += time.Since(start)
			if result.BPM != nil {
				lastBPM = *result.BPM
			}
		}

		avg := total / time.Duration(iterations)
		fmt.Printf("%6.1f BPM source: avg %8s per pass, last estimate %.1f BPM\n", bpm, avg, lastBPM)
	}

	return nil
}

// clickTrack synthesizes a metronome-like clip with decaying clicks at the
// given tempo.
func clickTrack(bpm, seconds float64, rate int) *audio.Clip {
	n := int(seconds * float64(rate))
	samples := make([]float64, n)

	interval := 60.0 / bpm
	clickLen := int(0.01 * float64(rate))
	for t := 0.0; t < seconds; t += interval {
		start := int(t * float64(rate))
		for i := 0; i < clickLen && start+i < n; i++ {
			decay := 1.0 - float64(i)/float64(clickLen)
			samples[start+i] += 0.8 * decay * math.Sin(2*math.Pi*1000*float64(i)/float64(rate))
		}
	}

	return &audio.Clip{Samples: samples, SampleRate: rate, Channels: 1}
}

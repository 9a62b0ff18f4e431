// Package file implements the single-file analysis command.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ciscoittech/sampleagent/internal/analysis"
	"github.com/ciscoittech/sampleagent/internal/analyzer"
	"github.com/ciscoittech/sampleagent/internal/audio"
	"github.com/ciscoittech/sampleagent/internal/conf"
	"github.com/ciscoittech/sampleagent/internal/consensus"
)

var outputFormat string

// Command creates the file command for analyzing a single WAV file.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Analyze an audio file",
		Long:  "Estimate tempo and genre for a single WAV file and print the consensus result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFileAnalysis(cmd.Context(), settings, args[0])
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json, table")

	return cmd
}

func runFileAnalysis(ctx context.Context, settings *conf.Settings, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	clip, err := audio.ReadWAVFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
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

	result, err := orchestrator.Analyze(ctx, clip)
	if err != nil {
		return err
	}

	switch outputFormat {
	case "table":
		printTable(result)
		return nil
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

func printTable(result *consensus.Result) {
	if result.BPM != nil {
		fmt.Printf("BPM:         %.1f (confidence %d)\n", *result.BPM, result.BPMConfidence)
	} else {
		fmt.Println("BPM:         unknown")
	}

	if result.GenrePrimary != nil {
		fmt.Printf("Genre:       %s (confidence %d)\n", *result.GenrePrimary, result.GenreConfidence)
		for _, g := range result.GenreTopN {
			fmt.Printf("             %-16s %.2f\n", g.Label, g.Probability)
		}
	} else {
		fmt.Println("Genre:       unknown")
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("Warnings:    %v\n", result.Warnings)
	}
}

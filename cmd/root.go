// Package cmd assembles the sampleagent command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ciscoittech/sampleagent/cmd/backends"
	"github.com/ciscoittech/sampleagent/cmd/benchmark"
	"github.com/ciscoittech/sampleagent/cmd/file"
	"github.com/ciscoittech/sampleagent/cmd/serve"
	"github.com/ciscoittech/sampleagent/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sampleagent",
		Short: "Sampleagent CLI",
		Long:  "Tempo and genre analysis for audio samples using multiple reconciled backends.",
	}

	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")

	rootCmd.AddCommand(
		file.Command(settings),
		backends.Command(settings),
		benchmark.Command(settings),
		serve.Command(settings),
	)

	return rootCmd
}

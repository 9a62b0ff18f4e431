// Package backends implements the backend listing command.
package backends

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ciscoittech/sampleagent/internal/analyzer"
	"github.com/ciscoittech/sampleagent/internal/conf"
)

// Command creates the backends command for listing registered analyzer
// backends and their probed availability.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List analyzer backends",
		Long:  "List the enabled analyzer backends with their capabilities, weights and current availability.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listBackends(cmd.Context(), settings)
		},
	}
}

func listBackends(ctx context.Context, settings *conf.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}

	registry, err := analyzer.NewRegistry(&settings.Analysis)
	if err != nil {
		return err
	}
	registry.Probe(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEMPO\tGENRE\tLATENCY\tWEIGHT\tAVAILABLE")
	for _, reg := range registry.All() {
		caps := reg.Backend.Capabilities()
		fmt.Fprintf(w, "%s\t%v\t%v\t%s\t%.2f\t%v\n",
			reg.Backend.ID(),
			caps.Tempo,
			caps.Genre,
			caps.Latency,
			reg.Weight,
			reg.Available(),
		)
	}
	return w.Flush()
}

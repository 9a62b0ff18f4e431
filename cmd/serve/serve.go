// Package serve implements the HTTP analysis service command.
package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ciscoittech/sampleagent/internal/analysis"
	"github.com/ciscoittech/sampleagent/internal/analyzer"
	"github.com/ciscoittech/sampleagent/internal/audio"
	"github.com/ciscoittech/sampleagent/internal/conf"
	"github.com/ciscoittech/sampleagent/internal/logging"
	"github.com/ciscoittech/sampleagent/internal/observability"
)

var listenAddress string

// Command creates the serve command exposing analysis over HTTP.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP service",
		Long:  "Serve clip analysis over HTTP. POST a WAV body to /analyze to receive the consensus result as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	cmd.Flags().StringVarP(&listenAddress, "listen", "l", ":8090", "IP address and port to listen on")

	return cmd
}

func runServe(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	registry, err := analyzer.NewRegistry(&settings.Analysis)
	if err != nil {
		return err
	}
	registry.Probe(context.Background())

	orchestrator, err := analysis.New(settings, registry)
	if err != nil {
		return err
	}
	defer func() { _ = orchestrator.Close() }()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	orchestrator.SetMetrics(metrics.Analysis)

	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", analyzeHandler(orchestrator))
	mux.HandleFunc("/healthz", healthHandler(registry))

	server := &http.Server{
		Addr:              listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	quit := make(chan struct{})
	var wg sync.WaitGroup

	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return err
		}
		endpoint.Start(&wg, quit)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		close(quit)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	logger.Info("analysis service starting", "listen", listenAddress)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	wg.Wait()
	return nil
}

// analyzeHandler accepts a WAV body and returns the consensus result.
func analyzeHandler(orchestrator *analysis.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		clip, err := readClipBody(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := orchestrator.Analyze(r.Context(), clip)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

// readClipBody spools the request body to a temp file and decodes it. The
// WAV decoder needs a seekable reader.
func readClipBody(body io.Reader) (*audio.Clip, error) {
	tmp, err := os.CreateTemp("", "sampleagent-*.wav")
	if err != nil {
		return nil, fmt.Errorf("error spooling upload: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return nil, fmt.Errorf("error spooling upload: %w", err)
	}

	return audio.ReadWAVFile(tmp.Name())
}

// healthHandler reports per-backend availability.
func healthHandler(registry *analyzer.Registry) http.HandlerFunc {
	type backendHealth struct {
		ID        string `json:"id"`
		Available bool   `json:"available"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		registry.Probe(r.Context())

		health := []backendHealth{}
		for _, reg := range registry.All() {
			health = append(health, backendHealth{
				ID:        reg.Backend.ID(),
				Available: reg.Available(),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"backends": health})
	}
}

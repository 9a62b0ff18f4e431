package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ciscoittech/sampleagent/internal/analyzer"
	"github.com/ciscoittech/sampleagent/internal/audio"
)

// runBackends fans one estimate request out to every available backend that
// supports the kind. Calls run concurrently under the worker pool semaphore,
// each bounded by the per-backend timeout. A backend that times out or is
// cancelled contributes a failed estimate, never a partial one.
//
// The returned slice is sorted by backend id so downstream consensus sees the
// same order regardless of which goroutine finished first.
func (o *Orchestrator) runBackends(ctx context.Context, clip *audio.Clip, class audio.SampleClass, kind analyzer.Kind) []analyzer.Estimate {
	regs := o.registry.Select(kind)
	estimates := make([]analyzer.Estimate, len(regs))

	var wg sync.WaitGroup
	for i, reg := range regs {
		wg.Add(1)
		go func(i int, reg *analyzer.Registration) {
			defer wg.Done()
			estimates[i] = o.callBackend(ctx, reg, clip, class, kind)
		}(i, reg)
	}
	wg.Wait()

	sort.Slice(estimates, func(i, j int) bool {
		return estimates[i].BackendID < estimates[j].BackendID
	})
	return estimates
}

// callBackend runs a single backend estimate under the pool semaphore and the
// per-backend timeout.
func (o *Orchestrator) callBackend(ctx context.Context, reg *analyzer.Registration, clip *audio.Clip, class audio.SampleClass, kind analyzer.Kind) analyzer.Estimate {
	backendID := reg.Backend.ID()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		// The analysis deadline fired while this call was still queued.
		return analyzer.Failed(backendID, kind, analyzer.FailureCancelled)
	}
	defer o.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, o.settings.Analysis.BackendTimeout())
	defer cancel()

	start := time.Now()

	done := make(chan analyzer.Estimate, 1)
	go func() {
		done <- reg.Backend.Estimate(callCtx, clip, class, kind)
	}()

	var est analyzer.Estimate
	select {
	case est = <-done:
	case <-callCtx.Done():
		// The backend is past its deadline; abandon the call rather than
		// let one slow backend hold the whole analysis.
		reason := analyzer.FailureTimeout
		if ctx.Err() != nil {
			reason = analyzer.FailureCancelled
		}
		est = analyzer.Failed(backendID, kind, reason)
	}

	elapsed := time.Since(start)
	status := "ok"
	if !est.Succeeded {
		status = string(est.FailureReason)
	}
	if o.metrics != nil {
		o.metrics.RecordBackendCall(backendID, kind.String(), status, elapsed.Seconds())
	}

	if !est.Succeeded {
		o.logger.Debug("backend produced no estimate",
			"backend_id", backendID,
			"kind", kind.String(),
			"reason", est.FailureReason,
			"elapsed_ms", elapsed.Milliseconds())
	}

	return est
}

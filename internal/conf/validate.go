package conf

import (
	"fmt"

	"github.com/ciscoittech/sampleagent/internal/errors"
)

// ValidateSettings checks the loaded settings for values the analysis
// pipeline cannot work with. It returns the first problem found.
func ValidateSettings(s *Settings) error {
	if len(s.Analysis.AcceptedSampleRates) == 0 {
		return validationError("analysis.acceptedsamplerates must not be empty")
	}
	for _, rate := range s.Analysis.AcceptedSampleRates {
		if rate <= 0 {
			return validationError(fmt.Sprintf("invalid accepted sample rate: %d", rate))
		}
	}

	r := s.Analysis.Tempo.PlausibleRange
	if r.Low <= 0 || r.High <= r.Low {
		return validationError(fmt.Sprintf("invalid tempo plausible range [%.1f, %.1f]", r.Low, r.High))
	}

	if s.Analysis.Tempo.OutlierThreshold <= 0 {
		return validationError("analysis.tempo.outlierthreshold must be positive")
	}

	if s.Analysis.Tempo.OneShotMaxDuration <= 0 {
		return validationError("analysis.tempo.oneshotmaxduration must be positive")
	}

	if s.Analysis.WorkerPool.Size < 1 {
		return validationError("analysis.workerpool.size must be at least 1")
	}

	if s.Analysis.Timeouts.BackendMs <= 0 || s.Analysis.Timeouts.GlobalMs <= 0 {
		return validationError("analysis timeouts must be positive")
	}

	if len(s.Analysis.Backends.Enabled) == 0 {
		return validationError("analysis.backends.enabled must name at least one backend")
	}

	for id, weight := range s.Analysis.Backends.Weights {
		if weight < 0 {
			return validationError(fmt.Sprintf("backend weight for %q must not be negative", id))
		}
	}

	if s.Genre.Taxonomy.Default == "" {
		return validationError("genre.taxonomy.default must not be empty")
	}

	return nil
}

func validationError(msg string) error {
	return errors.Newf("%s", msg).
		Component("configuration").
		Category(errors.CategoryConfiguration).
		Build()
}

package consensus

import (
	"math"
	"sort"
)

// OutlierFilter rejects tempo estimates that disagree too strongly with the
// group median, so one broken backend cannot drag the weighted average.
type OutlierFilter struct {
	// ThresholdBPM is the maximum allowed absolute distance from the
	// group median.
	ThresholdBPM float64
}

// NewOutlierFilter returns a filter with the given threshold.
func NewOutlierFilter(thresholdBPM float64) *OutlierFilter {
	return &OutlierFilter{ThresholdBPM: thresholdBPM}
}

// Filter splits estimates into kept and rejected sets. When rejecting would
// leave nothing, everything is kept: a noisy consensus beats an empty one.
func (f *OutlierFilter) Filter(estimates []CorrectedEstimate) (kept, rejected []CorrectedEstimate) {
	if len(estimates) == 0 {
		return nil, nil
	}

	values := make([]float64, len(estimates))
	for i, est := range estimates {
		values[i] = est.BPM
	}
	med := medianOf(values)

	for _, est := range estimates {
		if math.Abs(est.BPM-med) > f.ThresholdBPM {
			rejected = append(rejected, est)
		} else {
			kept = append(kept, est)
		}
	}

	if len(kept) == 0 {
		return estimates, nil
	}
	return kept, rejected
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

package analyzer

import (
	"math"
	"sort"
)

// rmsEnvelope computes the frame-wise RMS energy envelope of a signal.
func rmsEnvelope(signal []float64, frameSize, hopSize int) []float64 {
	if frameSize <= 0 || hopSize <= 0 || len(signal) < frameSize {
		return nil
	}

	frames := 1 + (len(signal)-frameSize)/hopSize
	env := make([]float64, frames)
	for i := 0; i < frames; i++ {
		start := i * hopSize
		var sum float64
		for _, s := range signal[start : start+frameSize] {
			sum += s * s
		}
		env[i] = math.Sqrt(sum / float64(frameSize))
	}
	return env
}

// autocorrelate computes the normalized autocorrelation of a signal up to
// maxLag. The zero-lag value is 1 after normalization.
func autocorrelate(signal []float64, maxLag int) []float64 {
	if maxLag > len(signal) {
		maxLag = len(signal)
	}
	if maxLag <= 0 {
		return nil
	}

	autocorr := make([]float64, maxLag)
	for lag := 0; lag < maxLag; lag++ {
		var sum float64
		n := len(signal) - lag
		for i := 0; i < n; i++ {
			sum += signal[i] * signal[i+lag]
		}
		if n > 0 {
			autocorr[lag] = sum / float64(n)
		}
	}

	if autocorr[0] > 0 {
		for i := range autocorr {
			autocorr[i] /= autocorr[0]
		}
	}
	return autocorr
}

// energyFlux returns the half-wave rectified frame-to-frame envelope
// difference, the onset strength signal both tempo backends build on.
func energyFlux(env []float64) []float64 {
	if len(env) < 2 {
		return nil
	}
	flux := make([]float64, len(env)-1)
	for i := 1; i < len(env); i++ {
		d := env[i] - env[i-1]
		if d > 0 {
			flux[i-1] = d
		}
	}
	return flux
}

// pickOnsets returns the indices of flux peaks above an adaptive threshold
// (mean plus k standard deviations), suppressing peaks closer together than
// minGap frames.
func pickOnsets(flux []float64, k float64, minGap int) []int {
	if len(flux) == 0 {
		return nil
	}

	m := mean(flux)
	sd := stddev(flux, m)
	threshold := m + k*sd

	var onsets []int
	last := -minGap - 1
	for i := 1; i < len(flux)-1; i++ {
		if flux[i] < threshold {
			continue
		}
		if flux[i] < flux[i-1] || flux[i] < flux[i+1] {
			continue
		}
		if i-last <= minGap {
			continue
		}
		onsets = append(onsets, i)
		last = i
	}
	return onsets
}

// zeroCrossingRate returns crossings per sample in [0, 1].
func zeroCrossingRate(signal []float64) float64 {
	if len(signal) < 2 {
		return 0
	}
	var crossings int
	for i := 1; i < len(signal); i++ {
		if (signal[i-1] >= 0) != (signal[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(signal)-1)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package consensus reconciles independent analyzer estimates into one
// validated, confidence-scored result.
package consensus

import (
	"github.com/ciscoittech/sampleagent/internal/analyzer"
)

// Correction records which octave correction was applied to a raw BPM.
type Correction string

const (
	CorrectionNone    Correction = "none"
	CorrectionDoubled Correction = "doubled"
	CorrectionHalved  Correction = "halved"
	CorrectionTripled Correction = "tripled"
	CorrectionThirded Correction = "thirded"
)

// CorrectedEstimate is a tempo estimate after octave correction, kept next
// to the raw estimate for audit.
type CorrectedEstimate struct {
	Raw        analyzer.Estimate
	BPM        float64
	Correction Correction
}

// OctaveCorrector folds octave-ambiguous tempo estimates into a plausible
// window. Tempo detectors routinely report integer multiples or
// submultiples of the true value; folding by 2 (and 3 for triplet feels)
// recovers the intended tempo without fabricating precision.
type OctaveCorrector struct {
	Low  float64
	High float64
}

// NewOctaveCorrector returns a corrector for the given plausibility window.
func NewOctaveCorrector(low, high float64) *OctaveCorrector {
	return &OctaveCorrector{Low: low, High: high}
}

// Correct folds a raw BPM into the window. It reports the corrected value,
// the correction applied and whether any correction could bring the value
// in range. Values that cannot be folded in are rejected, never clamped.
func (c *OctaveCorrector) Correct(bpm float64) (float64, Correction, bool) {
	if bpm <= 0 {
		return 0, CorrectionNone, false
	}

	if b, corr := c.foldByTwo(bpm); c.inRange(b) {
		return b, corr, true
	}

	// Doubling/halving could not reach the window; try the triplet-feel
	// factors before giving up.
	if bpm < c.Low {
		if b, _ := c.foldByTwo(bpm * 3); c.inRange(b) {
			return b, CorrectionTripled, true
		}
	} else {
		if b, _ := c.foldByTwo(bpm / 3); c.inRange(b) {
			return b, CorrectionThirded, true
		}
	}

	return bpm, CorrectionNone, false
}

// Apply corrects a raw tempo estimate. Estimates that cannot be folded into
// the window come back failed with OutOfPlausibleRange.
func (c *OctaveCorrector) Apply(est analyzer.Estimate) CorrectedEstimate {
	if !est.Succeeded {
		return CorrectedEstimate{Raw: est, Correction: CorrectionNone}
	}

	bpm, correction, ok := c.Correct(est.BPM)
	if !ok {
		failed := est
		failed.Succeeded = false
		failed.FailureReason = analyzer.FailureOutOfPlausibleRange
		return CorrectedEstimate{Raw: failed, Correction: CorrectionNone}
	}

	return CorrectedEstimate{Raw: est, BPM: bpm, Correction: correction}
}

func (c *OctaveCorrector) inRange(bpm float64) bool {
	return bpm >= c.Low && bpm <= c.High
}

// foldByTwo runs the guarded doubling/halving loops: double while below the
// window without overshooting, halve while above without undershooting.
func (c *OctaveCorrector) foldByTwo(bpm float64) (float64, Correction) {
	b := bpm
	correction := CorrectionNone

	for b < c.Low && b*2 <= c.High {
		b *= 2
		correction = CorrectionDoubled
	}
	for b > c.High && b/2 >= c.Low {
		b /= 2
		correction = CorrectionHalved
	}

	return b, correction
}

package consensus

import (
	"math"
	"sort"

	"github.com/ciscoittech/sampleagent/internal/analyzer"
)

// TempoVote is one surviving corrected tempo estimate with its weighting
// inputs: the backend's static weight and its confidence normalized to
// [0, 1].
type TempoVote struct {
	BackendID  string
	BPM        float64
	Confidence float64
	Weight     float64
}

// GenreVote is one surviving genre estimate, already mapped onto the
// production taxonomy buckets.
type GenreVote struct {
	BackendID  string
	Buckets    []analyzer.LabelProb
	Confidence float64
	Weight     float64
}

// TempoConsensus is the reconciled tempo answer.
type TempoConsensus struct {
	BPM          *float64
	Confidence   int
	Contributors []ContributingBackend
	Warnings     []Warning
}

// GenreConsensus is the reconciled genre answer.
type GenreConsensus struct {
	Primary      *string
	Confidence   int
	TopN         []analyzer.LabelProb
	Contributors []ContributingBackend
	Warnings     []Warning
}

// Confidence tier boundaries. Two or more agreeing backends are worth more
// than any single backend's internal certainty; the tier table is the
// authoritative rule and is never blended with a continuous formula.
const (
	tightAgreementBPM = 2.0
	looseAgreementBPM = 5.0

	singleSourceHighConfidence = 0.6
	singleSourceCap            = 69
	genreSingleSourceCap       = singleSourceCap
)

// Engine combines surviving estimates into final values with unified 0-100
// confidences. It never fails; "could not determine" is expressed as a nil
// value with confidence 0 and a warning.
type Engine struct{}

// NewEngine returns a consensus engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Tempo reconciles the surviving corrected tempo estimates.
func (e *Engine) Tempo(votes []TempoVote) TempoConsensus {
	if len(votes) == 0 {
		return TempoConsensus{Warnings: []Warning{WarningAllBackendsFailed}}
	}

	contributors := make([]ContributingBackend, 0, len(votes))
	var weightedSum, weightSum, confSum float64
	minBPM, maxBPM := math.Inf(1), math.Inf(-1)

	for _, v := range votes {
		weight := v.Weight * v.Confidence
		weightedSum += v.BPM * weight
		weightSum += weight
		confSum += v.Confidence
		minBPM = math.Min(minBPM, v.BPM)
		maxBPM = math.Max(maxBPM, v.BPM)
		contributors = append(contributors, ContributingBackend{
			BackendID:      v.BackendID,
			CorrectedValue: v.BPM,
			WeightUsed:     weight,
		})
	}

	var bpm float64
	switch {
	case len(votes) == 1:
		bpm = votes[0].BPM
	case weightSum > 0:
		bpm = weightedSum / weightSum
	default:
		// All weights zero; fall back to the plain average.
		var sum float64
		for _, v := range votes {
			sum += v.BPM
		}
		bpm = sum / float64(len(votes))
	}

	avgConf := confSum / float64(len(votes))
	spread := maxBPM - minBPM

	var confidence int
	var warnings []Warning
	switch {
	case len(votes) >= 2 && spread <= tightAgreementBPM:
		confidence = clampInt(90+int(math.Round(10*avgConf)), 90, 100)
	case len(votes) >= 2 && spread <= looseAgreementBPM:
		confidence = clampInt(70+int(math.Round(19*avgConf)), 70, 89)
	case len(votes) == 1 && votes[0].Confidence >= singleSourceHighConfidence:
		scaled := (votes[0].Confidence - singleSourceHighConfidence) / (1 - singleSourceHighConfidence)
		confidence = clampInt(50+int(math.Round(19*scaled)), 50, singleSourceCap)
		warnings = append(warnings, WarningSingleSourceOnly)
	case len(votes) == 1:
		confidence = clampInt(int(math.Round(49*votes[0].Confidence/singleSourceHighConfidence)), 1, 49)
		warnings = append(warnings, WarningSingleSourceOnly)
	default:
		// Two or more backends disagreeing past the loose window: the
		// variance penalty caps confidence below every agreement tier.
		damp := 1.0 - (spread-looseAgreementBPM)/20.0
		if damp < 0 {
			damp = 0
		}
		confidence = clampInt(int(math.Round(49*avgConf*damp)), 1, 49)
		warnings = append(warnings, WarningHighVariance)
	}

	return TempoConsensus{
		BPM:          &bpm,
		Confidence:   confidence,
		Contributors: contributors,
		Warnings:     warnings,
	}
}

// Genre reconciles the surviving mapped genre estimates by averaging their
// probability vectors. Buckets a backend does not emit count as zero
// probability for that backend.
func (e *Engine) Genre(votes []GenreVote) GenreConsensus {
	if len(votes) == 0 {
		return GenreConsensus{Warnings: []Warning{WarningAllBackendsFailed}}
	}

	sums := make(map[string]float64)
	contributors := make([]ContributingBackend, 0, len(votes))
	for _, v := range votes {
		top := 0.0
		for _, bucket := range v.Buckets {
			sums[bucket.Label] += bucket.Probability
			if bucket.Probability > top {
				top = bucket.Probability
			}
		}
		contributors = append(contributors, ContributingBackend{
			BackendID:      v.BackendID,
			CorrectedValue: top,
			WeightUsed:     v.Weight * v.Confidence,
		})
	}

	averaged := make([]analyzer.LabelProb, 0, len(sums))
	for label, sum := range sums {
		averaged = append(averaged, analyzer.LabelProb{
			Label:       label,
			Probability: sum / float64(len(votes)),
		})
	}
	sort.Slice(averaged, func(i, j int) bool {
		if averaged[i].Probability != averaged[j].Probability {
			return averaged[i].Probability > averaged[j].Probability
		}
		return averaged[i].Label < averaged[j].Label
	})

	if len(averaged) == 0 || averaged[0].Probability <= 0 {
		return GenreConsensus{Warnings: []Warning{WarningAllBackendsFailed}}
	}

	topN := averaged
	if len(topN) > 3 {
		topN = topN[:3]
	}

	primary := averaged[0].Label
	confidence := clampInt(int(math.Round(averaged[0].Probability*100)), 1, 100)

	var warnings []Warning
	if len(votes) == 1 {
		// A genre chosen by one backend is capped regardless of that
		// backend's internal certainty.
		if confidence > genreSingleSourceCap {
			confidence = genreSingleSourceCap
		}
		warnings = append(warnings, WarningSingleSourceOnly)
	}

	return GenreConsensus{
		Primary:      &primary,
		Confidence:   confidence,
		TopN:         topN,
		Contributors: contributors,
		Warnings:     warnings,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

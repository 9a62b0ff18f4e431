package consensus

import (
	"github.com/ciscoittech/sampleagent/internal/analyzer"
)

// Warning flags a quality concern on a consensus result. Consumers are
// expected to check confidences before trusting values; warnings explain
// low ones.
type Warning string

const (
	WarningHighVariance      Warning = "HighVariance"
	WarningSingleSourceOnly  Warning = "SingleSourceOnly"
	WarningAllBackendsFailed Warning = "AllBackendsFailed"
)

// ContributingBackend records one backend's share of a consensus value, for
// audit.
type ContributingBackend struct {
	BackendID      string  `json:"backend_id"`
	CorrectedValue float64 `json:"corrected_value"`
	WeightUsed     float64 `json:"weight_used"`
}

// Result is the final answer for one analysis request. A confidence of 0
// always means "no usable signal", never "the value is zero"; a value is
// null exactly when its confidence is 0.
type Result struct {
	BPM                  *float64              `json:"bpm"`
	BPMConfidence        int                   `json:"bpm_confidence"`
	GenrePrimary         *string               `json:"genre_primary"`
	GenreConfidence      int                   `json:"genre_confidence"`
	GenreTopN            []analyzer.LabelProb  `json:"genre_top_n"`
	ContributingBackends []ContributingBackend `json:"contributing_backends"`
	Warnings             []Warning             `json:"warnings"`
}

// HasWarning reports whether the result carries the given warning.
func (r *Result) HasWarning(w Warning) bool {
	for _, existing := range r.Warnings {
		if existing == w {
			return true
		}
	}
	return false
}

// AddWarning appends a warning unless it is already present.
func (r *Result) AddWarning(w Warning) {
	if !r.HasWarning(w) {
		r.Warnings = append(r.Warnings, w)
	}
}

package consensus

import (
	"testing"

	"github.com/ciscoittech/sampleagent/internal/analyzer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempoCleanAgreement(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Tempo([]TempoVote{
		{BackendID: "onset", BPM: 89.8, Confidence: 0.8, Weight: 1.0},
		{BackendID: "autocorr", BPM: 90.2, Confidence: 0.7, Weight: 1.0},
		{BackendID: "aubio", BPM: 90.0, Confidence: 0.9, Weight: 1.0},
	})

	require.NotNil(t, result.BPM)
	assert.InDelta(t, 90.0, *result.BPM, 0.5)
	assert.GreaterOrEqual(t, result.Confidence, 90)
	assert.LessOrEqual(t, result.Confidence, 100)
	assert.Len(t, result.Contributors, 3)
	assert.Empty(t, result.Warnings)
}

func TestTempoLooseAgreement(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Tempo([]TempoVote{
		{BackendID: "onset", BPM: 120, Confidence: 0.8, Weight: 1.0},
		{BackendID: "autocorr", BPM: 124, Confidence: 0.8, Weight: 1.0},
	})

	require.NotNil(t, result.BPM)
	assert.GreaterOrEqual(t, result.Confidence, 70)
	assert.LessOrEqual(t, result.Confidence, 89)
}

func TestTempoSingleSourceHighConfidence(t *testing.T) {
	t.Parallel()

	engine := NewEngine()

	tests := []struct {
		name       string
		confidence float64
		minConf    int
		maxConf    int
	}{
		{"at the high threshold", 0.6, 50, 50},
		{"fully confident", 1.0, 69, 69},
		{"mid high band", 0.8, 50, 69},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := engine.Tempo([]TempoVote{
				{BackendID: "aubio", BPM: 140, Confidence: tt.confidence, Weight: 1.2},
			})

			require.NotNil(t, result.BPM)
			assert.InDelta(t, 140.0, *result.BPM, 1e-9, "single estimate is used as-is")
			assert.GreaterOrEqual(t, result.Confidence, tt.minConf)
			assert.LessOrEqual(t, result.Confidence, tt.maxConf)
			assert.Contains(t, result.Warnings, WarningSingleSourceOnly)
		})
	}
}

func TestTempoSingleSourceLowConfidence(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Tempo([]TempoVote{
		{BackendID: "onset", BPM: 95, Confidence: 0.5, Weight: 1.0},
	})

	require.NotNil(t, result.BPM)
	assert.GreaterOrEqual(t, result.Confidence, 1)
	assert.LessOrEqual(t, result.Confidence, 49)
	assert.Contains(t, result.Warnings, WarningSingleSourceOnly)
}

func TestTempoHighVariancePenalty(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Tempo([]TempoVote{
		{BackendID: "onset", BPM: 100, Confidence: 0.9, Weight: 1.0},
		{BackendID: "autocorr", BPM: 109, Confidence: 0.9, Weight: 1.0},
	})

	require.NotNil(t, result.BPM)
	assert.LessOrEqual(t, result.Confidence, 49)
	assert.GreaterOrEqual(t, result.Confidence, 1, "a present value never has zero confidence")
	assert.Contains(t, result.Warnings, WarningHighVariance)
}

func TestTempoAllFailed(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Tempo(nil)

	assert.Nil(t, result.BPM)
	assert.Zero(t, result.Confidence)
	assert.Contains(t, result.Warnings, WarningAllBackendsFailed)
}

func TestTempoWeightedAverageFavorsHeavier(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Tempo([]TempoVote{
		{BackendID: "mlbeat", BPM: 120, Confidence: 1.0, Weight: 3.0},
		{BackendID: "onset", BPM: 121, Confidence: 1.0, Weight: 1.0},
	})

	require.NotNil(t, result.BPM)
	assert.InDelta(t, 120.25, *result.BPM, 0.001)
}

func TestTempoZeroWeightsFallBackToPlainAverage(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Tempo([]TempoVote{
		{BackendID: "a", BPM: 100, Confidence: 0, Weight: 1.0},
		{BackendID: "b", BPM: 110, Confidence: 0, Weight: 1.0},
	})

	require.NotNil(t, result.BPM)
	assert.InDelta(t, 105.0, *result.BPM, 0.001)
}

func TestGenreAveragesVectors(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Genre([]GenreVote{
		{
			BackendID: "mlbeat",
			Buckets: []analyzer.LabelProb{
				{Label: "House", Probability: 0.6},
				{Label: "Techno", Probability: 0.4},
			},
			Confidence: 0.6,
			Weight:     1.5,
		},
		{
			BackendID: "spectral",
			Buckets: []analyzer.LabelProb{
				{Label: "House", Probability: 0.5},
				{Label: "Hip Hop", Probability: 0.3},
			},
			Confidence: 0.5,
			Weight:     0.8,
		},
	})

	require.NotNil(t, result.Primary)
	assert.Equal(t, "House", *result.Primary)
	// House averages (0.6 + 0.5) / 2; Techno and Hip Hop are padded with
	// zero for the backend that does not emit them.
	assert.Equal(t, 55, result.Confidence)
	require.Len(t, result.TopN, 3)
	assert.Equal(t, "House", result.TopN[0].Label)
	assert.Empty(t, result.Warnings)
}

func TestGenreSingleSourceCap(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Genre([]GenreVote{
		{
			BackendID:  "mlbeat",
			Buckets:    []analyzer.LabelProb{{Label: "Techno", Probability: 0.95}},
			Confidence: 0.95,
			Weight:     1.5,
		},
	})

	require.NotNil(t, result.Primary)
	assert.Equal(t, "Techno", *result.Primary)
	assert.LessOrEqual(t, result.Confidence, 69, "single-source genre confidence is capped")
	assert.Contains(t, result.Warnings, WarningSingleSourceOnly)
}

func TestGenreAllFailed(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Genre(nil)

	assert.Nil(t, result.Primary)
	assert.Zero(t, result.Confidence)
	assert.Contains(t, result.Warnings, WarningAllBackendsFailed)
}

func TestGenreTopNLimit(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	result := engine.Genre([]GenreVote{
		{
			BackendID: "spectral",
			Buckets: []analyzer.LabelProb{
				{Label: "House", Probability: 0.4},
				{Label: "Techno", Probability: 0.3},
				{Label: "Hip Hop", Probability: 0.2},
				{Label: "Ambient", Probability: 0.1},
			},
			Confidence: 0.4,
			Weight:     0.8,
		},
	})

	assert.Len(t, result.TopN, 3, "top-N is truncated to three buckets")
}

func TestConfidenceBounds(t *testing.T) {
	t.Parallel()

	engine := NewEngine()

	votes := [][]TempoVote{
		nil,
		{{BackendID: "a", BPM: 90, Confidence: 0, Weight: 0}},
		{{BackendID: "a", BPM: 90, Confidence: 1, Weight: 5}},
		{
			{BackendID: "a", BPM: 60, Confidence: 1, Weight: 1},
			{BackendID: "b", BPM: 180, Confidence: 1, Weight: 1},
		},
	}

	for _, vs := range votes {
		result := engine.Tempo(vs)
		assert.GreaterOrEqual(t, result.Confidence, 0)
		assert.LessOrEqual(t, result.Confidence, 100)
		if result.BPM == nil {
			assert.Zero(t, result.Confidence, "null value implies zero confidence")
		} else {
			assert.Positive(t, result.Confidence, "present value implies positive confidence")
		}
	}
}

func TestResultWarningDeduplication(t *testing.T) {
	t.Parallel()

	r := &Result{}
	r.AddWarning(WarningAllBackendsFailed)
	r.AddWarning(WarningAllBackendsFailed)
	r.AddWarning(WarningHighVariance)

	assert.Len(t, r.Warnings, 2)
	assert.True(t, r.HasWarning(WarningAllBackendsFailed))
	assert.False(t, r.HasWarning(WarningSingleSourceOnly))
}

package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		Analysis: AnalysisSettings{
			AcceptedSampleRates: []int{44100, 48000},
			Backends: BackendsSettings{
				Enabled: []string{"onset"},
				Weights: map[string]float64{"onset": 1.0},
			},
			Tempo: TempoSettings{
				PlausibleRange:     PlausibleRange{Low: 60, High: 180},
				OutlierThreshold:   10,
				OneShotMaxDuration: 1.0,
			},
			Timeouts:   TimeoutSettings{BackendMs: 5000, GlobalMs: 15000},
			WorkerPool: WorkerPoolSettings{Size: 4},
		},
		Genre: GenreSettings{
			Taxonomy: TaxonomySettings{Default: "Uncategorized"},
		},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid settings", func(s *Settings) {}, false},
		{"empty sample rates", func(s *Settings) { s.Analysis.AcceptedSampleRates = nil }, true},
		{"negative sample rate", func(s *Settings) { s.Analysis.AcceptedSampleRates = []int{-1} }, true},
		{"inverted tempo range", func(s *Settings) {
			s.Analysis.Tempo.PlausibleRange = PlausibleRange{Low: 180, High: 60}
		}, true},
		{"zero outlier threshold", func(s *Settings) { s.Analysis.Tempo.OutlierThreshold = 0 }, true},
		{"zero worker pool", func(s *Settings) { s.Analysis.WorkerPool.Size = 0 }, true},
		{"zero backend timeout", func(s *Settings) { s.Analysis.Timeouts.BackendMs = 0 }, true},
		{"no backends enabled", func(s *Settings) { s.Analysis.Backends.Enabled = nil }, true},
		{"negative weight", func(s *Settings) { s.Analysis.Backends.Weights["onset"] = -0.5 }, true},
		{"empty taxonomy default", func(s *Settings) { s.Genre.Taxonomy.Default = "" }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBackendWeightDefault(t *testing.T) {
	t.Parallel()

	b := BackendsSettings{Weights: map[string]float64{"aubio": 1.2}}
	assert.InDelta(t, 1.2, b.BackendWeight("aubio"), 1e-9)
	assert.InDelta(t, 1.0, b.BackendWeight("unknown"), 1e-9, "unconfigured backends default to weight 1.0")
}

func TestSampleRateAccepted(t *testing.T) {
	t.Parallel()

	a := AnalysisSettings{AcceptedSampleRates: []int{22050, 44100}}
	assert.True(t, a.SampleRateAccepted(44100))
	assert.False(t, a.SampleRateAccepted(8000))
}

func TestLoadTaxonomyOverride(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	content := []byte("default: Other\nmapping:\n  gabber: Techno\n  trap: Trap\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	s := validSettings()
	s.Genre.Taxonomy.Mapping = map[string]string{"trap": "Hip Hop", "house": "House"}
	s.Genre.Taxonomy.File = path

	require.NoError(t, loadTaxonomyOverride(s))

	assert.Equal(t, "Other", s.Genre.Taxonomy.Default)
	assert.Equal(t, "Trap", s.Genre.Taxonomy.Mapping["trap"], "file rules replace built-in rules")
	assert.Equal(t, "Techno", s.Genre.Taxonomy.Mapping["gabber"], "new rules are added")
	assert.Equal(t, "House", s.Genre.Taxonomy.Mapping["house"], "unrelated rules are kept")
}

func TestLoadTaxonomyOverrideMissingFile(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Genre.Taxonomy.File = filepath.Join(t.TempDir(), "nope.yaml")
	assert.Error(t, loadTaxonomyOverride(s))
}

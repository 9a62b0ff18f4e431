package analysis

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ciscoittech/sampleagent/internal/analyzer"
	"github.com/ciscoittech/sampleagent/internal/audio"
	"github.com/ciscoittech/sampleagent/internal/conf"
	"github.com/ciscoittech/sampleagent/internal/consensus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a scriptable backend for orchestrator tests.
type fakeBackend struct {
	id     string
	caps   analyzer.Capabilities
	delay  time.Duration
	jitter bool

	calls atomic.Int32

	estimate func(kind analyzer.Kind) analyzer.Estimate
}

func (f *fakeBackend) ID() string                          { return f.id }
func (f *fakeBackend) Capabilities() analyzer.Capabilities { return f.caps }
func (f *fakeBackend) ConfidenceScale() float64            { return 1.0 }
func (f *fakeBackend) Probe(context.Context) error         { return nil }

func (f *fakeBackend) Estimate(ctx context.Context, _ *audio.Clip, _ audio.SampleClass, kind analyzer.Kind) analyzer.Estimate {
	f.calls.Add(1)

	delay := f.delay
	if f.jitter {
		delay = time.Duration(rand.Intn(20)) * time.Millisecond
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return analyzer.Failed(f.id, kind, analyzer.FailureCancelled)
		}
	}

	est := f.estimate(kind)
	est.Kind = kind
	est.BackendID = f.id
	return est
}

func tempoFake(id string, bpm, confidence float64) *fakeBackend {
	return &fakeBackend{
		id:   id,
		caps: analyzer.Capabilities{Tempo: true, Latency: analyzer.LatencyFast},
		estimate: func(analyzer.Kind) analyzer.Estimate {
			return analyzer.Estimate{BPM: bpm, RawConfidence: confidence, Succeeded: true}
		},
	}
}

func failingFake(id string, reason analyzer.FailureReason) *fakeBackend {
	return &fakeBackend{
		id:   id,
		caps: analyzer.Capabilities{Tempo: true, Latency: analyzer.LatencyFast},
		estimate: func(kind analyzer.Kind) analyzer.Estimate {
			return analyzer.Failed(id, kind, reason)
		},
	}
}

func genreFake(id string, labels []analyzer.LabelProb, confidence float64) *fakeBackend {
	return &fakeBackend{
		id:   id,
		caps: analyzer.Capabilities{Genre: true, Latency: analyzer.LatencyFast},
		estimate: func(analyzer.Kind) analyzer.Estimate {
			return analyzer.Estimate{Genres: labels, RawConfidence: confidence, Succeeded: true}
		},
	}
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Analysis: conf.AnalysisSettings{
			AcceptedSampleRates: []int{44100},
			Tempo: conf.TempoSettings{
				PlausibleRange:     conf.PlausibleRange{Low: 60, High: 180},
				OutlierThreshold:   10,
				OneShotMaxDuration: 1.0,
			},
			Timeouts:   conf.TimeoutSettings{BackendMs: 2000, GlobalMs: 5000},
			WorkerPool: conf.WorkerPoolSettings{Size: 4},
		},
		Genre: conf.GenreSettings{
			Taxonomy: conf.TaxonomySettings{
				Default: "Uncategorized",
				Mapping: map[string]string{
					"house":  "House",
					"techno": "Techno",
				},
			},
		},
	}
}

func testClip(duration float64) *audio.Clip {
	rate := 44100
	n := int(duration * float64(rate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
	}
	return &audio.Clip{Samples: samples, SampleRate: rate, Channels: 1}
}

func newTestOrchestrator(t *testing.T, settings *conf.Settings, backends ...*fakeBackend) *Orchestrator {
	t.Helper()

	registry := analyzer.NewEmptyRegistry()
	for _, b := range backends {
		registry.Register(b, 1.0)
	}

	o, err := New(settings, registry)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestAnalyzeCleanAgreementSurvivesOneFailure(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, testSettings(),
		tempoFake("a", 120.0, 0.9),
		tempoFake("b", 121.0, 0.8),
		failingFake("c", analyzer.FailureUnavailable),
		genreFake("classifier", []analyzer.LabelProb{{Label: "deep house", Probability: 0.9}}, 0.9),
	)

	result, err := o.Analyze(context.Background(), testClip(4))
	require.NoError(t, err)

	require.NotNil(t, result.BPM)
	assert.InDelta(t, 120.5, *result.BPM, 0.6)
	assert.GreaterOrEqual(t, result.BPMConfidence, 90, "two agreeing backends reach the top tier despite a third failing")
	assert.False(t, result.HasWarning(consensus.WarningAllBackendsFailed))
}

func TestAnalyzeDeterministicAcrossCompletionOrder(t *testing.T) {
	t.Parallel()

	backends := []*fakeBackend{
		tempoFake("a", 119.8, 0.9),
		tempoFake("b", 120.2, 0.7),
		tempoFake("c", 120.0, 0.8),
	}
	for _, b := range backends {
		b.jitter = true
	}

	o := newTestOrchestrator(t, testSettings(), backends...)
	clip := testClip(4)

	first, err := o.Analyze(context.Background(), clip)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := o.Analyze(context.Background(), clip)
		require.NoError(t, err)
		assert.Equal(t, first, again, "completion order must not leak into the result")
	}
}

func TestAnalyzeOctaveDisagreementConverges(t *testing.T) {
	t.Parallel()

	// One backend hears half-time; after folding both land within the
	// tight agreement window.
	o := newTestOrchestrator(t, testSettings(),
		tempoFake("halftime", 45.1, 0.8),
		tempoFake("straight", 90.3, 0.8),
	)

	result, err := o.Analyze(context.Background(), testClip(4))
	require.NoError(t, err)

	require.NotNil(t, result.BPM)
	assert.InDelta(t, 90.25, *result.BPM, 0.1)
	assert.GreaterOrEqual(t, result.BPMConfidence, 90)
}

func TestAnalyzeOutlierExcludedFromConsensus(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, testSettings(),
		tempoFake("a", 90.0, 0.8),
		tempoFake("b", 91.0, 0.8),
		tempoFake("c", 150.0, 0.8),
	)

	result, err := o.Analyze(context.Background(), testClip(4))
	require.NoError(t, err)

	require.NotNil(t, result.BPM)
	assert.InDelta(t, 90.5, *result.BPM, 0.6)
	assert.Len(t, result.ContributingBackends, 2, "the outlier is not a contributor")
	assert.GreaterOrEqual(t, result.BPMConfidence, 90)
}

func TestAnalyzeAllBackendsFailed(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, testSettings(),
		failingFake("a", analyzer.FailureNoSignal),
		failingFake("b", analyzer.FailureUnavailable),
	)

	result, err := o.Analyze(context.Background(), testClip(4))
	require.NoError(t, err, "backend failure is not an analysis error")

	assert.Nil(t, result.BPM)
	assert.Zero(t, result.BPMConfidence)
	assert.Nil(t, result.GenrePrimary)
	assert.Zero(t, result.GenreConfidence)
	assert.True(t, result.HasWarning(consensus.WarningAllBackendsFailed))
}

func TestAnalyzeTempoFailureWarnsDespiteGenreSuccess(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, testSettings(),
		failingFake("a", analyzer.FailureNoSignal),
		failingFake("b", analyzer.FailureUnavailable),
		genreFake("classifier", []analyzer.LabelProb{{Label: "deep house", Probability: 0.9}}, 0.9),
	)

	result, err := o.Analyze(context.Background(), testClip(4))
	require.NoError(t, err)

	assert.Nil(t, result.BPM)
	assert.Zero(t, result.BPMConfidence)
	assert.True(t, result.HasWarning(consensus.WarningAllBackendsFailed),
		"every tempo backend failing warns even when genre succeeded")

	require.NotNil(t, result.GenrePrimary)
	assert.Equal(t, "House", *result.GenrePrimary)
	assert.Positive(t, result.GenreConfidence)
}

func TestAnalyzeOneShotSkipsTempo(t *testing.T) {
	t.Parallel()

	tempo := tempoFake("tempo", 120, 0.9)
	o := newTestOrchestrator(t, testSettings(),
		tempo,
		genreFake("classifier", []analyzer.LabelProb{
			{Label: "deep house", Probability: 0.9},
			{Label: "minimal techno", Probability: 0.1},
		}, 0.9),
	)

	result, err := o.Analyze(context.Background(), testClip(0.5))
	require.NoError(t, err)

	assert.Nil(t, result.BPM, "one-shots have no tempo")
	assert.Zero(t, result.BPMConfidence)
	assert.Zero(t, tempo.calls.Load(), "tempo backends are not invoked for one-shots")

	require.NotNil(t, result.GenrePrimary)
	assert.Equal(t, "House", *result.GenrePrimary)
	assert.False(t, result.HasWarning(consensus.WarningAllBackendsFailed))
	assert.True(t, result.HasWarning(consensus.WarningSingleSourceOnly))
}

func TestAnalyzeSlowBackendTimesOut(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Analysis.Timeouts.BackendMs = 50

	slow := tempoFake("slow", 140, 0.9)
	slow.delay = time.Second

	o := newTestOrchestrator(t, settings,
		slow,
		tempoFake("fast", 120, 0.9),
	)

	result, err := o.Analyze(context.Background(), testClip(4))
	require.NoError(t, err)

	require.NotNil(t, result.BPM)
	assert.InDelta(t, 120.0, *result.BPM, 1e-9, "only the fast backend contributes")
	assert.True(t, result.HasWarning(consensus.WarningSingleSourceOnly))
	assert.LessOrEqual(t, result.BPMConfidence, 69)
}

func TestAnalyzeRejectsInvalidClip(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, testSettings(), tempoFake("a", 120, 0.9))

	stereo := testClip(2)
	stereo.Channels = 2

	result, err := o.Analyze(context.Background(), stereo)
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestAnalyzeResultCache(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Cache.Enabled = true
	settings.Cache.TTLSeconds = 60

	backend := tempoFake("a", 120, 0.9)
	o := newTestOrchestrator(t, settings, backend)
	clip := testClip(4)

	first, err := o.Analyze(context.Background(), clip)
	require.NoError(t, err)
	callsAfterFirst := backend.calls.Load()

	second, err := o.Analyze(context.Background(), clip)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, backend.calls.Load(), "cached analyses do not re-run backends")
}

func TestAnalyzeGenreConsensusAcrossBackends(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, testSettings(),
		genreFake("ml", []analyzer.LabelProb{
			{Label: "deep house", Probability: 0.6},
			{Label: "detroit techno", Probability: 0.4},
		}, 0.8),
		genreFake("spectral", []analyzer.LabelProb{
			{Label: "tech house", Probability: 0.7},
			{Label: "acid techno", Probability: 0.3},
		}, 0.6),
	)

	result, err := o.Analyze(context.Background(), testClip(4))
	require.NoError(t, err)

	require.NotNil(t, result.GenrePrimary)
	assert.Equal(t, "House", *result.GenrePrimary)
	assert.False(t, result.HasWarning(consensus.WarningSingleSourceOnly))
	assert.NotEmpty(t, result.GenreTopN)
	assert.Equal(t, "House", result.GenreTopN[0].Label)
}

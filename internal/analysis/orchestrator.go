// Package analysis coordinates backend fan-out, reconciliation and result
// assembly for one clip at a time.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"

	"github.com/ciscoittech/sampleagent/internal/analyzer"
	"github.com/ciscoittech/sampleagent/internal/audio"
	"github.com/ciscoittech/sampleagent/internal/conf"
	"github.com/ciscoittech/sampleagent/internal/consensus"
	"github.com/ciscoittech/sampleagent/internal/genre"
	"github.com/ciscoittech/sampleagent/internal/logging"
	"github.com/ciscoittech/sampleagent/internal/observability/metrics"
	"github.com/google/uuid"
)

// Orchestrator runs every capable backend against a clip, reconciles their
// estimates and returns one consensus result. Backend failures never fail the
// analysis; the only error path is an invalid input clip.
type Orchestrator struct {
	settings  *conf.Settings
	registry  *analyzer.Registry
	corrector *consensus.OctaveCorrector
	filter    *consensus.OutlierFilter
	engine    *consensus.Engine
	mapper    *genre.Mapper
	sem       *semaphore.Weighted

	logger     *slog.Logger
	audit      *slog.Logger
	auditClose func() error

	cache *gocache.Cache

	metrics *metrics.AnalysisMetrics
}

// New builds an orchestrator from settings and a populated backend registry.
func New(settings *conf.Settings, registry *analyzer.Registry) (*Orchestrator, error) {
	tempo := settings.Analysis.Tempo

	poolSize := settings.Analysis.WorkerPool.Size
	if poolSize <= 0 {
		poolSize = 4
	}

	o := &Orchestrator{
		settings:  settings,
		registry:  registry,
		corrector: consensus.NewOctaveCorrector(tempo.PlausibleRange.Low, tempo.PlausibleRange.High),
		filter:    consensus.NewOutlierFilter(tempo.OutlierThreshold),
		engine:    consensus.NewEngine(),
		mapper:    genre.NewMapper(settings.Genre.Taxonomy),
		sem:       semaphore.NewWeighted(int64(poolSize)),
		logger:    logging.ForService("analysis.orchestrator"),
	}

	if settings.Audit.Enabled {
		auditLogger, closeFunc, err := logging.NewFileLogger(
			settings.Audit.Log.Path,
			"analysis.audit",
			slog.LevelInfo,
			logging.Rotation{
				MaxSizeMB:  settings.Audit.Log.MaxSizeMB,
				MaxBackups: settings.Audit.Log.MaxBackups,
				MaxAgeDays: settings.Audit.Log.MaxAgeDays,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		o.audit = auditLogger
		o.auditClose = closeFunc
	}

	if settings.Cache.Enabled {
		ttl := time.Duration(settings.Cache.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = gocache.NoExpiration
		}
		o.cache = gocache.New(ttl, 10*time.Minute)
	}

	return o, nil
}

// SetMetrics attaches Prometheus metrics to the orchestrator. Passing nil
// disables metric recording.
func (o *Orchestrator) SetMetrics(m *metrics.AnalysisMetrics) {
	o.metrics = m
}

// Close releases the audit log writer.
func (o *Orchestrator) Close() error {
	if o.auditClose != nil {
		return o.auditClose()
	}
	return nil
}

// Analyze runs the full pipeline for one clip. The result is identical for
// identical inputs regardless of backend completion order.
func (o *Orchestrator) Analyze(ctx context.Context, clip *audio.Clip) (*consensus.Result, error) {
	start := time.Now()
	analysisID := uuid.New().String()

	if err := clip.Validate(o.settings.Analysis.AcceptedSampleRates); err != nil {
		o.recordAnalysis("invalid", "rejected", start)
		return nil, err
	}

	var cacheKey string
	if o.cache != nil {
		cacheKey = fmt.Sprintf("%016x", clip.Fingerprint())
		if cached, found := o.cache.Get(cacheKey); found {
			if result, ok := cached.(*consensus.Result); ok {
				if o.metrics != nil {
					o.metrics.RecordCacheHit()
				}
				o.logger.Debug("analysis served from cache",
					"analysis_id", analysisID,
					"fingerprint", cacheKey)
				return result, nil
			}
		}
		if o.metrics != nil {
			o.metrics.RecordCacheMiss()
		}
	}

	class := clip.Classify(o.settings.Analysis.Tempo.OneShotMaxDuration)

	globalCtx, cancel := context.WithTimeout(ctx, o.settings.Analysis.GlobalTimeout())
	defer cancel()

	var tempoEstimates []analyzer.Estimate
	if class == audio.ClassLoop {
		tempoEstimates = o.runBackends(globalCtx, clip, class, analyzer.KindTempo)
	}
	genreEstimates := o.runBackends(globalCtx, clip, class, analyzer.KindGenre)

	result := &consensus.Result{}

	// Warnings are per kind: a loop whose tempo backends all fail carries
	// AllBackendsFailed even when a genre backend succeeded. One-shots never
	// request tempo, so no tempo warning can arise for them.
	if class == audio.ClassLoop {
		o.reconcileTempo(result, tempoEstimates)
	}
	o.reconcileGenre(result, genreEstimates)

	o.recordAnalysis(class.String(), "completed", start)
	o.writeAudit(analysisID, clip, class, tempoEstimates, genreEstimates, result)

	if o.cache != nil {
		o.cache.SetDefault(cacheKey, result)
	}

	return result, nil
}

// reconcileTempo runs the tempo estimates through octave correction, outlier
// rejection and consensus, and folds the outcome into the result.
func (o *Orchestrator) reconcileTempo(result *consensus.Result, estimates []analyzer.Estimate) {
	var corrected []consensus.CorrectedEstimate
	for _, est := range estimates {
		if !est.Succeeded {
			continue
		}
		ce := o.corrector.Apply(est)
		if !ce.Raw.Succeeded {
			o.logger.Debug("tempo estimate outside plausible range",
				"backend_id", est.BackendID,
				"raw_bpm", est.BPM)
			continue
		}
		if o.metrics != nil && ce.Correction != consensus.CorrectionNone {
			o.metrics.RecordOctaveCorrection(string(ce.Correction))
		}
		corrected = append(corrected, ce)
	}

	kept, rejected := o.filter.Filter(corrected)
	if o.metrics != nil && len(rejected) > 0 {
		o.metrics.RecordOutliersRejected(len(rejected))
	}
	for _, r := range rejected {
		o.logger.Debug("tempo estimate rejected as outlier",
			"backend_id", r.Raw.BackendID,
			"corrected_bpm", r.BPM)
	}

	votes := make([]consensus.TempoVote, 0, len(kept))
	for _, ce := range kept {
		votes = append(votes, consensus.TempoVote{
			BackendID:  ce.Raw.BackendID,
			BPM:        ce.BPM,
			Confidence: o.normalizedConfidence(ce.Raw),
			Weight:     o.backendWeight(ce.Raw.BackendID),
		})
	}

	tc := o.engine.Tempo(votes)
	result.BPM = tc.BPM
	result.BPMConfidence = tc.Confidence
	result.ContributingBackends = append(result.ContributingBackends, tc.Contributors...)
	for _, w := range tc.Warnings {
		result.AddWarning(w)
	}

	if o.metrics != nil {
		o.metrics.RecordConsensusConfidence("tempo", tc.Confidence)
	}
}

// reconcileGenre maps surviving genre estimates onto the taxonomy and folds
// the consensus into the result.
func (o *Orchestrator) reconcileGenre(result *consensus.Result, estimates []analyzer.Estimate) {
	votes := make([]consensus.GenreVote, 0, len(estimates))
	for _, est := range estimates {
		if !est.Succeeded || len(est.Genres) == 0 {
			continue
		}
		votes = append(votes, consensus.GenreVote{
			BackendID:  est.BackendID,
			Buckets:    o.mapper.MapVector(est.Genres),
			Confidence: o.normalizedConfidence(est),
			Weight:     o.backendWeight(est.BackendID),
		})
	}

	gc := o.engine.Genre(votes)
	result.GenrePrimary = gc.Primary
	result.GenreConfidence = gc.Confidence
	result.GenreTopN = gc.TopN
	result.ContributingBackends = append(result.ContributingBackends, gc.Contributors...)
	for _, w := range gc.Warnings {
		result.AddWarning(w)
	}

	if o.metrics != nil {
		o.metrics.RecordConsensusConfidence("genre", gc.Confidence)
	}
}

// normalizedConfidence maps a backend's raw confidence onto [0, 1].
func (o *Orchestrator) normalizedConfidence(est analyzer.Estimate) float64 {
	reg := o.registry.Get(est.BackendID)
	if reg == nil {
		return 0
	}
	scale := reg.Backend.ConfidenceScale()
	if scale <= 0 {
		return 0
	}
	c := est.RawConfidence / scale
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// backendWeight returns the static registration weight for a backend.
func (o *Orchestrator) backendWeight(backendID string) float64 {
	if reg := o.registry.Get(backendID); reg != nil {
		return reg.Weight
	}
	return 1.0
}

func (o *Orchestrator) recordAnalysis(sampleClass, status string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordAnalysis(sampleClass, status, time.Since(start).Seconds())
	}
}

// writeAudit records the full decision trail for one analysis: every raw
// estimate, the corrections and rejections, and the final result.
func (o *Orchestrator) writeAudit(analysisID string, clip *audio.Clip, class audio.SampleClass,
	tempoEstimates, genreEstimates []analyzer.Estimate, result *consensus.Result) {
	if o.audit == nil {
		return
	}

	o.audit.Info("analysis completed",
		"analysis_id", analysisID,
		"sample_class", class.String(),
		"duration_seconds", clip.Duration(),
		"sample_rate", clip.SampleRate,
		"tempo_estimates", auditEstimates(tempoEstimates),
		"genre_estimates", auditEstimates(genreEstimates),
		"result", result,
	)
}

type auditEstimate struct {
	BackendID     string  `json:"backend_id"`
	MethodVariant string  `json:"method_variant,omitempty"`
	BPM           float64 `json:"bpm,omitempty"`
	RawConfidence float64 `json:"raw_confidence"`
	Succeeded     bool    `json:"succeeded"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

func auditEstimates(estimates []analyzer.Estimate) []auditEstimate {
	out := make([]auditEstimate, 0, len(estimates))
	for _, est := range estimates {
		out = append(out, auditEstimate{
			BackendID:     est.BackendID,
			MethodVariant: est.MethodVariant,
			BPM:           est.BPM,
			RawConfidence: est.RawConfidence,
			Succeeded:     est.Succeeded,
			FailureReason: string(est.FailureReason),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BackendID < out[j].BackendID })
	return out
}

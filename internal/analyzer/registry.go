package analyzer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ciscoittech/sampleagent/internal/conf"
	"github.com/ciscoittech/sampleagent/internal/errors"
	"github.com/ciscoittech/sampleagent/internal/logging"
)

// Registration pairs a backend with its static weight and runtime
// availability flag. The flag is the only mutable state in the registry and
// may be toggled concurrently by the probe path.
type Registration struct {
	Backend Backend
	Weight  float64

	available atomic.Bool
}

// Available reports whether the backend is currently runnable.
func (r *Registration) Available() bool {
	return r.available.Load()
}

// Registry is the process-wide ordered list of analyzer backends. It is
// built once at startup and read-only afterwards, except for the per-backend
// availability flags.
type Registry struct {
	order   []string
	entries map[string]*Registration
	logger  *slog.Logger
}

// NewRegistry builds a registry from configuration. Unknown backend ids in
// the enabled list are a configuration error.
func NewRegistry(settings *conf.AnalysisSettings) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]*Registration),
		logger:  logging.ForService("analyzer.registry"),
	}

	for _, id := range settings.Backends.Enabled {
		backend, err := newBackend(id, settings)
		if err != nil {
			return nil, err
		}

		reg := &Registration{
			Backend: backend,
			Weight:  settings.Backends.BackendWeight(id),
		}
		// Optimistic until the first probe runs.
		reg.available.Store(true)

		r.order = append(r.order, id)
		r.entries[id] = reg
	}

	return r, nil
}

// newBackend constructs a backend implementation by id.
func newBackend(id string, settings *conf.AnalysisSettings) (Backend, error) {
	switch id {
	case BackendOnset:
		return NewOnsetBackend(), nil
	case BackendAutocorr:
		return NewAutocorrBackend(), nil
	case BackendAubio:
		return NewAubioBackend(settings.Aubio), nil
	case BackendMLBeat:
		return NewMLBeatBackend(settings.MLBeat), nil
	case BackendSpectral:
		return NewSpectralBackend(), nil
	default:
		return nil, errors.Newf("unknown analyzer backend: %s", id).
			Component("analyzer").
			Category(errors.CategoryConfiguration).
			Context("backend_id", id).
			Build()
	}
}

// NewEmptyRegistry returns a registry with no backends. Callers wire their
// own implementations through Register.
func NewEmptyRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Registration),
		logger:  logging.ForService("analyzer.registry"),
	}
}

// Register appends a backend with the given static weight. The backend
// starts out available.
func (r *Registry) Register(backend Backend, weight float64) {
	reg := &Registration{Backend: backend, Weight: weight}
	reg.available.Store(true)
	r.order = append(r.order, backend.ID())
	r.entries[backend.ID()] = reg
}

// Select returns the registrations that support the given kind and are
// currently available, in registration order.
func (r *Registry) Select(kind Kind) []*Registration {
	var selected []*Registration
	for _, id := range r.order {
		reg := r.entries[id]
		if reg.Backend.Capabilities().Supports(kind) && reg.Available() {
			selected = append(selected, reg)
		}
	}
	return selected
}

// All returns every registration in registration order.
func (r *Registry) All() []*Registration {
	all := make([]*Registration, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.entries[id])
	}
	return all
}

// Get returns the registration for a backend id, or nil.
func (r *Registry) Get(id string) *Registration {
	return r.entries[id]
}

// SetAvailable toggles a backend's availability flag. Safe for concurrent
// use with Select.
func (r *Registry) SetAvailable(id string, available bool) {
	if reg, ok := r.entries[id]; ok {
		reg.available.Store(available)
	}
}

// Probe re-checks each backend's optional runtime dependencies and updates
// the availability flags in place. Backends are never rebuilt.
func (r *Registry) Probe(ctx context.Context) {
	for _, id := range r.order {
		reg := r.entries[id]
		err := reg.Backend.Probe(ctx)
		wasAvailable := reg.available.Swap(err == nil)

		switch {
		case err != nil && wasAvailable:
			r.logger.Warn("backend became unavailable",
				"backend_id", id,
				"reason", err.Error())
		case err == nil && !wasAvailable:
			r.logger.Info("backend became available", "backend_id", id)
		}
	}
}

package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"ilfeat/internal/logging"
	"ilfeat/internal/metrics"
	"ilfeat/internal/port"
)

// DefaultGenerators is the selection used when none is given.
var DefaultGenerators = []string{TopologicalID, GeometricID}

type RegistryConfig struct {
	SurfacePoints int
	GridSpacing   float64
	External      []ExternalConfig
	Metrics       *metrics.Metrics
	Logger        logging.Logger
}

// Registry resolves generator IDs to generators.
type Registry struct {
	generators map[string]port.Generator
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := &Registry{generators: map[string]port.Generator{}}
	r.generators[TopologicalID] = NewTopological()
	r.generators[GeometricID] = NewGeometric(cfg.SurfacePoints, cfg.GridSpacing)

	for _, ec := range cfg.External {
		gen, err := NewExternal(ec, WithToolMetrics(cfg.Metrics), WithToolLogger(logger.Named("external")))
		if err != nil {
			return nil, fmt.Errorf("failed to configure external tool: %w", err)
		}
		if _, dup := r.generators[gen.ID()]; dup {
			return nil, fmt.Errorf("generator %s registered twice", gen.ID())
		}
		r.generators[gen.ID()] = gen
	}
	return r, nil
}

// Register adds or replaces a generator.
func (r *Registry) Register(gen port.Generator) {
	r.generators[gen.ID()] = gen
}

func (r *Registry) Get(id string) (port.Generator, bool) {
	gen, ok := r.generators[id]
	return gen, ok
}

// IDs returns the registered generator IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.generators))
	for id := range r.generators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve looks up every ID. A bare tool name also matches its "external:" ID.
func (r *Registry) Resolve(ids []string) ([]port.Generator, error) {
	out := make([]port.Generator, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		gen, ok := r.generators[id]
		if !ok {
			gen, ok = r.generators[ExternalPrefix+id]
		}
		if !ok {
			return nil, fmt.Errorf("unknown generator %q (available: %s)", id, strings.Join(r.IDs(), ", "))
		}
		out = append(out, gen)
	}
	return out, nil
}

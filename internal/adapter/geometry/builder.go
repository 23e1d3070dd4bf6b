package geometry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
	"ilfeat/internal/logging"
	"ilfeat/internal/metrics"
	"ilfeat/internal/port"
)

const (
	// DefaultBondTolerance is the largest accepted RMS deviation in Å of the
	// embedded bond lengths from their targets.
	DefaultBondTolerance = 0.25
	minBondLength        = 0.5
)

// Builder produces conformers for canonical identities, retrying the
// embedder with consecutive seeds.
type Builder struct {
	embedder  port.CoordinateEmbedder
	tolerance float64
	metrics   *metrics.Metrics
	logger    logging.Logger
}

type Option func(*Builder)

func WithTolerance(tol float64) Option {
	return func(b *Builder) {
		if tol > 0 {
			b.tolerance = tol
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

func NewBuilder(embedder port.CoordinateEmbedder, opts ...Option) *Builder {
	b := &Builder{
		embedder:  embedder,
		tolerance: DefaultBondTolerance,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fingerprint returns the embedder algorithm and parameters together with
// the bond tolerance.
func (b *Builder) Fingerprint() map[string]string {
	fp := map[string]string{
		"algorithm": b.embedder.Algorithm(),
		"tolerance": strconv.FormatFloat(b.tolerance, 'g', -1, 64),
	}
	for k, v := range b.embedder.Config() {
		fp["embedder."+k] = v
	}
	return fp
}

// Build embeds identity with seeds seed, seed+1, ... and returns the first
// non-degenerate result. At most attemptLimit embeddings are tried; a limit
// below one means one.
func (b *Builder) Build(ctx context.Context, identity domain.MoleculeIdentity, seed int64, attemptLimit int) (*domain.Conformer, error) {
	m, err := chem.ExplicitHydrogenMolecule(identity)
	if err != nil {
		return nil, err
	}
	graph := m.AtomGraph()

	if attemptLimit < 1 {
		attemptLimit = 1
	}

	var lastErr error
	for attempt := 0; attempt < attemptLimit; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := seed + int64(attempt)
		coords, err := b.embedder.Embed(ctx, graph, s)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		if err == nil {
			err = CheckConformer(graph, coords, b.tolerance)
		}
		if err != nil {
			lastErr = err
			b.metrics.EmbeddingAttempt("failure")
			b.logger.Debug("embedding attempt failed",
				logging.String("identity", identity.Canonical),
				logging.Int64("seed", s),
				logging.Err(err))
			continue
		}

		b.metrics.EmbeddingAttempt("success")
		return &domain.Conformer{
			AtomGraph:     graph,
			Identity:      domain.MoleculeIdentity{Canonical: identity.Canonical, ExplicitHydrogens: true},
			Coords:        coords,
			Seed:          s,
			RequestedSeed: seed,
			Attempt:       attempt + 1,
			Algorithm:     b.embedder.Algorithm(),
		}, nil
	}

	return nil, &domain.EmbeddingFailure{Identity: identity, Attempts: attemptLimit, LastErr: lastErr}
}

// CheckConformer rejects degenerate coordinates: non-finite values, all atoms
// at the origin, collapsed bonds or bond lengths too far from their targets.
func CheckConformer(g domain.AtomGraph, coords [][3]float64, tolerance float64) error {
	if len(coords) != len(g.Elements) {
		return fmt.Errorf("got %d coordinates for %d atoms", len(coords), len(g.Elements))
	}

	allZero := true
	for i, c := range coords {
		for _, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("atom %d has non-finite coordinates", i)
			}
			if v != 0 {
				allZero = false
			}
		}
	}
	if len(coords) >= 2 && allZero {
		return fmt.Errorf("all %d atoms at the origin", len(coords))
	}

	if len(g.Bonds) == 0 {
		return nil
	}
	sq := 0.0
	for _, b := range g.Bonds {
		d := distance(coords[b.From], coords[b.To])
		if d < minBondLength {
			return fmt.Errorf("bond %d-%d collapsed to %.3f Å", b.From, b.To, d)
		}
		dev := d - BondTarget(g.Elements[b.From], g.Elements[b.To], b.Order)
		sq += dev * dev
	}
	if rms := math.Sqrt(sq / float64(len(g.Bonds))); rms > tolerance {
		return fmt.Errorf("bond length RMS deviation %.3f Å exceeds %.3f Å", rms, tolerance)
	}
	return nil
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/cachekey"
	"ilfeat/internal/domain"
	"ilfeat/internal/logging"
	"ilfeat/internal/metrics"
	"ilfeat/internal/port"
)

const (
	DefaultSeed         = 42
	DefaultAttemptLimit = 10
)

// Selection requests one generator. A required generator that yields nothing
// for an ion fails the row; an optional one leaves missing values.
type Selection struct {
	Generator string
	Required  bool
}

// Selections marks every id with the same required flag.
func Selections(ids []string, required bool) []Selection {
	out := make([]Selection, len(ids))
	for i, id := range ids {
		out[i] = Selection{Generator: id, Required: required}
	}
	return out
}

type Options struct {
	Seed         int64
	AttemptLimit int
	// Combine names the combining rule; empty means concatenate.
	Combine         string
	ValidateCharges bool
	// AllowedElements restricts the element symbols an ion may contain. Empty
	// allows all.
	AllowedElements []string
	// LabelConditions drops labels measured outside the bounds. Nil keeps all.
	LabelConditions *Conditions
	Workers         int
}

// Extractor assembles feature rows from cached descriptor vectors.
type Extractor struct {
	generators port.GeneratorResolver
	cache      port.DescriptorCache
	geometry   port.GeometryBuilder
	properties port.PropertyDB
	opts       Options
	provenance cachekey.Provenance
	allowed    map[string]bool
	combine    combiner
	metrics    *metrics.Metrics
	logger     logging.Logger
}

type Option func(*Extractor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor wires the pipeline. properties may be nil when no labels are
// wanted.
func NewExtractor(
	generators port.GeneratorResolver,
	cache port.DescriptorCache,
	geometry port.GeometryBuilder,
	properties port.PropertyDB,
	opts Options,
	options ...Option,
) (*Extractor, error) {
	if err := checkCombiningRule(opts.Combine); err != nil {
		return nil, err
	}
	if opts.AttemptLimit < 1 {
		opts.AttemptLimit = DefaultAttemptLimit
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	e := &Extractor{
		generators: generators,
		cache:      cache,
		geometry:   geometry,
		properties: properties,
		opts:       opts,
		provenance: cachekey.Provenance{Seed: opts.Seed},
		combine:    combiners[opts.Combine],
		logger:     logging.NewNopLogger(),
	}
	if geometry != nil {
		e.provenance.Geometry = geometry.Fingerprint()
	}
	if len(opts.AllowedElements) > 0 {
		e.allowed = make(map[string]bool, len(opts.AllowedElements))
		for _, el := range opts.AllowedElements {
			e.allowed[el] = true
		}
	}
	for _, o := range options {
		o(e)
	}
	return e, nil
}

// ExtractFeatures canonicalizes both ions and assembles their row.
func (e *Extractor) ExtractFeatures(ctx context.Context, rawCation, rawAnion string, mixture domain.Mixture, selections []Selection) (*domain.FeatureRow, error) {
	cation, err := e.prepare(rawCation, domain.IonCation)
	if err != nil {
		return nil, err
	}
	anion, err := e.prepare(rawAnion, domain.IonAnion)
	if err != nil {
		return nil, err
	}
	return e.Assemble(ctx, cation, anion, mixture, selections)
}

// ExtractIonicLiquid is ExtractFeatures for a dot-separated "cation.anion" string.
func (e *Extractor) ExtractIonicLiquid(ctx context.Context, raw string, mixture domain.Mixture, selections []Selection) (*domain.FeatureRow, error) {
	cation, anion, err := chem.ParseIonicLiquid(raw)
	if err != nil {
		return nil, err
	}
	if err := e.checkElements(cation); err != nil {
		return nil, err
	}
	if err := e.checkElements(anion); err != nil {
		return nil, err
	}
	return e.Assemble(ctx, cation, anion, mixture, selections)
}

func (e *Extractor) prepare(raw string, ion domain.Ion) (domain.MoleculeIdentity, error) {
	id, err := chem.Canonicalize(raw)
	if err != nil {
		return id, err
	}
	if e.opts.ValidateCharges {
		if err := chem.ValidateCharge(id, ion); err != nil {
			return id, err
		}
	}
	return id, e.checkElements(id)
}

func (e *Extractor) checkElements(id domain.MoleculeIdentity) error {
	if e.allowed == nil {
		return nil
	}
	m, err := chem.ParseSMILES(id.Canonical)
	if err != nil {
		return err
	}
	for _, el := range m.ElementSet() {
		if !e.allowed[el] {
			return &domain.InvalidStructureError{Input: id.Canonical, Pos: -1, Reason: fmt.Sprintf("element %s is not allowed", el)}
		}
	}
	return nil
}

type selected struct {
	gen      port.Generator
	required bool
}

// resolve looks up the selections, merges duplicates and sorts by generator ID.
func (e *Extractor) resolve(selections []Selection) ([]selected, error) {
	if len(selections) == 0 {
		return nil, errors.New("no generators selected")
	}
	ids := make([]string, len(selections))
	for i, s := range selections {
		ids[i] = s.Generator
	}
	gens, err := e.generators.Resolve(ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]int)
	var out []selected
	for i, gen := range gens {
		if j, ok := byID[gen.ID()]; ok {
			out[j].required = out[j].required || selections[i].Required
			continue
		}
		byID[gen.ID()] = len(out)
		out = append(out, selected{gen: gen, required: selections[i].Required})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].gen.ID() < out[j].gen.ID() })
	return out, nil
}

type conformerResult struct {
	conformer *domain.Conformer
	err       error
}

// assembly holds the per-request state of one Assemble call.
type assembly struct {
	e          *Extractor
	conformers map[domain.Ion]*conformerResult
	row        *domain.FeatureRow
}

// conformer builds the ion's conformer on first use and remembers the outcome,
// failures included.
func (a *assembly) conformer(ctx context.Context, ion domain.Ion, id domain.MoleculeIdentity) (*domain.Conformer, error) {
	if r, ok := a.conformers[ion]; ok {
		return r.conformer, r.err
	}
	c, err := a.e.geometry.Build(ctx, id, a.e.opts.Seed, a.e.opts.AttemptLimit)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	a.conformers[ion] = &conformerResult{conformer: c, err: err}
	return c, err
}

// vector returns gen's output for one ion aligned to its declared names.
func (a *assembly) vector(ctx context.Context, ion domain.Ion, id domain.MoleculeIdentity, s selected) (domain.DescriptorVector, error) {
	gen := s.gen
	key, err := cachekey.ForGenerator(id, gen, a.e.provenance)
	if err != nil {
		return domain.DescriptorVector{}, err
	}

	vec, err := a.e.cache.GetOrCompute(ctx, key, func(ctx context.Context) (domain.DescriptorVector, error) {
		var conf *domain.Conformer
		if gen.RequiresConformer() {
			c, err := a.conformer(ctx, ion, id)
			if err != nil {
				return domain.DescriptorVector{}, err
			}
			conf = c
		}
		return gen.Compute(ctx, id, conf)
	})
	if err == nil {
		return vec.Aligned(gen.Names()), nil
	}

	var reason string
	switch {
	case errors.Is(err, domain.ErrEmbeddingFailure):
		reason = domain.ReasonNo3D
	case errors.Is(err, domain.ErrExternalTool):
		reason = err.Error()
	default:
		return domain.DescriptorVector{}, fmt.Errorf("failed to compute %s for %s: %w", gen.ID(), ion, err)
	}

	if s.required {
		return domain.DescriptorVector{}, &domain.IncompleteFeatureRowError{Ion: ion, Generator: gen.ID(), Cause: err}
	}
	a.row.Unavailable = append(a.row.Unavailable, domain.UnavailableMarker{Ion: ion, Generator: gen.ID(), Reason: reason})
	a.e.logger.Warn("descriptors unavailable",
		logging.String("ion", string(ion)),
		logging.String("identity", id.Canonical),
		logging.String("generator", gen.ID()),
		logging.Err(err))
	return domain.NewDescriptorVector(gen.ID(), gen.Version(), nil).Aligned(gen.Names()), nil
}

// Assemble builds the feature row for a canonical ion pair. Columns run over
// the ions, then generators by ID, then descriptor names, followed by the
// mixture fields.
func (e *Extractor) Assemble(ctx context.Context, cation, anion domain.MoleculeIdentity, mixture domain.Mixture, selections []Selection) (*domain.FeatureRow, error) {
	sel, err := e.resolve(selections)
	if err != nil {
		return nil, err
	}
	cationInfo, err := chem.Describe(cation, domain.IonCation)
	if err != nil {
		return nil, err
	}
	anionInfo, err := chem.Describe(anion, domain.IonAnion)
	if err != nil {
		return nil, err
	}

	row := &domain.FeatureRow{
		Cation:       cation,
		Anion:        anion,
		CationFamily: cationInfo.Family,
		AnionFamily:  anionInfo.Family,
	}
	a := &assembly{e: e, conformers: make(map[domain.Ion]*conformerResult, 2), row: row}

	ions := []struct {
		kind domain.Ion
		id   domain.MoleculeIdentity
	}{{domain.IonCation, cation}, {domain.IonAnion, anion}}

	vectors := make([][]domain.DescriptorVector, len(ions))
	for i, ion := range ions {
		vectors[i] = make([]domain.DescriptorVector, len(sel))
		for j, s := range sel {
			vec, err := a.vector(ctx, ion.kind, ion.id, s)
			if err != nil {
				return nil, err
			}
			vectors[i][j] = vec
		}
	}

	if e.combine == nil {
		for i, ion := range ions {
			for j, s := range sel {
				for _, name := range s.gen.Names() {
					v, _ := vectors[i][j].Get(name)
					row.Columns = append(row.Columns, string(ion.kind)+"."+s.gen.ID()+"."+name)
					row.Values = append(row.Values, v)
				}
			}
		}
	} else {
		for j, s := range sel {
			for _, name := range s.gen.Names() {
				c, _ := vectors[0][j].Get(name)
				an, _ := vectors[1][j].Get(name)
				row.Columns = append(row.Columns, s.gen.ID()+"."+name)
				row.Values = append(row.Values, combine(e.combine, cationInfo, anionInfo, c, an))
			}
		}
	}

	for _, field := range mixture.Fields() {
		row.Columns = append(row.Columns, "mixture."+field)
		row.Values = append(row.Values, domain.Float(mixture[field]))
	}

	if e.properties != nil {
		props, err := e.properties.Lookup(ctx, cation, anion)
		if err != nil {
			return nil, fmt.Errorf("failed to look up properties: %w", err)
		}
		row.Labels = filterLabels(props, e.opts.LabelConditions)
	}
	return row, nil
}

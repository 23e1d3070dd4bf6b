package domain

import (
	"encoding/json"
	"math"
	"sort"
)

// MoleculeIdentity is the canonical form of a molecular graph.
// Two identities are equal iff both fields match, so the struct is comparable with ==.
type MoleculeIdentity struct {
	Canonical         string `json:"canonical"`
	ExplicitHydrogens bool   `json:"explicit_hydrogens"`
}

func (m MoleculeIdentity) String() string {
	if m.ExplicitHydrogens {
		return m.Canonical + "+H"
	}
	return m.Canonical
}

func (m MoleculeIdentity) IsZero() bool {
	return m.Canonical == ""
}

type ConformerBond struct {
	From  int     `json:"from"`
	To    int     `json:"to"`
	Order float64 `json:"order"`
}

// AtomGraph is the hydrogen-explicit atom and bond list handed to embedders and
// geometric generators.
type AtomGraph struct {
	Elements      []string
	Bonds         []ConformerBond
	FormalCharges []int
}

// Conformer is one embedded 3D geometry of a hydrogen-explicit molecule.
// Atom indices follow the hydrogen-explicit canonical order.
type Conformer struct {
	AtomGraph
	Identity      MoleculeIdentity
	Coords        [][3]float64
	Seed          int64
	RequestedSeed int64
	Attempt       int
	Algorithm     string
}

func (c *Conformer) AtomCount() int {
	return len(c.Elements)
}

// Value is a descriptor value or the missing sentinel.
type Value struct {
	Float float64
	Valid bool
}

// Float wraps v as a present value. NaN and Inf collapse to Missing.
func Float(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing()
	}
	return Value{Float: v, Valid: true}
}

func Missing() Value {
	return Value{}
}

func (v Value) IsMissing() bool {
	return !v.Valid
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Missing()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Float(f)
	return nil
}

// DescriptorVector is the output of one generator for one molecule.
// Names are kept sorted; the vector is not modified after construction.
type DescriptorVector struct {
	generator string
	version   string
	names     []string
	values    []Value
}

func NewDescriptorVector(generator, version string, values map[string]Value) DescriptorVector {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	vals := make([]Value, len(names))
	for i, name := range names {
		vals[i] = values[name]
	}
	return DescriptorVector{
		generator: generator,
		version:   version,
		names:     names,
		values:    vals,
	}
}

func (d DescriptorVector) Generator() string { return d.generator }
func (d DescriptorVector) Version() string   { return d.version }
func (d DescriptorVector) Len() int          { return len(d.names) }

func (d DescriptorVector) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Get returns the value for name. Absent names report Missing and false.
func (d DescriptorVector) Get(name string) (Value, bool) {
	i := sort.SearchStrings(d.names, name)
	if i < len(d.names) && d.names[i] == name {
		return d.values[i], true
	}
	return Missing(), false
}

// Aligned projects the vector onto names. Names the vector lacks become Missing.
func (d DescriptorVector) Aligned(names []string) DescriptorVector {
	values := make(map[string]Value, len(names))
	for _, name := range names {
		v, _ := d.Get(name)
		values[name] = v
	}
	return NewDescriptorVector(d.generator, d.version, values)
}

// Equal reports whether both vectors hold bit-identical values under the same names.
func (d DescriptorVector) Equal(other DescriptorVector) bool {
	if d.generator != other.generator || d.version != other.version || len(d.names) != len(other.names) {
		return false
	}
	for i := range d.names {
		if d.names[i] != other.names[i] {
			return false
		}
		a, b := d.values[i], other.values[i]
		if a.Valid != b.Valid || math.Float64bits(a.Float) != math.Float64bits(b.Float) {
			return false
		}
	}
	return true
}

type descriptorVectorJSON struct {
	Generator string           `json:"generator"`
	Version   string           `json:"version"`
	Values    map[string]Value `json:"values"`
}

func (d DescriptorVector) MarshalJSON() ([]byte, error) {
	values := make(map[string]Value, len(d.names))
	for i, name := range d.names {
		values[name] = d.values[i]
	}
	return json.Marshal(descriptorVectorJSON{
		Generator: d.generator,
		Version:   d.version,
		Values:    values,
	})
}

func (d *DescriptorVector) UnmarshalJSON(data []byte) error {
	var raw descriptorVectorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = NewDescriptorVector(raw.Generator, raw.Version, raw.Values)
	return nil
}

// CacheKey addresses one descriptor vector in the cache.
type CacheKey struct {
	Hash      string
	Generator string
	Version   string
}

// Mixture holds stoichiometric metadata such as the cation:anion ratio.
type Mixture map[string]float64

func (m Mixture) Fields() []string {
	fields := make([]string, 0, len(m))
	for k := range m {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

type PropertyValue struct {
	Name         string  `json:"name" yaml:"name"`
	Value        float64 `json:"value" yaml:"value"`
	TemperatureK float64 `json:"temperature_k" yaml:"temperature_k"`
	PressureKPa  float64 `json:"pressure_kpa" yaml:"pressure_kpa"`
}

type Ion string

const (
	IonCation Ion = "cation"
	IonAnion  Ion = "anion"
)

// UnavailableMarker records a generator whose output could not be produced for an ion.
type UnavailableMarker struct {
	Ion       Ion    `json:"ion"`
	Generator string `json:"generator"`
	Reason    string `json:"reason"`
}

const ReasonNo3D = "no 3D descriptors"

type FeatureRow struct {
	Cation       MoleculeIdentity    `json:"cation"`
	Anion        MoleculeIdentity    `json:"anion"`
	CationFamily string              `json:"cation_family,omitempty"`
	AnionFamily  string              `json:"anion_family,omitempty"`
	Columns      []string            `json:"columns"`
	Values       []Value             `json:"values"`
	Labels       []PropertyValue     `json:"labels,omitempty"`
	Unavailable  []UnavailableMarker `json:"unavailable,omitempty"`
}

// Value returns the value in the named column.
func (r *FeatureRow) Value(column string) (Value, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return Missing(), false
}

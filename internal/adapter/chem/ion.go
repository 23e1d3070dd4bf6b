package chem

import (
	"strings"

	"ilfeat/internal/domain"
)

// IonInfo summarises one canonical ion.
type IonInfo struct {
	Identity       domain.MoleculeIdentity
	Charge         int
	Family         string
	Elements       []string
	HeavyAtomCount int
	AtomCount      int
	MolWeight      float64
	Formula        string
}

// Describe parses a canonical identity and reports its properties, with the
// family looked up in the cation or anion table.
func Describe(id domain.MoleculeIdentity, ion domain.Ion) (*IonInfo, error) {
	m, err := ParseSMILES(id.Canonical)
	if err != nil {
		return nil, err
	}
	return &IonInfo{
		Identity:       id,
		Charge:         m.NetCharge(),
		Family:         Family(m, ion),
		Elements:       m.ElementSet(),
		HeavyAtomCount: m.HeavyAtomCount(),
		AtomCount:      m.AtomCount(),
		MolWeight:      m.MolWeight(),
		Formula:        m.Formula(),
	}, nil
}

// ValidateCharge checks that a cation is positive and an anion negative.
func ValidateCharge(id domain.MoleculeIdentity, ion domain.Ion) error {
	m, err := ParseSMILES(id.Canonical)
	if err != nil {
		return err
	}
	return checkCharge(id.Canonical, m.NetCharge(), ion)
}

func checkCharge(input string, q int, ion domain.Ion) error {
	switch {
	case q == 0,
		ion == domain.IonCation && q < 0,
		ion == domain.IonAnion && q > 0:
		return &domain.InvalidChargeError{Input: input, Ion: ion, Charge: q}
	}
	return nil
}

// ParseIonicLiquid splits "cation.anion" into canonical identities. The two
// parts may be given in either order; the negative one becomes the anion.
func ParseIonicLiquid(raw string) (cation, anion domain.MoleculeIdentity, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 {
		return cation, anion, &domain.InvalidStructureError{
			Input:  raw,
			Pos:    -1,
			Reason: "ionic liquid must have exactly two dot-separated ions",
		}
	}

	left, lq, err := canonicalWithCharge(parts[0])
	if err != nil {
		return cation, anion, err
	}
	right, rq, err := canonicalWithCharge(parts[1])
	if err != nil {
		return cation, anion, err
	}
	if lq < 0 {
		left, right = right, left
		lq, rq = rq, lq
	}
	if err := checkCharge(left.Canonical, lq, domain.IonCation); err != nil {
		return cation, anion, err
	}
	if err := checkCharge(right.Canonical, rq, domain.IonAnion); err != nil {
		return cation, anion, err
	}
	return left, right, nil
}

func canonicalWithCharge(raw string) (domain.MoleculeIdentity, int, error) {
	id, err := Canonicalize(raw)
	if err != nil {
		return id, 0, err
	}
	m, err := ParseSMILES(id.Canonical)
	if err != nil {
		return id, 0, err
	}
	return id, m.NetCharge(), nil
}

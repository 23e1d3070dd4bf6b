package chem

import (
	"fmt"
	"strings"
)

type atomQuery func(m *Molecule, i int) bool

type bondQuery func(m *Molecule, b Bond) bool

type queryBond struct {
	a, b int
	q    bondQuery
}

// Pattern is a compiled substructure query written in a subset of SMARTS:
// element symbols, atomic numbers (#n), charges, '*', 'a'/'A', negation and
// the ',' ';' '&' operators inside brackets, plus bonds, branches and ring
// closures.
type Pattern struct {
	source string
	atoms  []atomQuery
	bonds  []queryBond
	// anchor[k] is an earlier pattern atom bonded to atom k, or -1.
	anchor []int
}

func (p *Pattern) String() string { return p.source }

type smartsParser struct {
	src     string
	pos     int
	pat     *Pattern
	prev    int
	pending bondQuery
	branch  []int
	rings   map[int]ringQueryOpen
}

type ringQueryOpen struct {
	atom int
	q    bondQuery
}

func CompileSMARTS(src string) (*Pattern, error) {
	p := &smartsParser{
		src:   src,
		pat:   &Pattern{source: src},
		prev:  -1,
		rings: map[int]ringQueryOpen{},
	}
	if err := p.parse(); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", src, err)
	}
	return p.pat, nil
}

func mustCompileSMARTS(src string) *Pattern {
	p, err := CompileSMARTS(src)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *smartsParser) parse() error {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return fmt.Errorf("branch without atom at %d", p.pos)
			}
			p.branch = append(p.branch, p.prev)
			p.pos++
		case c == ')':
			if len(p.branch) == 0 {
				return fmt.Errorf("unbalanced ')' at %d", p.pos)
			}
			p.prev = p.branch[len(p.branch)-1]
			p.branch = p.branch[:len(p.branch)-1]
			p.pos++
		case strings.IndexByte("-=#:~!", c) >= 0 && p.prev >= 0:
			q, err := p.parseBond()
			if err != nil {
				return err
			}
			p.pending = q
		case isDigit(c) || c == '%':
			if err := p.parseRing(); err != nil {
				return err
			}
		case c == '[':
			end := strings.IndexByte(p.src[p.pos:], ']')
			if end < 0 {
				return fmt.Errorf("unclosed bracket at %d", p.pos)
			}
			body := p.src[p.pos+1 : p.pos+end]
			p.pos += end + 1
			q, err := parseAtomExpr(body)
			if err != nil {
				return err
			}
			p.addAtom(q)
		default:
			q, n := bareAtomQuery(p.src[p.pos:])
			if n == 0 {
				return fmt.Errorf("unexpected %q at %d", c, p.pos)
			}
			p.pos += n
			p.addAtom(q)
		}
	}
	if len(p.branch) > 0 || len(p.rings) > 0 {
		return fmt.Errorf("unclosed branch or ring")
	}
	if len(p.pat.atoms) == 0 {
		return fmt.Errorf("no atoms")
	}
	return nil
}

func (p *smartsParser) parseBond() (bondQuery, error) {
	var terms []bondQuery
	for p.pos < len(p.src) {
		neg := false
		if p.src[p.pos] == '!' {
			neg = true
			p.pos++
		}
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("dangling bond")
		}
		var q bondQuery
		switch p.src[p.pos] {
		case '-':
			q = bondOrderIs(BondSingle)
		case '=':
			q = bondOrderIs(BondDouble)
		case '#':
			q = bondOrderIs(BondTriple)
		case ':':
			q = bondOrderIs(BondAromatic)
		case '~':
			q = func(*Molecule, Bond) bool { return true }
		default:
			return nil, fmt.Errorf("unexpected bond %q at %d", p.src[p.pos], p.pos)
		}
		p.pos++
		if neg {
			inner := q
			q = func(m *Molecule, b Bond) bool { return !inner(m, b) }
		}
		terms = append(terms, q)
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	return func(m *Molecule, b Bond) bool {
		for _, t := range terms {
			if t(m, b) {
				return true
			}
		}
		return false
	}, nil
}

func bondOrderIs(o BondOrder) bondQuery {
	return func(_ *Molecule, b Bond) bool { return b.Order == o }
}

func defaultBondQuery(_ *Molecule, b Bond) bool {
	return b.Order == BondSingle || b.Order == BondAromatic
}

func (p *smartsParser) addAtom(q atomQuery) {
	idx := len(p.pat.atoms)
	p.pat.atoms = append(p.pat.atoms, q)
	p.pat.anchor = append(p.pat.anchor, p.prev)
	if p.prev >= 0 {
		bq := p.pending
		if bq == nil {
			bq = defaultBondQuery
		}
		p.pat.bonds = append(p.pat.bonds, queryBond{a: p.prev, b: idx, q: bq})
	}
	p.prev = idx
	p.pending = nil
}

func (p *smartsParser) parseRing() error {
	if p.prev < 0 {
		return fmt.Errorf("ring closure without atom at %d", p.pos)
	}
	var num int
	if p.src[p.pos] == '%' {
		if p.pos+2 >= len(p.src) {
			return fmt.Errorf("malformed ring number at %d", p.pos)
		}
		num = int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
		p.pos += 3
	} else {
		num = int(p.src[p.pos] - '0')
		p.pos++
	}
	open, ok := p.rings[num]
	if !ok {
		p.rings[num] = ringQueryOpen{atom: p.prev, q: p.pending}
		p.pending = nil
		return nil
	}
	delete(p.rings, num)
	q := p.pending
	if q == nil {
		q = open.q
	}
	if q == nil {
		q = defaultBondQuery
	}
	p.pat.bonds = append(p.pat.bonds, queryBond{a: open.atom, b: p.prev, q: q})
	p.pending = nil
	return nil
}

func elementIs(z int) atomQuery {
	return func(m *Molecule, i int) bool { return m.Atoms[i].Element.Number == z }
}

func aromaticIs(v bool) atomQuery {
	return func(m *Molecule, i int) bool { return m.Atoms[i].Aromatic == v }
}

func chargeIs(q int) atomQuery {
	return func(m *Molecule, i int) bool { return m.Atoms[i].Charge == q }
}

func andQuery(qs ...atomQuery) atomQuery {
	return func(m *Molecule, i int) bool {
		for _, q := range qs {
			if !q(m, i) {
				return false
			}
		}
		return true
	}
}

func orQuery(qs ...atomQuery) atomQuery {
	return func(m *Molecule, i int) bool {
		for _, q := range qs {
			if q(m, i) {
				return true
			}
		}
		return false
	}
}

// symbolQuery matches an element symbol; lowercase symbols are aromatic and
// capitalised ones aliphatic.
func symbolQuery(s string) (atomQuery, int) {
	if upper, ok := aromaticSymbols[s[:min(2, len(s))]]; ok && len(s) >= 2 {
		e, _ := LookupElement(upper)
		return andQuery(elementIs(e.Number), aromaticIs(true)), 2
	}
	if upper, ok := aromaticSymbols[s[:1]]; ok {
		e, _ := LookupElement(upper)
		return andQuery(elementIs(e.Number), aromaticIs(true)), 1
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return nil, 0
	}
	if len(s) >= 2 && s[1] >= 'a' && s[1] <= 'z' {
		if e, ok := LookupElement(s[:2]); ok {
			return andQuery(elementIs(e.Number), aromaticIs(false)), 2
		}
	}
	if e, ok := LookupElement(s[:1]); ok {
		return andQuery(elementIs(e.Number), aromaticIs(false)), 1
	}
	return nil, 0
}

func bareAtomQuery(s string) (atomQuery, int) {
	switch s[0] {
	case '*':
		return func(*Molecule, int) bool { return true }, 1
	case 'a':
		return aromaticIs(true), 1
	case 'A':
		return aromaticIs(false), 1
	}
	for _, sym := range []string{"Cl", "Br"} {
		if strings.HasPrefix(s, sym) {
			return symbolQuery(sym)
		}
	}
	return symbolQuery(s[:1])
}

// parseAtomExpr parses a bracket expression. Precedence from high to low is
// '!', implicit or '&' conjunction, ',' and ';'.
func parseAtomExpr(body string) (atomQuery, error) {
	var low []atomQuery
	for _, lowTerm := range strings.Split(body, ";") {
		var ors []atomQuery
		for _, orTerm := range strings.Split(lowTerm, ",") {
			q, err := parseConjunction(orTerm)
			if err != nil {
				return nil, fmt.Errorf("bad atom expression [%s]: %w", body, err)
			}
			ors = append(ors, q)
		}
		low = append(low, orQuery(ors...))
	}
	return andQuery(low...), nil
}

func parseConjunction(s string) (atomQuery, error) {
	if s == "" {
		return nil, fmt.Errorf("empty term")
	}
	var qs []atomQuery
	i := 0
	for i < len(s) {
		if s[i] == '&' {
			i++
			continue
		}
		neg := false
		for i < len(s) && s[i] == '!' {
			neg = !neg
			i++
		}
		if i >= len(s) {
			return nil, fmt.Errorf("dangling '!'")
		}
		q, n, err := parsePrimitive(s[i:])
		if err != nil {
			return nil, err
		}
		i += n
		if neg {
			inner := q
			q = func(m *Molecule, k int) bool { return !inner(m, k) }
		}
		qs = append(qs, q)
	}
	return andQuery(qs...), nil
}

func parsePrimitive(s string) (atomQuery, int, error) {
	switch c := s[0]; {
	case c == '#':
		n := 1
		z := 0
		for n < len(s) && isDigit(s[n]) {
			z = z*10 + int(s[n]-'0')
			n++
		}
		if n == 1 {
			return nil, 0, fmt.Errorf("'#' without atomic number")
		}
		return elementIs(z), n, nil
	case c == '+' || c == '-':
		sign := 1
		if c == '-' {
			sign = -1
		}
		n := 1
		mag := 0
		for n < len(s) && isDigit(s[n]) {
			mag = mag*10 + int(s[n]-'0')
			n++
		}
		if n == 1 {
			mag = 1
			for n < len(s) && s[n] == c {
				mag++
				n++
			}
		}
		return chargeIs(sign * mag), n, nil
	case c == '*':
		return func(*Molecule, int) bool { return true }, 1, nil
	case c == 'a':
		return aromaticIs(true), 1, nil
	case c == 'A':
		return aromaticIs(false), 1, nil
	case c == 'R':
		return func(m *Molecule, i int) bool { return m.AtomInRing(i) }, 1, nil
	}
	q, n := symbolQuery(s)
	if n == 0 {
		return nil, 0, fmt.Errorf("unknown primitive %q", s)
	}
	return q, n, nil
}

// Matches reports whether the pattern occurs as a substructure of m.
func (p *Pattern) Matches(m *Molecule) bool {
	mapping := make([]int, len(p.atoms))
	used := make([]bool, len(m.Atoms))
	for i := range mapping {
		mapping[i] = -1
	}

	var extend func(k int) bool
	extend = func(k int) bool {
		if k == len(p.atoms) {
			return true
		}
		var candidates []int
		if a := p.anchor[k]; a >= 0 {
			candidates = m.Neighbors(mapping[a])
		} else {
			candidates = allIndices(len(m.Atoms))
		}
		for _, t := range candidates {
			if used[t] || !p.atoms[k](m, t) {
				continue
			}
			mapping[k] = t
			if p.bondsConsistent(m, mapping, k) {
				used[t] = true
				if extend(k + 1) {
					return true
				}
				used[t] = false
			}
			mapping[k] = -1
		}
		return false
	}
	return extend(0)
}

// bondsConsistent checks every query bond between atom k and earlier mapped atoms.
func (p *Pattern) bondsConsistent(m *Molecule, mapping []int, k int) bool {
	for _, qb := range p.bonds {
		var other int
		switch {
		case qb.a == k:
			other = qb.b
		case qb.b == k:
			other = qb.a
		default:
			continue
		}
		if other > k || mapping[other] < 0 {
			continue
		}
		bi := m.bondBetween(mapping[k], mapping[other])
		if bi < 0 || !qb.q(m, m.Bonds[bi]) {
			return false
		}
	}
	return true
}

package chem

import (
	"strings"

	"ilfeat/internal/domain"
)

type ringOpening struct {
	atom  int
	order BondOrder // 0 when unspecified
	pos   int
}

type smilesParser struct {
	input   string
	pos     int
	mol     *Molecule
	prev    int
	pending BondOrder
	branch  []int
	rings   map[int]ringOpening
}

func (p *smilesParser) fail(pos int, reason string) error {
	return &domain.InvalidStructureError{Input: p.input, Pos: pos, Reason: reason}
}

// ParseSMILES parses a SMILES string into a molecule with resolved hydrogen
// counts, folded explicit hydrogens and perceived aromaticity.
func ParseSMILES(smiles string) (*Molecule, error) {
	input := strings.TrimSpace(smiles)
	if input == "" {
		return nil, &domain.InvalidStructureError{Input: smiles, Pos: -1, Reason: "empty structure"}
	}

	p := &smilesParser{
		input: input,
		mol:   newMolecule(),
		prev:  -1,
		rings: map[int]ringOpening{},
	}
	if err := p.parse(); err != nil {
		return nil, err
	}

	m := p.mol
	if err := resolveHydrogens(m, input); err != nil {
		return nil, err
	}
	foldExplicitHydrogens(m)
	if err := perceiveAromaticity(m, input); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *smilesParser) parse() error {
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.fail(p.pos, "branch without preceding atom")
			}
			if p.pending != 0 {
				return p.fail(p.pos, "bond before branch")
			}
			p.branch = append(p.branch, p.prev)
			p.pos++
		case c == ')':
			if len(p.branch) == 0 {
				return p.fail(p.pos, "unbalanced ')'")
			}
			if p.pending != 0 {
				return p.fail(p.pos, "dangling bond")
			}
			p.prev = p.branch[len(p.branch)-1]
			p.branch = p.branch[:len(p.branch)-1]
			p.pos++
		case c == '.':
			if p.pending != 0 {
				return p.fail(p.pos, "bond before '.'")
			}
			if len(p.branch) > 0 {
				return p.fail(p.pos, "'.' inside branch")
			}
			if p.prev < 0 {
				return p.fail(p.pos, "empty component")
			}
			p.prev = -1
			p.pos++
		case strings.IndexByte("-=#$:/\\", c) >= 0:
			if p.pending != 0 {
				return p.fail(p.pos, "consecutive bond symbols")
			}
			if p.prev < 0 {
				return p.fail(p.pos, "bond without preceding atom")
			}
			p.pending = bondFromSymbol(c)
			p.pos++
		case c >= '0' && c <= '9' || c == '%':
			if err := p.parseRingClosure(); err != nil {
				return err
			}
		case c == '[':
			if err := p.parseBracketAtom(); err != nil {
				return err
			}
		default:
			if err := p.parseOrganicAtom(); err != nil {
				return err
			}
		}
	}

	if p.pending != 0 {
		return p.fail(len(p.input), "dangling bond")
	}
	if p.input[len(p.input)-1] == '.' {
		return p.fail(len(p.input)-1, "empty component")
	}
	if len(p.branch) > 0 {
		return p.fail(len(p.input), "unclosed branch")
	}
	if len(p.rings) > 0 {
		first := -1
		for num := range p.rings {
			if first < 0 || num < first {
				first = num
			}
		}
		return p.fail(p.rings[first].pos, "unclosed ring "+ringLabel(first))
	}
	if len(p.mol.Atoms) == 0 {
		return p.fail(0, "no atoms")
	}
	return nil
}

func bondFromSymbol(c byte) BondOrder {
	switch c {
	case '=':
		return BondDouble
	case '#':
		return BondTriple
	case '$':
		return BondQuadruple
	case ':':
		return BondAromatic
	default:
		return BondSingle
	}
}

func ringLabel(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return "%" + string(rune('0'+n/10)) + string(rune('0'+n%10))
}

func (p *smilesParser) addAtom(a Atom) error {
	idx := p.mol.addAtom(a)
	if p.prev >= 0 {
		order := p.pending
		if order == 0 {
			order = defaultBond(p.mol, p.prev, idx)
		}
		p.mol.addBond(p.prev, idx, order)
	}
	p.prev = idx
	p.pending = 0
	return nil
}

func defaultBond(m *Molecule, a, b int) BondOrder {
	if m.Atoms[a].Aromatic && m.Atoms[b].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *smilesParser) parseRingClosure() error {
	start := p.pos
	if p.prev < 0 {
		return p.fail(start, "ring closure without preceding atom")
	}

	var num int
	if p.input[p.pos] == '%' {
		if p.pos+2 >= len(p.input) || !isDigit(p.input[p.pos+1]) || !isDigit(p.input[p.pos+2]) {
			return p.fail(start, "malformed ring number")
		}
		num = int(p.input[p.pos+1]-'0')*10 + int(p.input[p.pos+2]-'0')
		p.pos += 3
	} else {
		num = int(p.input[p.pos] - '0')
		p.pos++
	}

	open, ok := p.rings[num]
	if !ok {
		p.rings[num] = ringOpening{atom: p.prev, order: p.pending, pos: start}
		p.pending = 0
		return nil
	}
	delete(p.rings, num)

	if open.atom == p.prev {
		return p.fail(start, "ring closure to the same atom")
	}
	if p.mol.bondBetween(open.atom, p.prev) >= 0 {
		return p.fail(start, "duplicate bond")
	}

	order := open.order
	switch {
	case order != 0 && p.pending != 0 && order != p.pending:
		return p.fail(start, "conflicting ring closure bonds")
	case order == 0:
		order = p.pending
	}
	if order == 0 {
		order = defaultBond(p.mol, open.atom, p.prev)
	}
	p.mol.addBond(open.atom, p.prev, order)
	p.pending = 0
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *smilesParser) parseOrganicAtom() error {
	start := p.pos
	rest := p.input[p.pos:]

	for _, sym := range []string{"Cl", "Br"} {
		if strings.HasPrefix(rest, sym) {
			p.pos += 2
			e, _ := LookupElement(sym)
			return p.addAtom(Atom{Element: e, HCount: -1})
		}
	}

	c := rest[0]
	if c >= 'A' && c <= 'Z' {
		sym := string(c)
		if !organicSubset[sym] {
			return p.fail(start, "element "+sym+" must be written in brackets")
		}
		p.pos++
		e, _ := LookupElement(sym)
		return p.addAtom(Atom{Element: e, HCount: -1})
	}
	if c >= 'a' && c <= 'z' {
		sym := string(c)
		upper, ok := aromaticSymbols[sym]
		if !ok || len(upper) != 1 {
			return p.fail(start, "unknown aromatic atom '"+sym+"'")
		}
		p.pos++
		e, _ := LookupElement(upper)
		return p.addAtom(Atom{Element: e, Aromatic: true, HCount: -1})
	}
	return p.fail(start, "unexpected character '"+string(c)+"'")
}

func (p *smilesParser) parseBracketAtom() error {
	start := p.pos
	end := strings.IndexByte(p.input[p.pos:], ']')
	if end < 0 {
		return p.fail(start, "unclosed bracket atom")
	}
	body := p.input[p.pos+1 : p.pos+end]
	p.pos += end + 1

	i := 0
	atom := Atom{bracket: true}

	for i < len(body) && isDigit(body[i]) {
		atom.Isotope = atom.Isotope*10 + int(body[i]-'0')
		i++
	}

	if i >= len(body) {
		return p.fail(start, "missing element symbol")
	}
	sym, aromatic, n := readBracketSymbol(body[i:])
	if n == 0 {
		return p.fail(start+1+i, "unknown element in '["+body+"]'")
	}
	e, _ := LookupElement(sym)
	atom.Element = e
	atom.Aromatic = aromatic
	i += n

	// chirality is parsed and discarded
	chiral := false
	for i < len(body) && body[i] == '@' {
		chiral = true
		i++
	}
	if chiral && i < len(body) && body[i] >= 'A' && body[i] <= 'Z' && body[i] != 'H' {
		for i < len(body) && body[i] >= 'A' && body[i] <= 'Z' {
			i++
		}
		for i < len(body) && isDigit(body[i]) {
			i++
		}
	}

	if i < len(body) && body[i] == 'H' {
		i++
		atom.HCount = 1
		if i < len(body) && isDigit(body[i]) {
			atom.HCount = int(body[i] - '0')
			i++
		}
	}

	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		ch := body[i]
		i++
		switch {
		case i < len(body) && isDigit(body[i]):
			mag := 0
			for i < len(body) && isDigit(body[i]) {
				mag = mag*10 + int(body[i]-'0')
				i++
			}
			atom.Charge = sign * mag
		default:
			mag := 1
			for i < len(body) && body[i] == ch {
				mag++
				i++
			}
			atom.Charge = sign * mag
		}
	}

	if i < len(body) && body[i] == ':' {
		i++
		if i >= len(body) || !isDigit(body[i]) {
			return p.fail(start, "malformed atom class")
		}
		for i < len(body) && isDigit(body[i]) {
			i++
		}
	}

	if i != len(body) {
		return p.fail(start+1+i, "unexpected '"+body[i:]+"' in bracket atom")
	}
	return p.addAtom(atom)
}

// readBracketSymbol reads an element symbol at the start of s and returns it in
// canonical capitalisation, whether it was written aromatic, and its length.
func readBracketSymbol(s string) (string, bool, int) {
	if len(s) >= 2 {
		if upper, ok := aromaticSymbols[s[:2]]; ok {
			return upper, true, 2
		}
	}
	if upper, ok := aromaticSymbols[s[:1]]; ok {
		return upper, true, 1
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return "", false, 0
	}
	if len(s) >= 2 && s[1] >= 'a' && s[1] <= 'z' {
		if _, ok := LookupElement(s[:2]); ok {
			return s[:2], false, 2
		}
	}
	if _, ok := LookupElement(s[:1]); ok {
		return s[:1], false, 1
	}
	return "", false, 0
}

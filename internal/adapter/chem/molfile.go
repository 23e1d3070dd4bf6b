package chem

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"ilfeat/internal/domain"
)

// Molfile is a single V2000 connection table with 3D coordinates.
type Molfile struct {
	Name   string
	Graph  domain.AtomGraph
	Coords [][3]float64
}

// MolfileFromConformer wraps a conformer for writing.
func MolfileFromConformer(c *domain.Conformer) *Molfile {
	return &Molfile{Name: c.Identity.Canonical, Graph: c.AtomGraph, Coords: c.Coords}
}

func chargeCode(q int) int {
	switch q {
	case 3:
		return 1
	case 2:
		return 2
	case 1:
		return 3
	case -1:
		return 5
	case -2:
		return 6
	case -3:
		return 7
	}
	return 0
}

func chargeFromCode(c int) int {
	if c >= 1 && c <= 7 && c != 4 {
		return 4 - c
	}
	return 0
}

func bondTypeCode(order float64) int {
	switch {
	case order == 1.5:
		return 4
	case order >= 1 && order <= 3:
		return int(math.Round(order))
	}
	return 1
}

// WriteSDF writes the molfile followed by the record terminator.
func (mf *Molfile) WriteSDF(w io.Writer) error {
	if err := mf.Write(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "$$$$\n")
	return err
}

func (mf *Molfile) Write(w io.Writer) error {
	g := mf.Graph
	if len(mf.Coords) != len(g.Elements) {
		return fmt.Errorf("molfile has %d atoms but %d coordinates", len(g.Elements), len(mf.Coords))
	}
	if len(g.Elements) > 999 || len(g.Bonds) > 999 {
		return fmt.Errorf("molfile too large for V2000: %d atoms, %d bonds", len(g.Elements), len(g.Bonds))
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n  ilfeat          3D\n\n", strings.ReplaceAll(mf.Name, "\n", " "))
	fmt.Fprintf(bw, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", len(g.Elements), len(g.Bonds))

	var charged []int
	for i, sym := range g.Elements {
		q := 0
		if i < len(g.FormalCharges) {
			q = g.FormalCharges[i]
		}
		if q != 0 {
			charged = append(charged, i)
		}
		c := mf.Coords[i]
		fmt.Fprintf(bw, "%10.4f%10.4f%10.4f %-3s 0%3d  0  0  0  0  0  0  0  0  0  0\n",
			c[0], c[1], c[2], sym, chargeCode(q))
	}
	for _, b := range g.Bonds {
		fmt.Fprintf(bw, "%3d%3d%3d  0\n", b.From+1, b.To+1, bondTypeCode(b.Order))
	}
	for start := 0; start < len(charged); start += 8 {
		end := min(start+8, len(charged))
		fmt.Fprintf(bw, "M  CHG%3d", end-start)
		for _, i := range charged[start:end] {
			fmt.Fprintf(bw, " %3d %3d", i+1, g.FormalCharges[i])
		}
		bw.WriteString("\n")
	}
	bw.WriteString("M  END\n")
	return bw.Flush()
}

// ReadMolfile reads the first V2000 record from r. Charges from M  CHG lines
// replace those in the atom block.
func ReadMolfile(r io.Reader) (*Molfile, error) {
	sc := bufio.NewScanner(r)
	var lines []string
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "$$$$" {
			break
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read molfile: %w", err)
	}
	if len(lines) < 4 {
		return nil, fmt.Errorf("molfile too short: %d lines", len(lines))
	}

	counts := lines[3]
	if !strings.Contains(counts, "V2000") || len(counts) < 6 {
		return nil, fmt.Errorf("unsupported molfile counts line %q", counts)
	}
	nAtoms, err := fixedInt(counts, 0, 3)
	if err != nil {
		return nil, fmt.Errorf("bad atom count: %w", err)
	}
	nBonds, err := fixedInt(counts, 3, 6)
	if err != nil {
		return nil, fmt.Errorf("bad bond count: %w", err)
	}
	if len(lines) < 4+nAtoms+nBonds {
		return nil, fmt.Errorf("molfile truncated: want %d atom and %d bond lines", nAtoms, nBonds)
	}

	mf := &Molfile{
		Name: lines[0],
		Graph: domain.AtomGraph{
			Elements:      make([]string, nAtoms),
			FormalCharges: make([]int, nAtoms),
			Bonds:         make([]domain.ConformerBond, nBonds),
		},
		Coords: make([][3]float64, nAtoms),
	}

	for i := 0; i < nAtoms; i++ {
		line := lines[4+i]
		if len(line) < 34 {
			return nil, fmt.Errorf("atom line %d too short", i+1)
		}
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(line[10*k:10*k+10]), 64)
			if err != nil {
				return nil, fmt.Errorf("atom %d coordinate: %w", i+1, err)
			}
			mf.Coords[i][k] = v
		}
		sym := strings.TrimSpace(line[31:34])
		if _, ok := LookupElement(sym); !ok {
			return nil, fmt.Errorf("atom %d: unknown element %q", i+1, sym)
		}
		mf.Graph.Elements[i] = sym
		if len(line) >= 39 {
			if code, err := fixedInt(line, 36, 39); err == nil {
				mf.Graph.FormalCharges[i] = chargeFromCode(code)
			}
		}
	}

	for i := 0; i < nBonds; i++ {
		line := lines[4+nAtoms+i]
		from, err1 := fixedInt(line, 0, 3)
		to, err2 := fixedInt(line, 3, 6)
		typ, err3 := fixedInt(line, 6, 9)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("bond line %d malformed: %q", i+1, line)
		}
		if from < 1 || from > nAtoms || to < 1 || to > nAtoms {
			return nil, fmt.Errorf("bond %d references missing atom", i+1)
		}
		order := float64(typ)
		if typ == 4 {
			order = 1.5
		}
		mf.Graph.Bonds[i] = domain.ConformerBond{From: from - 1, To: to - 1, Order: order}
	}

	chgReset := false
	for _, line := range lines[4+nAtoms+nBonds:] {
		if line == "M  END" {
			break
		}
		if !strings.HasPrefix(line, "M  CHG") {
			continue
		}
		if !chgReset {
			for i := range mf.Graph.FormalCharges {
				mf.Graph.FormalCharges[i] = 0
			}
			chgReset = true
		}
		fields := strings.Fields(line[6:])
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || len(fields) < 1+2*n {
			return nil, fmt.Errorf("malformed charge line %q", line)
		}
		for k := 0; k < n; k++ {
			idx, err1 := strconv.Atoi(fields[1+2*k])
			q, err2 := strconv.Atoi(fields[2+2*k])
			if err1 != nil || err2 != nil || idx < 1 || idx > nAtoms {
				return nil, fmt.Errorf("malformed charge line %q", line)
			}
			mf.Graph.FormalCharges[idx-1] = q
		}
	}
	return mf, nil
}

func fixedInt(line string, from, to int) (int, error) {
	if len(line) < to {
		return 0, fmt.Errorf("line %q shorter than column %d", line, to)
	}
	return strconv.Atoi(strings.TrimSpace(line[from:to]))
}

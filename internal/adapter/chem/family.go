package chem

import "ilfeat/internal/domain"

type family struct {
	name     string
	patterns []*Pattern
}

func newFamily(name string, patterns ...string) family {
	f := family{name: name}
	for _, p := range patterns {
		f.patterns = append(f.patterns, mustCompileSMARTS(p))
	}
	return f
}

// Families are tried in order; the first match wins, so specific ring systems
// precede the generic charged-atom fallbacks.
var cationFamilies = []family{
	newFamily("imidazolium", "c1c[n+]cn1"),
	newFamily("pyrazolium", "c1cn[n+]c1"),
	newFamily("triazolium", "c1nnc[n+]1", "c1c[n+]nn1", "c1n[n+]cn1"),
	newFamily("thiazolium", "c1csc[n+]1"),
	newFamily("quinolinium", "c1ccc2[n+]cccc2c1", "c1ccc2c[n+]ccc2c1"),
	newFamily("pyridinium", "c1cc[n+]cc1"),
	newFamily("pyrrolidinium", "[#6]-1-[#6]-[#6]-[#7+]-[#6]-1"),
	newFamily("piperidinium", "[#6]-1-[#6]-[#6]-[#7+]-[#6]-[#6]-1"),
	newFamily("piperazinium", "[#6]-1-[#6]-[#7]-[#6]-[#6]-[#7]-1"),
	newFamily("morpholinium", "[#6]-1-[#6]-[#8]-[#6]-[#6]-[#7+]-1"),
	newFamily("phosphonium", "[#15+]"),
	newFamily("guanidinium", "[#7]-[#6](-[#7])=[#7+]"),
	newFamily("amidium", "[!#1!#6][#6]=[#7+]"),
	newFamily("ammonium", "[#7+]"),
	newFamily("cyclopropenium", "[#7]-[#6]1=,:[#6](-[#7])[#6+]1-[#7]"),
	newFamily("cyclic sulfonium", "[#6]-1-[#6]-[#6]-[#16+]-[#6]-1", "[#6]-1-[#6]-[#6]-[#16+]-[#6]-[#6]-1"),
	newFamily("sulfonium", "[#16+]"),
}

var anionFamilies = []family{
	newFamily("bistriflamides", "O=S(=O)[#7-]S(=O)=O", "[#7-]S(=O)=O"),
	newFamily("cyclic amides",
		"c1c[n-]cn1", "c1cn[n-]c1", "c1nnn[n-]1", "c1c[n-]nn1", "c1nc[n-]n1", "c1cc[n-]c1"),
	newFamily("methanides", "[#6-]"),
	newFamily("borates", "[#5-]"),
	newFamily("phosphates", "[#15-]"),
	newFamily("inorganics",
		"[F,Cl,Br,I;-]",
		"[#8-]-[#7+](-[#8-])=O",
		"[#16-]C#N",
		"[#8-][Cl+3]([#8-])([#8-])[#8-]",
		"[#7-]=[N+]=[#7-]",
	),
	newFamily("sulfates", "[#8]S([#8-])(=O)=O"),
	newFamily("sulfonates", "[#8-]S(=O)=O"),
	newFamily("organic phosphates", "[#8]P([#8])([#8-])=O", "[#8]-[#15](-[#8-])=O", "[#8-]-[#15]=O"),
	newFamily("carboxylates", "[#8-]-[#6]=O"),
	newFamily("phenolates", "[#8-]-c:1:*:*:*:*:*:1"),
	newFamily("carboanions", "[#8-]-[#6]=[#6]"),
	newFamily("amides", "[#7-]"),
}

// Family returns the chemical family of an ion, or "" when none matches.
func Family(m *Molecule, ion domain.Ion) string {
	families := cationFamilies
	if ion == domain.IonAnion {
		families = anionFamilies
	}
	for _, f := range families {
		for _, p := range f.patterns {
			if p.Matches(m) {
				return f.name
			}
		}
	}
	return ""
}

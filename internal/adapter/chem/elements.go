package chem

// Element holds the per-element constants used by the parser, the valence model
// and the descriptor generators.
type Element struct {
	Symbol string
	Number int
	Mass   float64 // standard atomic weight
	// Valence is the number of valence electrons for main-group elements.
	// Zero means no valence model applies (transition metals).
	Valence           int
	Period            int
	CovalentRadius    float64 // Å
	VDWRadius         float64 // Å
	Electronegativity float64 // Pauling
}

var elementTable = []Element{
	{"H", 1, 1.008, 1, 1, 0.31, 1.20, 2.20},
	{"He", 2, 4.0026, 8, 1, 0.28, 1.40, 0},
	{"Li", 3, 6.94, 1, 2, 1.28, 1.82, 0.98},
	{"Be", 4, 9.0122, 2, 2, 0.96, 1.53, 1.57},
	{"B", 5, 10.81, 3, 2, 0.84, 1.92, 2.04},
	{"C", 6, 12.011, 4, 2, 0.76, 1.70, 2.55},
	{"N", 7, 14.007, 5, 2, 0.71, 1.55, 3.04},
	{"O", 8, 15.999, 6, 2, 0.66, 1.52, 3.44},
	{"F", 9, 18.998, 7, 2, 0.57, 1.47, 3.98},
	{"Ne", 10, 20.180, 8, 2, 0.58, 1.54, 0},
	{"Na", 11, 22.990, 1, 3, 1.66, 2.27, 0.93},
	{"Mg", 12, 24.305, 2, 3, 1.41, 1.73, 1.31},
	{"Al", 13, 26.982, 3, 3, 1.21, 1.84, 1.61},
	{"Si", 14, 28.085, 4, 3, 1.11, 2.10, 1.90},
	{"P", 15, 30.974, 5, 3, 1.07, 1.80, 2.19},
	{"S", 16, 32.06, 6, 3, 1.05, 1.80, 2.58},
	{"Cl", 17, 35.45, 7, 3, 1.02, 1.75, 3.16},
	{"Ar", 18, 39.948, 8, 3, 1.06, 1.88, 0},
	{"K", 19, 39.098, 1, 4, 2.03, 2.75, 0.82},
	{"Ca", 20, 40.078, 2, 4, 1.76, 2.31, 1.00},
	{"Sc", 21, 44.956, 0, 4, 1.70, 2.11, 1.36},
	{"Ti", 22, 47.867, 0, 4, 1.60, 2.00, 1.54},
	{"V", 23, 50.942, 0, 4, 1.53, 2.00, 1.63},
	{"Cr", 24, 51.996, 0, 4, 1.39, 2.00, 1.66},
	{"Mn", 25, 54.938, 0, 4, 1.39, 2.00, 1.55},
	{"Fe", 26, 55.845, 0, 4, 1.32, 2.00, 1.83},
	{"Co", 27, 58.933, 0, 4, 1.26, 2.00, 1.88},
	{"Ni", 28, 58.693, 0, 4, 1.24, 1.63, 1.91},
	{"Cu", 29, 63.546, 0, 4, 1.32, 1.40, 1.90},
	{"Zn", 30, 65.38, 0, 4, 1.22, 1.39, 1.65},
	{"Ga", 31, 69.723, 3, 4, 1.22, 1.87, 1.81},
	{"Ge", 32, 72.630, 4, 4, 1.20, 2.11, 2.01},
	{"As", 33, 74.922, 5, 4, 1.19, 1.85, 2.18},
	{"Se", 34, 78.971, 6, 4, 1.20, 1.90, 2.55},
	{"Br", 35, 79.904, 7, 4, 1.20, 1.85, 2.96},
	{"Kr", 36, 83.798, 8, 4, 1.16, 2.02, 3.00},
	{"Rb", 37, 85.468, 1, 5, 2.20, 3.03, 0.82},
	{"Sr", 38, 87.62, 2, 5, 1.95, 2.49, 0.95},
	{"Y", 39, 88.906, 0, 5, 1.90, 2.00, 1.22},
	{"Zr", 40, 91.224, 0, 5, 1.75, 2.00, 1.33},
	{"Nb", 41, 92.906, 0, 5, 1.64, 2.00, 1.6},
	{"Mo", 42, 95.95, 0, 5, 1.54, 2.00, 2.16},
	{"Tc", 43, 98, 0, 5, 1.47, 2.00, 1.9},
	{"Ru", 44, 101.07, 0, 5, 1.46, 2.00, 2.2},
	{"Rh", 45, 102.91, 0, 5, 1.42, 2.00, 2.28},
	{"Pd", 46, 106.42, 0, 5, 1.39, 1.63, 2.20},
	{"Ag", 47, 107.87, 0, 5, 1.45, 1.72, 1.93},
	{"Cd", 48, 112.41, 0, 5, 1.44, 1.58, 1.69},
	{"In", 49, 114.82, 3, 5, 1.42, 1.93, 1.78},
	{"Sn", 50, 118.71, 4, 5, 1.39, 2.17, 1.96},
	{"Sb", 51, 121.76, 5, 5, 1.39, 2.06, 2.05},
	{"Te", 52, 127.60, 6, 5, 1.38, 2.06, 2.10},
	{"I", 53, 126.90, 7, 5, 1.39, 1.98, 2.66},
	{"Xe", 54, 131.29, 8, 5, 1.40, 2.16, 2.60},
	{"Cs", 55, 132.91, 1, 6, 2.44, 3.43, 0.79},
	{"Ba", 56, 137.33, 2, 6, 2.15, 2.68, 0.89},
	{"La", 57, 138.91, 0, 6, 2.07, 2.00, 1.10},
	{"Pt", 78, 195.08, 0, 6, 1.36, 1.75, 2.28},
	{"Au", 79, 196.97, 0, 6, 1.36, 1.66, 2.54},
	{"Hg", 80, 200.59, 0, 6, 1.32, 1.55, 2.00},
	{"Tl", 81, 204.38, 3, 6, 1.45, 1.96, 1.62},
	{"Pb", 82, 207.2, 4, 6, 1.46, 2.02, 2.33},
	{"Bi", 83, 208.98, 5, 6, 1.48, 2.07, 2.02},
}

var elementsBySymbol = func() map[string]*Element {
	m := make(map[string]*Element, len(elementTable))
	for i := range elementTable {
		m[elementTable[i].Symbol] = &elementTable[i]
	}
	return m
}()

// LookupElement returns the element with the given symbol, e.g. "Cl".
func LookupElement(symbol string) (*Element, bool) {
	e, ok := elementsBySymbol[symbol]
	return e, ok
}

// organic subset atoms may be written without brackets.
var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true,
}

// aromaticSymbols lists the lowercase element symbols allowed for aromatic atoms.
var aromaticSymbols = map[string]string{
	"b": "B", "c": "C", "n": "N", "o": "O", "p": "P", "s": "S",
	"se": "Se", "as": "As", "te": "Te",
}

// allowedValences returns the valences an element may take at the given formal
// charge, in ascending order. ok is false when no valence model applies, in
// which case any valence is accepted.
func allowedValences(e *Element, charge int) (vals []int, ok bool) {
	if e.Number == 1 {
		if charge == 0 {
			return []int{1}, true
		}
		return []int{0}, true
	}
	if e.Valence == 0 {
		return nil, false
	}

	electrons := e.Valence - charge
	switch {
	case electrons < 0 || electrons > 8:
		return []int{}, true
	case electrons == 0 || electrons == 8:
		return []int{0}, true
	case electrons <= 4:
		return []int{electrons}, true
	}

	if e.Period <= 2 {
		if e.Number == 7 && charge == 0 {
			return []int{3, 5}, true
		}
		return []int{8 - electrons}, true
	}
	switch electrons {
	case 5:
		return []int{3, 5}, true
	case 6:
		return []int{2, 4, 6}, true
	default:
		return []int{1, 3, 5, 7}, true
	}
}

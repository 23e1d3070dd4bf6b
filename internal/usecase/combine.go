package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
)

// CombineConcatenate keeps cation and anion columns side by side.
const CombineConcatenate = "concatenate"

// combiner merges one cation descriptor with the matching anion descriptor.
type combiner func(cation, anion *chem.IonInfo, c, a float64) float64

var combiners = map[string]combiner{
	"sum":  func(_, _ *chem.IonInfo, c, a float64) float64 { return c + a },
	"mean": func(_, _ *chem.IonInfo, c, a float64) float64 { return 0.5 * (c + a) },
	"min_abs": func(_, _ *chem.IonInfo, c, a float64) float64 {
		return math.Min(math.Abs(c), math.Abs(a))
	},
	"max_abs": func(_, _ *chem.IonInfo, c, a float64) float64 {
		return math.Max(math.Abs(c), math.Abs(a))
	},
	// weighted by heavy atoms; hydrogens do not count
	"mean_atom_count": func(ci, ai *chem.IonInfo, c, a float64) float64 {
		nc, na := float64(ci.HeavyAtomCount), float64(ai.HeavyAtomCount)
		return (nc*c + na*a) / (nc + na)
	},
	"mean_molecular_weight": func(ci, ai *chem.IonInfo, c, a float64) float64 {
		return (ci.MolWeight*c + ai.MolWeight*a) / (ci.MolWeight + ai.MolWeight)
	},
}

// CombiningRules lists the accepted rule names.
func CombiningRules() []string {
	names := []string{CombineConcatenate}
	for name := range combiners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkCombiningRule(name string) error {
	if name == "" || name == CombineConcatenate {
		return nil
	}
	if _, ok := combiners[name]; !ok {
		return fmt.Errorf("unknown combining rule %q (available: %s)", name, strings.Join(CombiningRules(), ", "))
	}
	return nil
}

// combine collapses aligned cation and anion values. A missing side gives a
// missing result.
func combine(rule combiner, ci, ai *chem.IonInfo, c, a domain.Value) domain.Value {
	if !c.Valid || !a.Valid {
		return domain.Missing()
	}
	return domain.Float(rule(ci, ai, c.Float, a.Float))
}

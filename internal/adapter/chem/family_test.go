package chem

import (
	"errors"
	"testing"

	"ilfeat/internal/domain"
)

func TestFamily(t *testing.T) {
	tests := []struct {
		smiles string
		ion    domain.Ion
		want   string
	}{
		{"CCn1cc[n+](C)c1", domain.IonCation, "imidazolium"},
		{"CCCC[n+]1ccccc1", domain.IonCation, "pyridinium"},
		{"CCCC[N+]1(C)CCCC1", domain.IonCation, "pyrrolidinium"},
		{"CCCC[N+]1(C)CCCCC1", domain.IonCation, "piperidinium"},
		{"C[N+]1(CCCC)CCOCC1", domain.IonCation, "morpholinium"},
		{"CCCC[P+](CCCC)(CCCC)CCCC", domain.IonCation, "phosphonium"},
		{"CC[N+](CC)(CC)CC", domain.IonCation, "ammonium"},
		{"CN(C)C(N(C)C)=[N+](C)C", domain.IonCation, "guanidinium"},
		{"CC[S+](CC)CC", domain.IonCation, "sulfonium"},
		{"FC(F)(F)S(=O)(=O)[N-]S(=O)(=O)C(F)(F)F", domain.IonAnion, "bistriflamides"},
		{"F[B-](F)(F)F", domain.IonAnion, "borates"},
		{"F[P-](F)(F)(F)(F)F", domain.IonAnion, "phosphates"},
		{"[Cl-]", domain.IonAnion, "inorganics"},
		{"N#C[S-]", domain.IonAnion, "inorganics"},
		{"COS(=O)(=O)[O-]", domain.IonAnion, "sulfates"},
		{"CS(=O)(=O)[O-]", domain.IonAnion, "sulfonates"},
		{"CC(=O)[O-]", domain.IonAnion, "carboxylates"},
		{"[O-]c1ccccc1", domain.IonAnion, "phenolates"},
		{"N#C[N-]C#N", domain.IonAnion, "amides"},
		{"c1cn[n-]c1", domain.IonAnion, "cyclic amides"},
		{"CC", domain.IonAnion, ""},
	}

	for _, tt := range tests {
		m := mustParse(t, tt.smiles)
		if got := Family(m, tt.ion); got != tt.want {
			t.Errorf("Family(%s, %s) = %q, want %q", tt.smiles, tt.ion, got, tt.want)
		}
	}
}

func TestCompileSMARTS(t *testing.T) {
	valid := []string{"[#6]-1-[#6]-[#6]-[#7+]-[#6]-1", "[F,Cl,Br,I;-]", "[!#1!#6][#6]=[#7+]", "[#7]-[#6]1=,:[#6](-[#7])[#6+]1-[#7]"}
	for _, s := range valid {
		if _, err := CompileSMARTS(s); err != nil {
			t.Errorf("CompileSMARTS(%q): %v", s, err)
		}
	}

	invalid := []string{"", "[#6", "C(C", "C1CC", "[#]", "C)"}
	for _, s := range invalid {
		if _, err := CompileSMARTS(s); err == nil {
			t.Errorf("CompileSMARTS(%q): expected error", s)
		}
	}
}

func TestPattern_Matches(t *testing.T) {
	tests := []struct {
		pattern string
		smiles  string
		want    bool
	}{
		{"c1ccccc1", "Cc1ccccc1", true},
		{"c1ccccc1", "C1CCCCC1", false},
		{"C=O", "CC=O", true},
		{"C=O", "CCO", false},
		{"[#8-]", "CC(=O)[O-]", true},
		{"[!#6]", "CC", false},
		{"[F,Cl;-]", "[Cl-]", true},
		{"[F,Cl;-]", "CCl", false},
		{"*~*", "CC", true},
		{"*~*", "C", false},
	}

	for _, tt := range tests {
		p := mustCompileSMARTS(tt.pattern)
		if got := p.Matches(mustParse(t, tt.smiles)); got != tt.want {
			t.Errorf("%s in %s = %v, want %v", tt.pattern, tt.smiles, got, tt.want)
		}
	}
}

func TestParseIonicLiquid(t *testing.T) {
	cat, an, err := ParseIonicLiquid("CCn1cc[n+](C)c1.F[B-](F)(F)F")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	swappedCat, swappedAn, err := ParseIonicLiquid("F[B-](F)(F)F.CCn1cc[n+](C)c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swappedCat != cat || swappedAn != an {
		t.Errorf("order of ions must not matter: got %s/%s and %s/%s", cat, an, swappedCat, swappedAn)
	}

	wantCat, _ := Canonicalize("CCn1cc[n+](C)c1")
	if cat != wantCat {
		t.Errorf("cation = %s, want %s", cat, wantCat)
	}
}

func TestParseIonicLiquid_Errors(t *testing.T) {
	tests := []struct {
		in     string
		target error
	}{
		{"CCO", domain.ErrInvalidStructure},
		{"C.C.C", domain.ErrInvalidStructure},
		{"CC[N+](C)(C)C.CCO", domain.ErrInvalidCharge},
		{"CC[N+](C)(C)C.C[N+](C)(C)C", domain.ErrInvalidCharge},
		{"[Cl-].[Br-]", domain.ErrInvalidCharge},
		{"C1CC.[Cl-]", domain.ErrInvalidStructure},
	}

	for _, tt := range tests {
		_, _, err := ParseIonicLiquid(tt.in)
		if !errors.Is(err, tt.target) {
			t.Errorf("ParseIonicLiquid(%q) = %v, want %v", tt.in, err, tt.target)
		}
	}
}

func TestValidateCharge(t *testing.T) {
	id, _ := Canonicalize("[Cl-]")
	if err := ValidateCharge(id, domain.IonAnion); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ValidateCharge(id, domain.IonCation)
	var ce *domain.InvalidChargeError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *InvalidChargeError, got %v", err)
	}
	if ce.Charge != -1 || ce.Ion != domain.IonCation {
		t.Errorf("unexpected error fields: %+v", ce)
	}
}

func TestDescribe(t *testing.T) {
	id, _ := Canonicalize("F[B-](F)(F)F")
	info, err := Describe(id, domain.IonAnion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Charge != -1 || info.Family != "borates" || info.HeavyAtomCount != 5 {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Formula != "BF4-" {
		t.Errorf("Formula = %q", info.Formula)
	}
}

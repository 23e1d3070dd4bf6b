package chem

import (
	"errors"
	"testing"

	"ilfeat/internal/domain"
)

func TestCanonicalize_Known(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"C", "C"},
		{"OCC", "CCO"},
		{"[Cl-]", "[Cl-]"},
		{"c1ccccc1", "c1ccccc1"},
		{"C1=CC=CC=C1", "c1ccccc1"},
		{"[H]C([H])([H])[H]", "C"},
		{"[13CH4]", "C"},
		{"  CCO\n", "CCO"},
		{"[Cl-].OCC", "CCO.[Cl-]"},
	}

	for _, tt := range tests {
		id, err := Canonicalize(tt.in)
		if err != nil {
			t.Errorf("Canonicalize(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if id.Canonical != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, id.Canonical, tt.want)
		}
		if id.ExplicitHydrogens {
			t.Errorf("Canonicalize(%q) set the explicit hydrogen flag", tt.in)
		}
	}
}

func TestCanonicalize_SpellingInvariance(t *testing.T) {
	groups := [][]string{
		{"CCn1cc[n+](C)c1", "C[n+]1ccn(CC)c1", "CCN1C=C[N+](C)=C1", "c1[n+](C)ccn1CC"},
		{"CCCC[n+]1ccccc1", "c1cccc[n+]1CCCC", "C1=CC=[N+](CCCC)C=C1"},
		{"FC(F)(F)S(=O)(=O)[N-]S(=O)(=O)C(F)(F)F", "O=S(=O)([N-]S(=O)(=O)C(F)(F)F)C(F)(F)F"},
		{"F[B-](F)(F)F", "[B-](F)(F)(F)F"},
		{"F[P-](F)(F)(F)(F)F", "[P-](F)(F)(F)(F)(F)F"},
		{"C[C@H](O)CC", "CC(O)CC", "CCC(C)O"},
		{"CCCC[N+](CCCC)(CCCC)CCCC", "C(CCC)[N+](CCCC)(CCCC)CCCC"},
		{"c1ccc2ccccc2c1", "C1=CC=C2C=CC=CC2=C1"},
	}

	for _, group := range groups {
		first, err := Canonicalize(group[0])
		if err != nil {
			t.Fatalf("Canonicalize(%q): %v", group[0], err)
		}
		for _, s := range group[1:] {
			id, err := Canonicalize(s)
			if err != nil {
				t.Errorf("Canonicalize(%q): %v", s, err)
				continue
			}
			if id != first {
				t.Errorf("Canonicalize(%q) = %q, want %q (from %q)", s, id.Canonical, first.Canonical, group[0])
			}
		}
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"CCn1cc[n+](C)c1",
		"CCCC[n+]1ccc(C)cc1",
		"CCCC[N+]1(C)CCCC1",
		"C[N+]1(CCCC)CCOCC1",
		"CCCC[P+](CCCC)(CCCC)CCCC",
		"FC(F)(F)S(=O)(=O)[N-]S(=O)(=O)C(F)(F)F",
		"CC(=O)[O-]",
		"[O-]c1ccccc1",
		"N#C[S-]",
		"c1cc[nH]c1",
		"c1ccc2ccccc2c1",
		"CS(=O)(=O)[O-]",
	}

	for _, in := range inputs {
		id, err := Canonicalize(in)
		if err != nil {
			t.Errorf("Canonicalize(%q): %v", in, err)
			continue
		}
		again, err := Canonicalize(id.Canonical)
		if err != nil {
			t.Errorf("Canonicalize(%q) of canonical form: %v", id.Canonical, err)
			continue
		}
		if again != id {
			t.Errorf("not idempotent: %q -> %q -> %q", in, id.Canonical, again.Canonical)
		}
	}
}

func TestCanonicalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"unclosed ring", "C1CC"},
		{"unclosed branch", "C(C"},
		{"unbalanced paren", "CC)C"},
		{"unknown element", "[Xx]"},
		{"bare non-organic", "CNa"},
		{"pentavalent carbon", "C(C)(C)(C)(C)C"},
		{"divalent fluorine", "CF(C)"},
		{"aromatic atom outside ring", "Cc"},
		{"not kekulizable", "c1cccc1"},
		{"ring closure to self", "C11"},
		{"dangling bond", "CC="},
		{"lone dot", "."},
		{"leading dot", ".C"},
		{"trailing dot", "C."},
		{"doubled dot", "C..C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.in)
			if err == nil {
				t.Fatalf("expected error for %q", tt.in)
			}
			if !errors.Is(err, domain.ErrInvalidStructure) {
				t.Errorf("expected ErrInvalidStructure, got %v", err)
			}
			var se *domain.InvalidStructureError
			if !errors.As(err, &se) {
				t.Fatalf("expected *InvalidStructureError, got %T", err)
			}
			if se.Input != tt.in {
				t.Errorf("error input = %q, want %q", se.Input, tt.in)
			}
			if se.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestCanonicalize_UnclosedRingPosition(t *testing.T) {
	_, err := Canonicalize("CC1CC2CC")
	var se *domain.InvalidStructureError
	if !errors.As(err, &se) {
		t.Fatalf("expected *InvalidStructureError, got %v", err)
	}
	if se.Pos != 2 {
		t.Errorf("expected ring 1 reported at position 2, got %d", se.Pos)
	}
}

func TestCanonicalize_EmptyComponentPosition(t *testing.T) {
	cases := map[string]int{".C": 0, "CC.": 2, "C..C": 2, "[Na+]..[Cl-]": 6}
	for in, want := range cases {
		_, err := Canonicalize(in)
		var se *domain.InvalidStructureError
		if !errors.As(err, &se) {
			t.Fatalf("%q: expected *InvalidStructureError, got %v", in, err)
		}
		if se.Pos != want || se.Reason != "empty component" {
			t.Errorf("%q: got %q at %d, want empty component at %d", in, se.Reason, se.Pos, want)
		}
	}

	id, err := Canonicalize("[Na+].[Cl-]")
	if err != nil {
		t.Fatalf("two components: %v", err)
	}
	if id.Canonical != "[Cl-].[Na+]" {
		t.Errorf("canonical = %q", id.Canonical)
	}
}

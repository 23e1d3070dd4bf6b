package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
)

var canonCmd = &cobra.Command{
	Use:   "canon <smiles>...",
	Short: "Print canonical forms",
	Long: `Canonicalize each structure and print its canonical SMILES, net charge,
formula and ion family.

Examples:
  ilfeat canon "C[n+]1ccn(CC)c1" "F[B-](F)(F)F"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCanon,
}

func init() {
	rootCmd.AddCommand(canonCmd)
}

func runCanon(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INPUT\tCANONICAL\tCHARGE\tFORMULA\tFAMILY")

	failed := 0
	for _, raw := range args {
		id, err := chem.Canonicalize(raw)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t%v\n", raw, err)
			failed++
			continue
		}
		ion := domain.IonCation
		if m, err := chem.ParseSMILES(id.Canonical); err == nil && m.NetCharge() < 0 {
			ion = domain.IonAnion
		}
		info, err := chem.Describe(id, ion)
		if err != nil {
			return err
		}
		family := info.Family
		if family == "" {
			family = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%+d\t%s\t%s\n", raw, id.Canonical, info.Charge, info.Formula, family)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d structures are invalid", failed, len(args))
	}
	return nil
}

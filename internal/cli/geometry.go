package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/logging"
)

var (
	geometryOutput   string
	geometrySeed     int64
	geometryAttempts int
)

var geometryCmd = &cobra.Command{
	Use:   "geometry <smiles>...",
	Short: "Embed 3D conformers",
	Long: `Embed each structure in 3D and write the conformers as an SD file.

Examples:
  ilfeat geometry "CC[n+]1ccn(C)c1" -o emim.sdf
  ilfeat geometry "[B-](F)(F)(F)F" --seed 7`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGeometry,
}

func init() {
	rootCmd.AddCommand(geometryCmd)
	geometryCmd.Flags().StringVarP(&geometryOutput, "output", "o", "", "output SD file (default stdout)")
	geometryCmd.Flags().Int64Var(&geometrySeed, "seed", 0, "embedding seed (default from config)")
	geometryCmd.Flags().IntVar(&geometryAttempts, "attempts", 0, "embedding attempt limit (default from config)")
}

func runGeometry(cmd *cobra.Command, args []string) error {
	seed := cfg.Geometry.Seed
	if cmd.Flags().Changed("seed") {
		seed = geometrySeed
	}
	attempts := cfg.Geometry.AttemptLimit
	if geometryAttempts > 0 {
		attempts = geometryAttempts
	}

	var out io.Writer = cmd.OutOrStdout()
	if geometryOutput != "" {
		f, err := os.Create(geometryOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	builder := newBuilder()
	for _, raw := range args {
		id, err := chem.Canonicalize(raw)
		if err != nil {
			return err
		}
		conf, err := builder.Build(cmd.Context(), id, seed, attempts)
		if err != nil {
			return err
		}
		logger.Info("conformer embedded",
			logging.String("identity", id.Canonical),
			logging.Int64("seed", conf.Seed),
			logging.Int("attempt", conf.Attempt),
			logging.Int("atoms", conf.AtomCount()))

		if err := chem.MolfileFromConformer(conf).WriteSDF(out); err != nil {
			return fmt.Errorf("failed to write conformer: %w", err)
		}
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/signalnine/netscore/internal/engine"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [metrics-dir]",
		Short: "Check metric manifests without scoring anything",
		Long:  "Load every manifest in the metrics directory and report the ones that would be skipped. Exits non-zero when any manifest is invalid.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.MetricsDir
			if len(args) > 0 {
				dir = args[0]
			}

			descs, errs := engine.Describe(dir, builtinRegistry())
			out := cmd.OutOrStdout()
			var total float64
			for _, d := range descs {
				total += d.Weight
			}
			fmt.Fprintf(out, "%d valid metrics, total weight %.2f\n", len(descs), total)
			for _, le := range errs {
				fmt.Fprintf(out, "  INVALID %v\n", le)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d invalid metric manifests in %s", len(errs), dir)
			}
			return nil
		},
	}
}

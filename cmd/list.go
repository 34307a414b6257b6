package cmd

import (
	"fmt"

	"github.com/signalnine/netscore/internal/engine"
	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/scorers"
	"github.com/spf13/cobra"
)

func builtinRegistry() *metric.Registry {
	reg := metric.NewRegistry()
	scorers.Register(reg)
	return reg
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded metrics and built-in scorers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg := builtinRegistry()
			descs, errs := engine.Describe(cfg.MetricsDir, reg)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Metrics (%s):\n", cfg.MetricsDir)
			for _, name := range metric.SortedNames(descs) {
				d := descs[name]
				fmt.Fprintf(out, "  - %s (weight: %.2f, isolation: %s)\n", d.Name, d.Weight, d.Isolation)
			}
			if len(errs) > 0 {
				fmt.Fprintf(out, "\nSkipped: %d (run validate for details)\n", len(errs))
			}
			fmt.Fprintln(out, "\nBuilt-in scorers:")
			for _, name := range reg.Names() {
				fmt.Fprintf(out, "  - %s\n", name)
			}
			return nil
		},
	}
}
